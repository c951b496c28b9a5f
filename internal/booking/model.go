package booking

import "time"

// Status 预订状态枚举（持久化为字符串）。
type Status string

const (
	StatusPending   Status = "pending"   // 已提交，待审批
	StatusApproved  Status = "approved"  // 已批准（独占时间窗）
	StatusRejected  Status = "rejected"  // 已驳回（终态）
	StatusCancelled Status = "cancelled" // 已取消（终态）
	StatusCompleted Status = "completed" // 已还车（终态）
)

// Active 是否仍占用时间窗（可用性推导的口径）。
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// ActiveStatuses 可用性查询使用的状态集合：
// 待审批的预订也视为"软占用"，从可用车辆列表中剔除，
// 但并不阻止同窗再次提交申请（独占只在审批时裁决）。
var ActiveStatuses = []Status{StatusPending, StatusApproved}

// Booking 预订 GORM 模型。
// 时间区间为左闭右开 [StartTime, EndTime)，统一UTC存储。
// StartMileage 在审批时写入（车辆当时里程），EndMileage 在还车时写入。
type Booking struct {
	ID          string `gorm:"primaryKey;size:36"`
	RequesterID string `gorm:"index;size:36;not null"` // 申请人
	VehicleID   string `gorm:"index;size:36;not null"` // 关联车辆

	StartTime   time.Time `gorm:"index;not null"`
	EndTime     time.Time `gorm:"not null"`
	Objective   string    `gorm:"size:255"` // 用车目的
	Destination string    `gorm:"size:255"` // 目的地

	Status       Status `gorm:"type:varchar(16);index;not null"`
	StartMileage *int64 // 审批前为空
	EndMileage   *int64 // 还车前为空；写入时必须 ≥ StartMileage

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
	CompletedAt *time.Time
}

// Distance 行驶里程（两端都已记录时才有值）。
func (b *Booking) Distance() (int64, bool) {
	if b == nil || b.StartMileage == nil || b.EndMileage == nil {
		return 0, false
	}
	return *b.EndMileage - *b.StartMileage, true
}

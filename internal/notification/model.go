package notification

import "time"

// Kind 通知类别
type Kind string

const (
	KindBookingCreated   Kind = "booking_created"
	KindBookingApproved  Kind = "booking_approved"
	KindBookingRejected  Kind = "booking_rejected"
	KindBookingCancelled Kind = "booking_cancelled"
	KindBookingCompleted Kind = "booking_completed"
	KindBookingOverdue   Kind = "booking_overdue"
	KindMaintenanceDue   Kind = "maintenance_due"
)

// Notification 站内通知 GORM 模型。
// UserID 为空表示面向管理员的广播（待审批、巡检告警）。
// RefID 指向触发通知的预订或车辆，用于去重。
type Notification struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"index;size:36"`
	Kind      Kind      `gorm:"type:varchar(32);index;not null"`
	RefID     string    `gorm:"index;size:36"`
	Title     string    `gorm:"size:128;not null"`
	Body      string    `gorm:"size:512"`
	Read      bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

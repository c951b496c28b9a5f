package vehicle

import (
	"time"

	"gorm.io/gorm"
)

// Status 车辆运行状态。注意："已预订"不是存储状态，
// 而是由有效预订实时推导出来的视图，避免客户端缓存过期问题。
type Status string

const (
	StatusAvailable   Status = "available"   // 可用
	StatusMaintenance Status = "maintenance" // 维修中（管理员可随时设置）
)

// Valid 是否为合法状态值
func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusMaintenance
}

// Vehicle 是 vehicles 表的 GORM 模型。
// 里程只会在还车时增长；LastServiceMileage 恒 ≤ CurrentMileage。
type Vehicle struct {
	ID                 string `gorm:"primaryKey;size:36"`
	LicensePlate       string `gorm:"uniqueIndex;size:32;not null"`
	Brand              string `gorm:"size:64"`
	Model              string `gorm:"size:64"`
	Color              string `gorm:"size:32"`
	CurrentMileage     int64  `gorm:"not null;default:0"`
	LastServiceMileage int64  `gorm:"not null;default:0"`
	Status             Status `gorm:"type:varchar(16);index;not null"`

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"` // 软删除：有历史预订的车辆不做物理删除
}

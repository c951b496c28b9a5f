package setting

import "time"

// 内置设置键
const (
	KeyMaintenanceIntervalKM = "maintenance_interval_km"
)

// Setting 系统设置 GORM 模型（键值对）。
// 列名避开 MySQL 保留字 key。
type Setting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:64"`
	Value     string    `gorm:"size:255;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

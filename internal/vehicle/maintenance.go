package vehicle

// DefaultMaintenanceIntervalKM 默认保养里程间隔（公里）
const DefaultMaintenanceIntervalKM int64 = 10000

// ServiceDue 判断车辆是否到保养里程。
// 采用商值跨越规则作为唯一判据：当前里程与上次保养里程
// 落在不同的 intervalKM 区段即到期（包含"超过一个完整间隔"的情形）。
func ServiceDue(v *Vehicle, intervalKM int64) bool {
	if v == nil {
		return false
	}
	if intervalKM <= 0 {
		intervalKM = DefaultMaintenanceIntervalKM
	}
	return v.CurrentMileage/intervalKM > v.LastServiceMileage/intervalKM
}

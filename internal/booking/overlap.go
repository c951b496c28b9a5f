package booking

import "time"

// Overlaps 判断两个左闭右开时间区间是否相交：
// 严格不等式，首尾相接（一个的结束恰为另一个的开始）不算重叠。
// 可用性查询与审批校验共用这一判据，保证读写路径同源。
// 前提：调用方已完成时区归一（存储统一UTC）。
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

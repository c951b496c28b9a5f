package booking

import (
	"time"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
)

// AllowTransition 定义预订状态机的允许流转关系。
// 终态（rejected/cancelled/completed）不再流转。
var AllowTransition = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusCancelled, StatusCompleted},
	StatusRejected:  {},
	StatusCancelled: {},
	StatusCompleted: {},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
// 自环不允许：重复审批/重复还车应当报错而不是静默重放副作用。
func CanTransition(from, to Status) bool {
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对预订应用状态变更，并维护关键时间字段。
// 非法流转返回 StateError，调用方不得部分提交。
func ApplyTransition(b *Booking, to Status, now time.Time) error {
	if b == nil {
		return apperr.Validationf("booking is nil")
	}
	from := b.Status
	if !CanTransition(from, to) {
		return apperr.Statef("invalid booking status transition: %s -> %s", from, to)
	}

	b.Status = to

	switch to {
	case StatusApproved:
		if b.ApprovedAt == nil {
			t := now
			b.ApprovedAt = &t
		}
	case StatusRejected:
		if b.RejectedAt == nil {
			t := now
			b.RejectedAt = &t
		}
	case StatusCancelled:
		if b.CancelledAt == nil {
			t := now
			b.CancelledAt = &t
		}
	case StatusCompleted:
		if b.CompletedAt == nil {
			t := now
			b.CompletedAt = &t
		}
	}
	return nil
}

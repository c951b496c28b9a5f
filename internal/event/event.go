package event

import (
	"context"
	"time"
)

// 预订生命周期事件名
const (
	BookingCreated   = "booking.created"
	BookingApproved  = "booking.approved"
	BookingRejected  = "booking.rejected"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
)

// Event 领域事件载荷（发给外部通知方）
type Event struct {
	Name        string    `json:"name"`
	BookingID   string    `json:"booking_id"`
	VehicleID   string    `json:"vehicle_id"`
	RequesterID string    `json:"requester_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// Publisher 事件发布接口。实现方不得阻塞业务事务：
// 事件在状态落库之后发出，投递/重试语义由下游自理。
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc 函数适配器
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Fanout 顺序分发到多个下游；单个下游失败不阻断其余下游。
type Fanout struct {
	subs []Publisher
}

func NewFanout(subs ...Publisher) *Fanout {
	out := make([]Publisher, 0, len(subs))
	for _, s := range subs {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{subs: out}
}

func (f *Fanout) Publish(ctx context.Context, e Event) error {
	var firstErr error
	for _, s := range f.subs {
		if err := s.Publish(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

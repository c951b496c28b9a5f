package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FleetLinkBook/FleetLinkBook/internal/event"
)

// Bridge 把领域事件落为站内通知，作为事件扇出的一个订阅方。
// 申请人收到自己预订的状态变化；booking.created 额外广播给管理员
// 作为待审批提醒。
type Bridge struct {
	repo *Repo
}

func NewBridge(repo *Repo) *Bridge {
	return &Bridge{repo: repo}
}

func (b *Bridge) Publish(ctx context.Context, e event.Event) error {
	window := fmt.Sprintf("%s ~ %s",
		e.StartTime.Format("2006-01-02 15:04"), e.EndTime.Format("2006-01-02 15:04"))

	switch e.Name {
	case event.BookingCreated:
		// 管理员广播：有新申请待审批
		return b.repo.Create(ctx, &Notification{
			ID:    uuid.NewString(),
			Kind:  KindBookingCreated,
			RefID: e.BookingID,
			Title: "新的用车申请待审批",
			Body:  fmt.Sprintf("用户 %s 申请用车 %s", e.RequesterID, window),
		})
	case event.BookingApproved:
		return b.notifyRequester(ctx, e, KindBookingApproved, "用车申请已批准", window)
	case event.BookingRejected:
		return b.notifyRequester(ctx, e, KindBookingRejected, "用车申请已驳回", window)
	case event.BookingCancelled:
		return b.notifyRequester(ctx, e, KindBookingCancelled, "预订已取消", window)
	case event.BookingCompleted:
		return b.notifyRequester(ctx, e, KindBookingCompleted, "还车已登记", window)
	default:
		return nil
	}
}

func (b *Bridge) notifyRequester(ctx context.Context, e event.Event, kind Kind, title, window string) error {
	return b.repo.Create(ctx, &Notification{
		ID:     uuid.NewString(),
		UserID: e.RequesterID,
		Kind:   kind,
		RefID:  e.BookingID,
		Title:  title,
		Body:   fmt.Sprintf("车辆 %s，时间 %s", e.VehicleID, window),
	})
}

var _ event.Publisher = (*Bridge)(nil)

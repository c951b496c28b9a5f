package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

// Service 通知查询入口与巡检告警的写入方。
type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Repo() *Repo {
	return s.repo
}

// List 当前用户可见的通知；管理员并入广播。
func (s *Service) List(ctx context.Context, actor auth.Actor, limit int) ([]Notification, error) {
	return s.repo.ListForUser(ctx, actor.ID, actor.IsAdmin(), limit)
}

// UnreadCount 未读数（角标用）。
func (s *Service) UnreadCount(ctx context.Context, actor auth.Actor) (int64, error) {
	return s.repo.UnreadCount(ctx, actor.ID, actor.IsAdmin())
}

// MarkRead 标记已读；只能操作自己可见的通知。
func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, id string) error {
	n, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf("notification %s not found", id)
	}
	if err != nil {
		return err
	}
	if n.UserID != actor.ID && !(n.UserID == "" && actor.IsAdmin()) {
		return apperr.Forbiddenf("notification %s is not visible to actor %s", id, actor.ID)
	}
	return s.repo.MarkRead(ctx, id)
}

// MaintenanceDue 写入保养到期告警（管理员广播）。
// 同一车辆已有未读告警时跳过，避免每轮巡检重复刷屏。
func (s *Service) MaintenanceDue(ctx context.Context, v *vehicle.Vehicle, intervalKM int64) error {
	exists, err := s.repo.HasUnread(ctx, KindMaintenanceDue, v.ID)
	if err != nil || exists {
		return err
	}
	return s.repo.Create(ctx, &Notification{
		ID:    uuid.NewString(),
		Kind:  KindMaintenanceDue,
		RefID: v.ID,
		Title: "车辆到保养里程",
		Body: fmt.Sprintf("车辆 %s 当前里程 %d 公里，已超过 %d 公里保养间隔",
			v.LicensePlate, v.CurrentMileage, intervalKM),
	})
}

// BookingOverdue 写入逾期未还告警（管理员广播 + 申请人提醒）。
func (s *Service) BookingOverdue(ctx context.Context, b *booking.Booking) error {
	exists, err := s.repo.HasUnread(ctx, KindBookingOverdue, b.ID)
	if err != nil || exists {
		return err
	}
	body := fmt.Sprintf("预订 %s 的结束时间 %s 已过，车辆尚未归还",
		b.ID, b.EndTime.Format("2006-01-02 15:04"))
	if err := s.repo.Create(ctx, &Notification{
		ID:    uuid.NewString(),
		Kind:  KindBookingOverdue,
		RefID: b.ID,
		Title: "预订逾期未还",
		Body:  body,
	}); err != nil {
		return err
	}
	return s.repo.Create(ctx, &Notification{
		ID:     uuid.NewString(),
		UserID: b.RequesterID,
		Kind:   KindBookingOverdue,
		RefID:  b.ID,
		Title:  "请尽快办理还车",
		Body:   body,
	})
}

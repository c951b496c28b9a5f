package scheduler

import (
	"context"
	"time"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/logger"
	"github.com/FleetLinkBook/FleetLinkBook/internal/notification"
	"github.com/FleetLinkBook/FleetLinkBook/internal/setting"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

// Sweeper 周期巡检：逾期未还的预订、到保养里程的车辆，
// 统一落为管理员告警。巡检只读推导 + 写通知，不改业务状态。
type Sweeper struct {
	bookings      *booking.Repo
	vehicles      *vehicle.Repo
	notifications *notification.Service
	settings      *setting.Store
	interval      time.Duration
	log           logger.Logger
}

func NewSweeper(bookings *booking.Repo, vehicles *vehicle.Repo,
	notifications *notification.Service, settings *setting.Store,
	interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Sweeper{
		bookings:      bookings,
		vehicles:      vehicles,
		notifications: notifications,
		settings:      settings,
		interval:      interval,
		log:           log,
	}
}

// Run 启动巡检循环，ctx 取消后退出。启动即先跑一轮。
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.SweepOnce(ctx, time.Now().UTC()); err != nil && s.log != nil {
		s.log.Warnf("sweep failed: %v", err)
	}
}

// SweepOnce 执行一轮巡检。告警写入失败不中断本轮其余条目。
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) error {
	var firstErr error

	overdue, err := s.bookings.ListOverdue(ctx, now)
	if err != nil {
		firstErr = err
	} else {
		for i := range overdue {
			if err := s.notifications.BookingOverdue(ctx, &overdue[i]); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	intervalKM := s.settings.MaintenanceIntervalKM(ctx)
	vehicles, err := s.vehicles.ListAll(ctx)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	for i := range vehicles {
		if !vehicle.ServiceDue(&vehicles[i], intervalKM) {
			continue
		}
		if err := s.notifications.MaintenanceDue(ctx, &vehicles[i], intervalKM); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package scheduler

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/notification"
	"github.com/FleetLinkBook/FleetLinkBook/internal/setting"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

func newSweeper(t *testing.T) (*Sweeper, *gorm.DB, *notification.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&vehicle.Vehicle{}, &booking.Booking{},
		&notification.Notification{}, &setting.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	notifs := notification.NewService(notification.NewRepo(db))
	sw := NewSweeper(booking.NewRepo(db), vehicle.NewRepo(db), notifs, setting.NewStore(db), time.Minute, nil)
	return sw, db, notifs
}

func TestSweepOnce(t *testing.T) {
	sw, db, notifs := newSweeper(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// 一辆到保养里程，一辆没到
	for _, v := range []*vehicle.Vehicle{
		{ID: "due", LicensePlate: "A-1", CurrentMileage: 12000, Status: vehicle.StatusAvailable},
		{ID: "fresh", LicensePlate: "A-2", CurrentMileage: 500, Status: vehicle.StatusAvailable},
	} {
		if err := vehicle.NewRepo(db).Create(ctx, v); err != nil {
			t.Fatalf("seed vehicle: %v", err)
		}
	}

	// 一条逾期未还，一条还在窗口内
	brepo := booking.NewRepo(db)
	for _, b := range []*booking.Booking{
		{ID: "late", RequesterID: "u1", VehicleID: "due", Status: booking.StatusApproved,
			StartTime: now.Add(-48 * time.Hour), EndTime: now.Add(-24 * time.Hour)},
		{ID: "ok", RequesterID: "u2", VehicleID: "fresh", Status: booking.StatusApproved,
			StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
	} {
		if err := brepo.Create(ctx, b); err != nil {
			t.Fatalf("seed booking: %v", err)
		}
	}

	if err := sw.SweepOnce(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	admin := auth.Actor{ID: "admin-1", Roles: []string{auth.RoleAdmin}}
	rows, err := notifs.List(ctx, admin, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	kinds := map[notification.Kind]int{}
	for _, n := range rows {
		if n.UserID == "" {
			kinds[n.Kind]++
		}
	}
	if kinds[notification.KindBookingOverdue] != 1 {
		t.Fatalf("expected one overdue alert, got %d", kinds[notification.KindBookingOverdue])
	}
	if kinds[notification.KindMaintenanceDue] != 1 {
		t.Fatalf("expected one maintenance alert, got %d", kinds[notification.KindMaintenanceDue])
	}

	// 再扫一轮不应产生重复未读告警
	if err := sw.SweepOnce(ctx, now); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	again, err := notifs.List(ctx, admin, 0)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	broadcasts := 0
	for _, n := range again {
		if n.UserID == "" {
			broadcasts++
		}
	}
	if broadcasts != 2 {
		t.Fatalf("repeated sweep must not duplicate alerts, got %d broadcasts", broadcasts)
	}
}

func TestSweepHonoursConfiguredInterval(t *testing.T) {
	sw, db, notifs := newSweeper(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	v := &vehicle.Vehicle{ID: "v1", LicensePlate: "A-1", CurrentMileage: 6000, Status: vehicle.StatusAvailable}
	if err := vehicle.NewRepo(db).Create(ctx, v); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}

	// 默认 10000 公里不触发
	if err := sw.SweepOnce(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	admin := auth.Actor{ID: "admin-1", Roles: []string{auth.RoleAdmin}}
	if n, _ := notifs.UnreadCount(ctx, admin); n != 0 {
		t.Fatalf("expected no alerts with default interval, got %d", n)
	}

	// 缩短间隔到 5000 公里后触发
	if err := setting.NewStore(db).Set(ctx, admin, setting.KeyMaintenanceIntervalKM, "5000"); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if err := sw.SweepOnce(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n, _ := notifs.UnreadCount(ctx, admin); n != 1 {
		t.Fatalf("expected maintenance alert after shrinking interval, got %d", n)
	}
}

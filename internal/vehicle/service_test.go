package vehicle

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
)

var (
	admin = auth.Actor{ID: "admin-1", Roles: []string{auth.RoleAdmin}}
	user  = auth.Actor{ID: "user-1", Roles: []string{auth.RoleUser}}
)

// countFunc 让测试用闭包充当预订计数器
type countFunc func(ctx context.Context, vehicleID string) (int64, error)

func (f countFunc) CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	return f(ctx, vehicleID)
}

func newTestService(t *testing.T, active ActiveBookingCounter) *Service {
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
	if err := db.AutoMigrate(&Vehicle{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(NewRepo(db), NewLocks(), active, time.Second)
}

func TestAddVehicle(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	v, err := svc.Add(ctx, admin, AddInput{
		LicensePlate:   "沪A·12345",
		Brand:          "BYD",
		Model:          "Seal",
		CurrentMileage: 1200,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if v.ID == "" || v.Status != StatusAvailable {
		t.Fatalf("expected available vehicle with id, got %+v", v)
	}

	_, err = svc.Add(ctx, admin, AddInput{LicensePlate: "沪A·12345"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate plate: expected conflict, got %v", err)
	}

	_, err = svc.Add(ctx, user, AddInput{LicensePlate: "沪B·00001"})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("non-admin add: expected forbidden, got %v", err)
	}

	_, err = svc.Add(ctx, admin, AddInput{LicensePlate: "沪B·00001", CurrentMileage: -1})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("negative mileage: expected validation, got %v", err)
	}

	_, err = svc.Add(ctx, admin, AddInput{
		LicensePlate: "沪B·00001", CurrentMileage: 100, LastServiceMileage: 200,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("last > current: expected validation, got %v", err)
	}

	_, err = svc.Add(ctx, admin, AddInput{LicensePlate: "   "})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("blank plate: expected validation, got %v", err)
	}
}

func TestUpdateVehicle(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	v, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-1", Brand: "BYD", Model: "Seal"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-2"}); err != nil {
		t.Fatalf("add second: %v", err)
	}

	color := "blue"
	got, err := svc.Update(ctx, admin, v.ID, UpdateInput{Color: &color})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Color != "blue" || got.Brand != "BYD" {
		t.Fatalf("partial update mismatch: %+v", got)
	}

	taken := "A-2"
	_, err = svc.Update(ctx, admin, v.ID, UpdateInput{LicensePlate: &taken})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("plate collision: expected conflict, got %v", err)
	}

	_, err = svc.Update(ctx, admin, "missing", UpdateInput{Color: &color})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing vehicle: expected not found, got %v", err)
	}
}

func TestSetStatus(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	v, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-1"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := svc.SetStatus(ctx, admin, v.ID, StatusMaintenance)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if got.Status != StatusMaintenance {
		t.Fatalf("expected maintenance, got %s", got.Status)
	}

	_, err = svc.SetStatus(ctx, admin, v.ID, Status("scrapped"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("invalid status: expected validation, got %v", err)
	}

	_, err = svc.SetStatus(ctx, user, v.ID, StatusAvailable)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("non-admin: expected forbidden, got %v", err)
	}
}

func TestServiceVehicle(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	v, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-1", CurrentMileage: 23456})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.SetStatus(ctx, admin, v.ID, StatusMaintenance); err != nil {
		t.Fatalf("set maintenance: %v", err)
	}
	if !ServiceDue(v, 10000) {
		t.Fatalf("fixture must start service-due")
	}

	got, err := svc.ServiceVehicle(ctx, admin, v.ID)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	if got.LastServiceMileage != 23456 {
		t.Fatalf("expected last service mileage aligned to current, got %d", got.LastServiceMileage)
	}
	if got.Status != StatusAvailable {
		t.Fatalf("servicing must clear maintenance status, got %s", got.Status)
	}
	if ServiceDue(got, 10000) {
		t.Fatalf("vehicle must not be due right after servicing")
	}

	// 幂等：重复保养不改变结果
	again, err := svc.ServiceVehicle(ctx, admin, v.ID)
	if err != nil {
		t.Fatalf("service again: %v", err)
	}
	if again.LastServiceMileage != got.LastServiceMileage || again.Status != got.Status {
		t.Fatalf("servicing must be idempotent: %+v vs %+v", again, got)
	}
}

func TestDeleteVehicle(t *testing.T) {
	activeCount := int64(2)
	svc := newTestService(t, countFunc(func(ctx context.Context, vehicleID string) (int64, error) {
		return activeCount, nil
	}))
	ctx := context.Background()

	v, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-1"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.Delete(ctx, user, v.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("non-admin delete: expected forbidden, got %v", err)
	}

	if err := svc.Delete(ctx, admin, v.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("delete with active bookings: expected conflict, got %v", err)
	}

	activeCount = 0
	if err := svc.Delete(ctx, admin, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, v.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("deleted vehicle must not be found, got %v", err)
	}
}

func TestListServiceDue(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-1", CurrentMileage: 9000}); err != nil {
		t.Fatalf("add: %v", err)
	}
	due, err := svc.Add(ctx, admin, AddInput{LicensePlate: "A-2", CurrentMileage: 15000})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := svc.ListServiceDue(ctx, 10000)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("expected only the 15000km vehicle due, got %+v", got)
	}
}

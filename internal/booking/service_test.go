package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/event"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

var (
	testAdmin = auth.Actor{ID: "admin-1", Roles: []string{auth.RoleAdmin}}
	testUser  = auth.Actor{ID: "user-1", Roles: []string{auth.RoleUser}}
	testOther = auth.Actor{ID: "user-2", Roles: []string{auth.RoleUser}}
)

func newTestDB(t *testing.T) *gorm.DB {
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
	// 内存库绑定单连接，避免每个连接各见一个空库
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&vehicle.Vehicle{}, &Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *event.MemoryPublisher, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	pub := event.NewMemoryPublisher()
	svc := NewService(db, vehicle.NewLocks(), pub, time.Second, nil)
	return svc, pub, db
}

func seedVehicle(t *testing.T, db *gorm.DB, id string, status vehicle.Status, mileage int64) *vehicle.Vehicle {
	t.Helper()
	v := &vehicle.Vehicle{
		ID:             id,
		LicensePlate:   "PLATE-" + id,
		Brand:          "BYD",
		Model:          "Seal",
		Status:         status,
		CurrentMileage: mileage,
	}
	if err := vehicle.NewRepo(db).Create(context.Background(), v); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return v
}

func at(h int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
}

func mustCreate(t *testing.T, svc *Service, actor auth.Actor, vehicleID string, start, end time.Time) *Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), actor, CreateInput{
		VehicleID: vehicleID,
		StartTime: start,
		EndTime:   end,
		Objective: "client visit",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func TestCreatePending(t *testing.T) {
	svc, pub, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 1000)

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	if b.Status != StatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if b.StartMileage != nil {
		t.Fatalf("start mileage must not be recorded before approval")
	}
	last, ok := pub.Last()
	if !ok || last.Name != event.BookingCreated {
		t.Fatalf("expected booking.created event, got %+v", last)
	}
	if last.BookingID != b.ID || last.VehicleID != "v1" {
		t.Fatalf("event payload mismatch: %+v", last)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	_, err := svc.Create(ctx, testUser, CreateInput{VehicleID: "v1", StartTime: at(3), EndTime: at(1)})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("inverted interval: expected validation error, got %v", err)
	}
	_, err = svc.Create(ctx, testUser, CreateInput{VehicleID: "v1", StartTime: at(1), EndTime: at(1)})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty interval: expected validation error, got %v", err)
	}
	_, err = svc.Create(ctx, testUser, CreateInput{VehicleID: "nope", StartTime: at(1), EndTime: at(2)})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing vehicle: expected not found, got %v", err)
	}
}

func TestCreateMaintenanceVehicleRefused(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusMaintenance, 0)

	_, err := svc.Create(context.Background(), testUser, CreateInput{
		VehicleID: "v1", StartTime: at(1), EndTime: at(2),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for maintenance vehicle, got %v", err)
	}
}

// 已批准的预订不阻止同窗再次提交：独占只在审批时裁决。
func TestCreateOverlappingApprovedStillPending(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 500)
	ctx := context.Background()

	first := mustCreate(t, svc, testUser, "v1", at(1), at(5))
	if _, err := svc.SetStatus(ctx, testAdmin, first.ID, ActionApprove); err != nil {
		t.Fatalf("approve first: %v", err)
	}

	second := mustCreate(t, svc, testOther, "v1", at(3), at(7))
	if second.Status != StatusPending {
		t.Fatalf("overlapping create must still enter pending, got %s", second.Status)
	}

	// 但它审批不过
	_, err := svc.SetStatus(ctx, testAdmin, second.ID, ActionApprove)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict approving overlap, got %v", err)
	}
	got, err := svc.Get(ctx, testAdmin, second.ID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("losing booking must stay pending, got %s", got.Status)
	}
}

// 并发提交两份完全相同的申请：两份都成功，之后恰有一份能获批。
func TestConcurrentIdenticalCreates(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := svc.Create(ctx, testUser, CreateInput{
				VehicleID: "v1", StartTime: at(1), EndTime: at(3),
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = b.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}

	approvals := 0
	for _, id := range ids {
		if _, err := svc.SetStatus(ctx, testAdmin, id, ActionApprove); err == nil {
			approvals++
		} else if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("unexpected approve error: %v", err)
		}
	}
	if approvals != 1 {
		t.Fatalf("exactly one of the identical bookings must win approval, got %d", approvals)
	}
}

func TestApproveRecordsMileageAtApprovalTime(t *testing.T) {
	svc, pub, db := newTestService(t)
	v := seedVehicle(t, db, "v1", vehicle.StatusAvailable, 1000)
	ctx := context.Background()

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))

	// 创建与审批之间车辆又跑了一段
	v.CurrentMileage = 1800
	if err := vehicle.NewRepo(db).Save(ctx, v); err != nil {
		t.Fatalf("bump mileage: %v", err)
	}

	approved, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionApprove)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.StartMileage == nil || *approved.StartMileage != 1800 {
		t.Fatalf("start mileage must be the approval-time reading, got %v", approved.StartMileage)
	}
	if approved.ApprovedAt == nil {
		t.Fatalf("expected ApprovedAt set")
	}
	last, _ := pub.Last()
	if last.Name != event.BookingApproved {
		t.Fatalf("expected booking.approved event, got %s", last.Name)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)

	b := mustCreate(t, svc, testUser, "v1", at(1), at(2))
	_, err := svc.SetStatus(context.Background(), testUser, b.ID, ActionApprove)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestApproveNonPending(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	b := mustCreate(t, svc, testUser, "v1", at(1), at(2))
	if _, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionApprove)
	if !apperr.Is(err, apperr.KindState) {
		t.Fatalf("expected state error approving rejected booking, got %v", err)
	}
}

// 区间端点相接不算重叠：[1,3) 之后紧接 [3,5) 可以获批。
func TestApproveTouchingIntervals(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	first := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	second := mustCreate(t, svc, testOther, "v1", at(3), at(5))

	if _, err := svc.SetStatus(ctx, testAdmin, first.ID, ActionApprove); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	if _, err := svc.SetStatus(ctx, testAdmin, second.ID, ActionApprove); err != nil {
		t.Fatalf("touching interval must approve cleanly: %v", err)
	}
}

func TestReturnFlow(t *testing.T) {
	svc, pub, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 1000)
	ctx := context.Background()

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	if _, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	done, err := svc.Return(ctx, testUser, b.ID, 1250)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.EndMileage == nil || *done.EndMileage != 1250 {
		t.Fatalf("expected end mileage 1250, got %v", done.EndMileage)
	}
	if d, ok := done.Distance(); !ok || d != 250 {
		t.Fatalf("expected distance 250, got %d (%v)", d, ok)
	}

	v, err := vehicle.NewRepo(db).FindByID(ctx, "v1")
	if err != nil {
		t.Fatalf("reload vehicle: %v", err)
	}
	if v.CurrentMileage != 1250 {
		t.Fatalf("vehicle mileage must advance to 1250, got %d", v.CurrentMileage)
	}
	last, _ := pub.Last()
	if last.Name != event.BookingCompleted {
		t.Fatalf("expected booking.completed event, got %s", last.Name)
	}
}

// 收车里程小于出车里程：整体拒绝，预订和车辆都不动。
func TestReturnMileageBelowStart(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 1000)
	ctx := context.Background()

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	if _, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := svc.Return(ctx, testUser, b.ID, 900)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := svc.Get(ctx, testUser, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusApproved || got.EndMileage != nil {
		t.Fatalf("failed return must not mutate booking: status=%s end=%v", got.Status, got.EndMileage)
	}
	v, _ := vehicle.NewRepo(db).FindByID(ctx, "v1")
	if v.CurrentMileage != 1000 {
		t.Fatalf("failed return must not touch vehicle mileage, got %d", v.CurrentMileage)
	}
}

func TestReturnForbiddenForStranger(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	if _, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err := svc.Return(ctx, testOther, b.ID, 100)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	// 管理员可以代还
	if _, err := svc.Return(ctx, testAdmin, b.ID, 100); err != nil {
		t.Fatalf("admin return: %v", err)
	}
}

func TestReturnNotApproved(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	_, err := svc.Return(context.Background(), testUser, b.ID, 100)
	if !apperr.Is(err, apperr.KindState) {
		t.Fatalf("expected state error returning pending booking, got %v", err)
	}
}

func TestCancelApproved(t *testing.T) {
	svc, pub, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	b := mustCreate(t, svc, testUser, "v1", at(1), at(3))
	if _, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	cancelled, err := svc.SetStatus(ctx, testAdmin, b.ID, ActionCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled with timestamp, got %+v", cancelled)
	}
	last, _ := pub.Last()
	if last.Name != event.BookingCancelled {
		t.Fatalf("expected booking.cancelled event, got %s", last.Name)
	}

	// 取消后时间窗释放，同窗的新申请可以获批
	nb := mustCreate(t, svc, testOther, "v1", at(1), at(3))
	if _, err := svc.SetStatus(ctx, testAdmin, nb.ID, ActionApprove); err != nil {
		t.Fatalf("approve after cancel must succeed: %v", err)
	}
}

func TestAvailableVehicles(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "free", vehicle.StatusAvailable, 0)
	seedVehicle(t, db, "busy", vehicle.StatusAvailable, 0)
	seedVehicle(t, db, "shop", vehicle.StatusMaintenance, 0)
	ctx := context.Background()

	// pending 也算软占用
	mustCreate(t, svc, testUser, "busy", at(2), at(4))

	got, err := svc.AvailableVehicles(ctx, at(3), at(5))
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 1 || got[0].ID != "free" {
		t.Fatalf("expected only vehicle free, got %+v", got)
	}

	// 相接窗口不占用
	got, err = svc.AvailableVehicles(ctx, at(4), at(6))
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("touching window must free the busy vehicle, got %d", len(got))
	}

	_, err = svc.AvailableVehicles(ctx, at(5), at(5))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty window, got %v", err)
	}
}

func TestGetAndListVisibility(t *testing.T) {
	svc, _, db := newTestService(t)
	seedVehicle(t, db, "v1", vehicle.StatusAvailable, 0)
	ctx := context.Background()

	mine := mustCreate(t, svc, testUser, "v1", at(1), at(2))
	mustCreate(t, svc, testOther, "v1", at(2), at(3))

	if _, err := svc.Get(ctx, testOther, mine.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden reading another user's booking")
	}
	if _, err := svc.Get(ctx, testAdmin, mine.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	list, total, err := svc.List(ctx, testUser, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].RequesterID != testUser.ID {
		t.Fatalf("non-admin list must be scoped to own bookings, got total=%d", total)
	}

	_, total, err = svc.List(ctx, testAdmin, ListFilter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if total != 2 {
		t.Fatalf("admin must see all bookings, got %d", total)
	}
}

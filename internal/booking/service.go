package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/logger"
	"github.com/FleetLinkBook/FleetLinkBook/internal/event"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

// Action 审批动作
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Service 预订生命周期管理器：独占预订状态流转的入口。
//
// 并发纪律：同一车辆的 create/approve/return 在车辆锁内执行，
// 数据库写操作包在同一事务里，保证"校验+写入"的原子性；
// 锁等待有上限，超时以冲突错误返回，绝不无限期阻塞。
// 只读查询不加锁，单条语句即一致快照，写路径会再次校验。
type Service struct {
	db       *gorm.DB
	repo     *Repo
	vehicles *vehicle.Repo
	locks    *vehicle.Locks
	pub      event.Publisher
	lockWait time.Duration
	log      logger.Logger
}

func NewService(db *gorm.DB, locks *vehicle.Locks, pub event.Publisher, lockWait time.Duration, log logger.Logger) *Service {
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	return &Service{
		db:       db,
		repo:     NewRepo(db),
		vehicles: vehicle.NewRepo(db),
		locks:    locks,
		pub:      pub,
		lockWait: lockWait,
		log:      log,
	}
}

// Repo 暴露仓储（报表、巡检等只读协作方使用）。
func (s *Service) Repo() *Repo {
	return s.repo
}

// CreateInput 创建预订的入参
type CreateInput struct {
	VehicleID   string
	StartTime   time.Time
	EndTime     time.Time
	Objective   string
	Destination string
}

// Create 提交预订，进入 pending。
// 独占裁决发生在审批时：同窗已有 pending 甚至 approved 的预订
// 并不阻止提交（软占用口径只影响可用性列表）。
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Booking, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, apperr.Validationf("requester required")
	}
	vehicleID := strings.TrimSpace(in.VehicleID)
	if vehicleID == "" {
		return nil, apperr.Validationf("vehicle_id required")
	}
	if err := validateInterval(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, vehicleID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	b := &Booking{
		ID:          uuid.NewString(),
		RequesterID: strings.TrimSpace(actor.ID),
		VehicleID:   vehicleID,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		Objective:   strings.TrimSpace(in.Objective),
		Destination: strings.TrimSpace(in.Destination),
		Status:      StatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.getVehicle(ctx, s.vehicles.WithTx(tx), vehicleID)
		if err != nil {
			return err
		}
		if v.Status == vehicle.StatusMaintenance {
			return apperr.Validationf("vehicle %s is under maintenance", v.LicensePlate)
		}
		return s.repo.WithTx(tx).Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.BookingCreated, b)
	return b, nil
}

// SetStatus 审批动作入口：approve / reject / cancel（仅管理员）。
func (s *Service) SetStatus(ctx context.Context, actor auth.Actor, bookingID string, action Action) (*Booking, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may %s bookings", action)
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperr.Validationf("booking id required")
	}

	switch action {
	case ActionApprove:
		return s.approve(ctx, bookingID)
	case ActionReject:
		return s.transition(ctx, bookingID, StatusRejected, event.BookingRejected)
	case ActionCancel:
		return s.transition(ctx, bookingID, StatusCancelled, event.BookingCancelled)
	default:
		return nil, apperr.Validationf("unknown action %q", action)
	}
}

// approve 批准预订：在车辆锁与事务内重新校验无已批准重叠，
// 并把车辆当前里程记为出车里程。多个重叠的 pending 只有一个能赢得时间窗。
func (s *Service) approve(ctx context.Context, bookingID string) (*Booking, error) {
	current, err := s.get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, current.VehicleID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var approved *Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		b, err := repo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !CanTransition(b.Status, StatusApproved) {
			return apperr.Statef("booking %s is %s, only pending bookings can be approved", b.ID, b.Status)
		}

		conflict, err := repo.FindApprovedOverlap(ctx, b.VehicleID, b.StartTime, b.EndTime, b.ID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return apperr.Conflictf("vehicle already booked from %s to %s",
				conflict.StartTime.Format(time.RFC3339), conflict.EndTime.Format(time.RFC3339))
		}

		v, err := s.getVehicle(ctx, s.vehicles.WithTx(tx), b.VehicleID)
		if err != nil {
			return err
		}

		if err := ApplyTransition(b, StatusApproved, time.Now().UTC()); err != nil {
			return err
		}
		mileage := v.CurrentMileage // 出车里程取审批时刻的值，而非创建时刻
		b.StartMileage = &mileage

		if err := repo.Save(ctx, b); err != nil {
			return err
		}
		approved = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.BookingApproved, approved)
	return approved, nil
}

// transition 驳回/取消：只收缩有效集合，无需重叠校验与车辆锁。
func (s *Service) transition(ctx context.Context, bookingID string, to Status, eventName string) (*Booking, error) {
	var out *Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		b, err := repo.GetByID(ctx, bookingID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundf("booking %s not found", bookingID)
		}
		if err != nil {
			return err
		}
		if err := ApplyTransition(b, to, time.Now().UTC()); err != nil {
			return err
		}
		if err := repo.Save(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventName, out)
	return out, nil
}

// Return 还车：记录收车里程并结束预订，车辆里程随之前进。
// 申请人或管理员可操作。
func (s *Service) Return(ctx context.Context, actor auth.Actor, bookingID string, endMileage int64) (*Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperr.Validationf("booking id required")
	}
	if endMileage < 0 {
		return nil, apperr.Validationf("end_mileage must be non-negative")
	}

	current, err := s.get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.RequesterID != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("booking %s does not belong to actor %s", bookingID, actor.ID)
	}

	release, err := s.locks.Acquire(ctx, current.VehicleID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var completed *Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vehicles := s.vehicles.WithTx(tx)

		b, err := repo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusApproved {
			return apperr.Statef("booking %s is %s, only approved bookings can be returned", b.ID, b.Status)
		}
		if b.StartMileage == nil {
			return apperr.Statef("booking %s has no start mileage recorded", b.ID)
		}
		if endMileage < *b.StartMileage {
			return apperr.Validationf("end_mileage %d is less than start mileage %d", endMileage, *b.StartMileage)
		}

		v, err := s.getVehicle(ctx, vehicles, b.VehicleID)
		if err != nil {
			return err
		}

		if err := ApplyTransition(b, StatusCompleted, time.Now().UTC()); err != nil {
			return err
		}
		b.EndMileage = &endMileage
		if err := repo.Save(ctx, b); err != nil {
			return err
		}

		// 里程计数单调不减：更早窗口的迟到还车不能把计数拉回去
		if endMileage > v.CurrentMileage {
			v.CurrentMileage = endMileage
			if err := vehicles.Save(ctx, v); err != nil {
				return err
			}
		}
		completed = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.BookingCompleted, completed)
	return completed, nil
}

// AvailableVehicles 查询区间内可用的车辆集合（只读）。
func (s *Service) AvailableVehicles(ctx context.Context, start, end time.Time) ([]vehicle.Vehicle, error) {
	if err := validateInterval(start, end); err != nil {
		return nil, err
	}
	return s.repo.AvailableVehicles(ctx, start.UTC(), end.UTC())
}

// Get 查询单条预订；普通用户只能看自己的。
func (s *Service) Get(ctx context.Context, actor auth.Actor, bookingID string) (*Booking, error) {
	b, err := s.get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.RequesterID != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("booking %s does not belong to actor %s", bookingID, actor.ID)
	}
	return b, nil
}

// List 列出预订：管理员可看全部，普通用户强制过滤为本人。
func (s *Service) List(ctx context.Context, actor auth.Actor, f ListFilter) ([]Booking, int64, error) {
	if !actor.IsAdmin() {
		f.RequesterID = actor.ID
	}
	return s.repo.List(ctx, f)
}

func (s *Service) get(ctx context.Context, bookingID string) (*Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperr.Validationf("booking id required")
	}
	b, err := s.repo.GetByID(ctx, bookingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("booking %s not found", bookingID)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) getVehicle(ctx context.Context, vehicles *vehicle.Repo, vehicleID string) (*vehicle.Vehicle, error) {
	v, err := vehicles.FindByID(ctx, vehicleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("vehicle %s not found", vehicleID)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) publish(ctx context.Context, name string, b *Booking) {
	if s.pub == nil || b == nil {
		return
	}
	e := event.Event{
		Name:        name,
		BookingID:   b.ID,
		VehicleID:   b.VehicleID,
		RequesterID: b.RequesterID,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		EmittedAt:   time.Now().UTC(),
	}
	if err := s.pub.Publish(ctx, e); err != nil && s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"event":      name,
			"booking_id": b.ID,
		}).Warnf("failed to publish event: %v", err)
	}
}

func validateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validationf("start_time and end_time required")
	}
	if !start.Before(end) {
		return apperr.Validationf("start_time must be before end_time")
	}
	return nil
}

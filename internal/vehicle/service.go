package vehicle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
)

// ActiveBookingCounter 查询某车辆上仍处于有效状态（pending/approved）的预订数。
// 由预订仓储实现；车辆注册表借此拒绝删除仍被引用的车辆。
type ActiveBookingCounter interface {
	CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error)
}

// Service 车辆注册表：持有车辆档案、运行状态与里程计数。
// 里程与运行状态只允许两个入口修改：生命周期管理器（还车时）
// 与保养流程（本包 ServiceVehicle / SetStatus）。
type Service struct {
	repo     *Repo
	locks    *Locks
	active   ActiveBookingCounter
	lockWait time.Duration
}

func NewService(repo *Repo, locks *Locks, active ActiveBookingCounter, lockWait time.Duration) *Service {
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	return &Service{repo: repo, locks: locks, active: active, lockWait: lockWait}
}

// Repo 暴露底层仓储（生命周期管理器在事务里更新里程用）。
func (s *Service) Repo() *Repo {
	return s.repo
}

// Locks 暴露车辆锁组（与生命周期管理器共用同一组锁）。
func (s *Service) Locks() *Locks {
	return s.locks
}

// AddInput 新增车辆入参
type AddInput struct {
	LicensePlate       string
	Brand              string
	Model              string
	Color              string
	CurrentMileage     int64
	LastServiceMileage int64
}

// Add 新增车辆（仅管理员）。
func (s *Service) Add(ctx context.Context, actor auth.Actor, in AddInput) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may add vehicles")
	}
	plate := strings.TrimSpace(in.LicensePlate)
	if plate == "" {
		return nil, apperr.Validationf("license_plate required")
	}
	if in.CurrentMileage < 0 || in.LastServiceMileage < 0 {
		return nil, apperr.Validationf("mileage must be non-negative")
	}
	if in.LastServiceMileage > in.CurrentMileage {
		return nil, apperr.Validationf("last_service_mileage %d exceeds current_mileage %d",
			in.LastServiceMileage, in.CurrentMileage)
	}

	existing, err := s.repo.FindByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflictf("vehicle with license plate %s already exists", plate)
	}

	v := &Vehicle{
		ID:                 uuid.NewString(),
		LicensePlate:       plate,
		Brand:              strings.TrimSpace(in.Brand),
		Model:              strings.TrimSpace(in.Model),
		Color:              strings.TrimSpace(in.Color),
		CurrentMileage:     in.CurrentMileage,
		LastServiceMileage: in.LastServiceMileage,
		Status:             StatusAvailable,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateInput 更新车辆入参（nil字段表示不修改）
type UpdateInput struct {
	LicensePlate *string
	Brand        *string
	Model        *string
	Color        *string
}

// Update 更新车辆档案字段（仅管理员）。里程与状态走专用入口。
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, in UpdateInput) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may update vehicles")
	}

	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.LicensePlate != nil {
		plate := strings.TrimSpace(*in.LicensePlate)
		if plate == "" {
			return nil, apperr.Validationf("license_plate must not be empty")
		}
		if plate != v.LicensePlate {
			existing, err := s.repo.FindByPlate(ctx, plate)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, apperr.Conflictf("vehicle with license plate %s already exists", plate)
			}
			v.LicensePlate = plate
		}
	}
	if in.Brand != nil {
		v.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Model != nil {
		v.Model = strings.TrimSpace(*in.Model)
	}
	if in.Color != nil {
		v.Color = strings.TrimSpace(*in.Color)
	}

	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetStatus 管理员手动设置运行状态（例如临时送修）。
// 维修状态始终被可用性引擎尊重；里程到期信号只是建议，不在此阻断。
func (s *Service) SetStatus(ctx context.Context, actor auth.Actor, id string, status Status) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may change vehicle status")
	}
	if !status.Valid() {
		return nil, apperr.Validationf("invalid vehicle status %q", status)
	}

	release, err := s.locks.Acquire(ctx, id, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Status = status
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ServiceVehicle 登记一次保养：上次保养里程对齐到当前里程，
// 维修状态恢复为可用。重复调用等价于调用一次。
func (s *Service) ServiceVehicle(ctx context.Context, actor auth.Actor, id string) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may service vehicles")
	}

	release, err := s.locks.Acquire(ctx, id, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	v, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	v.LastServiceMileage = v.CurrentMileage
	if v.Status == StatusMaintenance {
		v.Status = StatusAvailable
	}
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete 软删除车辆（仅管理员）；仍有有效预订引用时拒绝。
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if !actor.IsAdmin() {
		return apperr.Forbiddenf("only administrators may delete vehicles")
	}

	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	if s.active != nil {
		n, err := s.active.CountActiveByVehicle(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflictf("vehicle %s still has %d active bookings", id, n)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*Vehicle, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, offset, limit int) ([]Vehicle, int64, error) {
	return s.repo.List(ctx, offset, limit)
}

// ListServiceDue 返回到保养里程的车辆（巡检与报表用，只读推导）。
func (s *Service) ListServiceDue(ctx context.Context, intervalKM int64) ([]Vehicle, error) {
	vehicles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	due := make([]Vehicle, 0)
	for i := range vehicles {
		if ServiceDue(&vehicles[i], intervalKM) {
			due = append(due, vehicles[i])
		}
	}
	return due, nil
}

func (s *Service) get(ctx context.Context, id string) (*Vehicle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validationf("vehicle id required")
	}
	v, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("vehicle %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

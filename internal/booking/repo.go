package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// WithTx 返回绑定到指定事务的Repo。
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Create(ctx context.Context, b *Booking) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(b).Error
}

func (r *Repo) Save(ctx context.Context, b *Booking) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(b).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Booking, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var b Booking
	if err := db.Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListFilter 查询条件
type ListFilter struct {
	RequesterID string
	VehicleID   string
	Status      Status
	Offset      int
	Limit       int
}

// List 按申请人/车辆/状态过滤 + 分页，新预订在前。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := db.Model(&Booking{})
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []Booking
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindApprovedOverlap 查找同车辆上与 [start, end) 严格重叠的已批准预订。
// 与 Overlaps 同判据的SQL形式：start_a < end_b AND start_b < end_a。
// 不存在返回 (nil, nil)。
func (r *Repo) FindApprovedOverlap(ctx context.Context, vehicleID string, start, end time.Time, excludeID string) (*Booking, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	q := db.Where("vehicle_id = ?", vehicleID).
		Where("status = ?", StatusApproved).
		Where("start_time < ? AND end_time > ?", end, start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var b Booking
	err := q.First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountActiveByVehicle 统计车辆上 pending/approved 预订数（删除车辆前的防护）。
func (r *Repo) CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	var n int64
	err := db.Model(&Booking{}).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN ?", ActiveStatuses).
		Count(&n).Error
	return n, err
}

// AvailableVehicles 可用性查询：排除维修中的车辆，再排除
// 在 [start, end) 上存在 pending/approved 预订重叠的车辆。
// 单条语句完成，结果对应同一时刻的一致快照；只读，不加锁。
func (r *Repo) AvailableVehicles(ctx context.Context, start, end time.Time) ([]vehicle.Vehicle, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	sub := db.Model(&Booking{}).
		Select("vehicle_id").
		Where("status IN ?", ActiveStatuses).
		Where("start_time < ? AND end_time > ?", end, start)

	var vehicles []vehicle.Vehicle
	err := db.Model(&vehicle.Vehicle{}).
		Where("status = ?", vehicle.StatusAvailable).
		Where("id NOT IN (?)", sub).
		Order("created_at").
		Find(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// ListOverdue 已批准但结束时间早于 now 的预订（巡检告警用）。
func (r *Repo) ListOverdue(ctx context.Context, now time.Time) ([]Booking, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var bookings []Booking
	err := db.Where("status = ?", StatusApproved).
		Where("end_time < ?", now).
		Order("end_time").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// VehicleCount 报表行：某车辆的预订总数
type VehicleCount struct {
	VehicleID string
	Count     int64
}

// CountByVehicle 各车辆预订量（报表用）。
func (r *Repo) CountByVehicle(ctx context.Context) ([]VehicleCount, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rows []VehicleCount
	err := db.Model(&Booking{}).
		Select("vehicle_id, COUNT(id) AS count").
		Group("vehicle_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Count 预订总数
func (r *Repo) Count(ctx context.Context) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	var n int64
	err := db.Model(&Booking{}).Count(&n).Error
	return n, err
}

// ListStartTimes 所有预订的开始时间。
// 月度聚合在Go侧完成，避免依赖具体数据库的日期格式化函数。
func (r *Repo) ListStartTimes(ctx context.Context) ([]time.Time, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var times []time.Time
	err := db.Model(&Booking{}).Order("start_time").Pluck("start_time", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

// ListCompletedWithMileage 已完成且两端里程齐全的预订（行驶里程报表用）。
func (r *Repo) ListCompletedWithMileage(ctx context.Context) ([]Booking, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var bookings []Booking
	err := db.Where("status = ?", StatusCompleted).
		Where("start_mileage IS NOT NULL AND end_mileage IS NOT NULL").
		Order("completed_at").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

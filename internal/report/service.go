package report

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FleetLinkBook/FleetLinkBook/internal/booking"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/logger"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

const (
	summaryCacheKey = "fleetlink:report:summary"
	summaryCacheTTL = 5 * time.Minute
)

// VehicleUsage 单车使用统计
type VehicleUsage struct {
	VehicleID    string `json:"vehicle_id"`
	LicensePlate string `json:"license_plate"`
	Bookings     int64  `json:"bookings"`
}

// MonthlyCount 月度预订量（月份格式 2006-01）
type MonthlyCount struct {
	Month    string `json:"month"`
	Bookings int64  `json:"bookings"`
}

// Summary 运营报表
type Summary struct {
	TotalVehicles   int64          `json:"total_vehicles"`
	TotalBookings   int64          `json:"total_bookings"`
	TotalDistanceKM int64          `json:"total_distance_km"`
	ByVehicle       []VehicleUsage `json:"by_vehicle"`
	Monthly         []MonthlyCount `json:"monthly"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// Service 报表生成器：聚合预订与车辆数据，结果经 Redis 读穿缓存。
// 缓存只是加速，Redis 不可用时直接落库计算。
type Service struct {
	bookings *booking.Repo
	vehicles *vehicle.Repo
	rdb      *redis.Client
	log      logger.Logger
}

func NewService(bookings *booking.Repo, vehicles *vehicle.Repo, rdb *redis.Client, log logger.Logger) *Service {
	return &Service{bookings: bookings, vehicles: vehicles, rdb: rdb, log: log}
}

// Summary 生成运营报表（仅管理员）。
func (s *Service) Summary(ctx context.Context, actor auth.Actor) (*Summary, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may view reports")
	}

	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	out, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, out)
	return out, nil
}

// Invalidate 丢弃缓存（写路径变更后由调用方触发）。
func (s *Service) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, summaryCacheKey).Err(); err != nil && s.log != nil {
		s.log.Warnf("failed to invalidate report cache: %v", err)
	}
}

func (s *Service) build(ctx context.Context) (*Summary, error) {
	vehicles, err := s.vehicles.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	plates := make(map[string]string, len(vehicles))
	for i := range vehicles {
		plates[vehicles[i].ID] = vehicles[i].LicensePlate
	}

	total, err := s.bookings.Count(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.bookings.CountByVehicle(ctx)
	if err != nil {
		return nil, err
	}
	byVehicle := make([]VehicleUsage, 0, len(counts))
	for _, c := range counts {
		byVehicle = append(byVehicle, VehicleUsage{
			VehicleID:    c.VehicleID,
			LicensePlate: plates[c.VehicleID],
			Bookings:     c.Count,
		})
	}
	sort.Slice(byVehicle, func(i, j int) bool {
		if byVehicle[i].Bookings != byVehicle[j].Bookings {
			return byVehicle[i].Bookings > byVehicle[j].Bookings
		}
		return byVehicle[i].VehicleID < byVehicle[j].VehicleID
	})

	starts, err := s.bookings.ListStartTimes(ctx)
	if err != nil {
		return nil, err
	}
	monthly := aggregateMonthly(starts)

	completed, err := s.bookings.ListCompletedWithMileage(ctx)
	if err != nil {
		return nil, err
	}
	var distance int64
	for i := range completed {
		if d, ok := completed[i].Distance(); ok {
			distance += d
		}
	}

	return &Summary{
		TotalVehicles:   int64(len(vehicles)),
		TotalBookings:   total,
		TotalDistanceKM: distance,
		ByVehicle:       byVehicle,
		Monthly:         monthly,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// aggregateMonthly 在Go侧按月聚合，月份升序。
func aggregateMonthly(starts []time.Time) []MonthlyCount {
	byMonth := make(map[string]int64)
	for _, ts := range starts {
		byMonth[ts.UTC().Format("2006-01")]++
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthlyCount, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlyCount{Month: m, Bookings: byMonth[m]})
	}
	return out
}

func (s *Service) fromCache(ctx context.Context) *Summary {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, summaryCacheKey).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		if s.log != nil {
			s.log.Warnf("report cache read failed: %v", err)
		}
		return nil
	}
	var out Summary
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

func (s *Service) toCache(ctx context.Context, sum *Summary) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, summaryCacheKey, raw, summaryCacheTTL).Err(); err != nil && s.log != nil {
		s.log.Warnf("report cache write failed: %v", err)
	}
}

package setting

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/FleetLinkBook/FleetLinkBook/internal/common/apperr"
	"github.com/FleetLinkBook/FleetLinkBook/internal/common/auth"
	"github.com/FleetLinkBook/FleetLinkBook/internal/vehicle"
)

// Store 系统设置存取。读缺省回退，写仅管理员。
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get 读取设置值；不存在返回 ("", nil)。
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var row Setting
	err := s.db.WithContext(ctx).Where("setting_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// Set 写入设置（仅管理员）。
func (s *Store) Set(ctx context.Context, actor auth.Actor, key, value string) error {
	if !actor.IsAdmin() {
		return apperr.Forbiddenf("only administrators may change settings")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return apperr.Validationf("setting key required")
	}
	if key == KeyMaintenanceIntervalKM {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n <= 0 {
			return apperr.Validationf("%s must be a positive integer", KeyMaintenanceIntervalKM)
		}
	}
	row := Setting{Key: key, Value: strings.TrimSpace(value)}
	return s.db.WithContext(ctx).Save(&row).Error
}

// List 全部设置（管理后台用）。
func (s *Store) List(ctx context.Context, actor auth.Actor) ([]Setting, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Forbiddenf("only administrators may list settings")
	}
	var rows []Setting
	err := s.db.WithContext(ctx).Order("setting_key").Find(&rows).Error
	return rows, err
}

// MaintenanceIntervalKM 保养里程间隔：设置值优先，非法或缺失时回退默认值。
func (s *Store) MaintenanceIntervalKM(ctx context.Context) int64 {
	raw, err := s.Get(ctx, KeyMaintenanceIntervalKM)
	if err != nil || raw == "" {
		return vehicle.DefaultMaintenanceIntervalKM
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return vehicle.DefaultMaintenanceIntervalKM
	}
	return n
}

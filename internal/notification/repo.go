package notification

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, n *Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListForUser 用户本人的通知，新的在前；includeBroadcast 时并入管理员广播。
func (r *Repo) ListForUser(ctx context.Context, userID string, includeBroadcast bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Model(&Notification{})
	if includeBroadcast {
		q = q.Where("user_id = ? OR user_id = ''", userID)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	var rows []Notification
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) MarkRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

func (r *Repo) UnreadCount(ctx context.Context, userID string, includeBroadcast bool) (int64, error) {
	q := r.db.WithContext(ctx).Model(&Notification{}).Where("is_read = ?", false)
	if includeBroadcast {
		q = q.Where("user_id = ? OR user_id = ''", userID)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// HasUnread 是否已有同类未读通知指向同一对象（巡检去重用）。
func (r *Repo) HasUnread(ctx context.Context, kind Kind, refID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("kind = ? AND ref_id = ? AND is_read = ?", kind, refID, false).
		Count(&n).Error
	return n > 0, err
}

package notification

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	CreateInApp(ctx context.Context, n *InAppNotification) error
	ListInApp(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]InAppNotification, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)

	SaveDeviceToken(ctx context.Context, t *FCMDeviceToken) error
	ActiveTokens(ctx context.Context, userID uint) ([]string, error)
	RemoveDeviceToken(ctx context.Context, userID uint, token string) error
	DeactivateTokens(ctx context.Context, tokens []string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateInApp(ctx context.Context, n *InAppNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *repository) ListInApp(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]InAppNotification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var items []InAppNotification
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error
	return items, err
}

func (r *repository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

func (r *repository) MarkRead(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).Model(&InAppNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&InAppNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// SaveDeviceToken moves an existing token to the caller and reactivates it.
func (r *repository) SaveDeviceToken(ctx context.Context, t *FCMDeviceToken) error {
	t.IsActive = true
	t.LastUsedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_type", "device_name", "is_active", "last_used_at", "updated_at"}),
	}).Create(t).Error
}

func (r *repository) ActiveTokens(ctx context.Context, userID uint) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&FCMDeviceToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("device_token", &tokens).Error
	return tokens, err
}

func (r *repository) RemoveDeviceToken(ctx context.Context, userID uint, token string) error {
	res := r.db.WithContext(ctx).Model(&FCMDeviceToken{}).
		Where("user_id = ? AND device_token = ?", userID, token).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) DeactivateTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&FCMDeviceToken{}).
		Where("device_token IN ?", tokens).
		Update("is_active", false).Error
}

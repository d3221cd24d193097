package db

import (
	"context"

	"github.com/fitpair/coachlink/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apiError "github.com/fitpair/coachlink/errors"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsForUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uint) error
	CountUnreadNotifications(ctx context.Context, userID uint) (int64, error)
}

type notificationRepo struct {
	DB *gorm.DB
}

func NewNotificationRepo(db *GormDB) NotificationRepository {
	return &notificationRepo{db.DB}
}

func (r *notificationRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	err := r.DB.WithContext(ctx).Create(n).Error
	return errors.Wrap(err, "could not create notification")
}

func (r *notificationRepo) ListNotificationsForUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var notifications []models.Notification
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list notifications")
	}
	return notifications, nil
}

func (r *notificationRepo) MarkNotificationRead(ctx context.Context, id, userID uint) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return errors.Wrap(res.Error, "could not mark notification read")
	}
	if res.RowsAffected == 0 {
		return apiError.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepo) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, errors.Wrap(err, "could not count unread notifications")
}

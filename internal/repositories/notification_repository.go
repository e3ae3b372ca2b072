package repositories

import (
	"time"

	"github.com/shafin96/pulsegram/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification event storage
type NotificationRepository interface {
	Create(notification *models.Notification) error
	RecentByRecipient(recipientID uint, limit int) ([]models.Notification, error)
	UnreadCount(recipientID uint) (int64, error)
	MarkRead(recipientID uint, ids []string, at time.Time) error
	MarkAllRead(recipientID uint, at time.Time) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

// RecentByRecipient returns the recipient's newest events, newest first,
// capped at limit. This is the raw window the feed aggregation runs over.
func (r *postgresNotificationRepository) RecentByRecipient(recipientID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// UnreadCount counts every unread row for the recipient, not just the ones
// inside the aggregation window.
func (r *postgresNotificationRepository) UnreadCount(recipientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	return count, err
}

// MarkRead sets read_at on the given ids. The recipient filter makes marking
// someone else's events a silent no-op, and the read_at IS NULL guard keeps
// already-set timestamps untouched so repeated calls are idempotent.
func (r *postgresNotificationRepository) MarkRead(recipientID uint, ids []string, at time.Time) error {
	return r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND id IN ? AND read_at IS NULL", recipientID, ids).
		Update("read_at", at).Error
}

func (r *postgresNotificationRepository) MarkAllRead(recipientID uint, at time.Time) error {
	return r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Update("read_at", at).Error
}

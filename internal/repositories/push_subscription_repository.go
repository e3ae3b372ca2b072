package repositories

import (
	"github.com/google/uuid"
	"github.com/shafin96/pulsegram/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushSubscriptionRepository defines the interface for delivery-endpoint storage
type PushSubscriptionRepository interface {
	Upsert(sub *models.PushSubscription) error
	ByRecipient(recipientID uint) ([]models.PushSubscription, error)
	DeleteByEndpoint(recipientID uint, endpoint string) error
}

type postgresPushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPostgresPushSubscriptionRepository(db *gorm.DB) PushSubscriptionRepository {
	return &postgresPushSubscriptionRepository{db: db}
}

// Upsert inserts the subscription or, when the endpoint is already
// registered, refreshes its keys and owner in place.
func (r *postgresPushSubscriptionRepository) Upsert(sub *models.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"recipient_id", "p256dh", "auth", "updated_at"}),
	}).Create(sub).Error
}

func (r *postgresPushSubscriptionRepository) ByRecipient(recipientID uint) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.Where("recipient_id = ?", recipientID).Find(&subs).Error
	return subs, err
}

func (r *postgresPushSubscriptionRepository) DeleteByEndpoint(recipientID uint, endpoint string) error {
	return r.db.Where("recipient_id = ? AND endpoint = ?", recipientID, endpoint).
		Delete(&models.PushSubscription{}).Error
}

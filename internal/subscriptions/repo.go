package subscriptions

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
)

// Repository persists provider subscription state keyed by the provider id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, subscription *models.Subscription) error
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert writes the full subscription row, overwriting every mutable column
// so replays and out-of-order updates converge on the latest payload.
func (r *repository) Upsert(ctx context.Context, subscription *models.Subscription) error {
	subscription.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "status", "price_id", "quantity", "cancel_at_period_end",
				"created", "current_period_start", "current_period_end",
				"ended_at", "cancel_at", "canceled_at", "trial_start", "trial_end",
				"metadata", "updated_at",
			}),
		}).
		Create(subscription).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := r.db.WithContext(ctx).First(&subscription, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

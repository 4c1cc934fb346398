package customers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
)

// Repository persists the user to provider-customer mapping. One row per
// user; repeated upserts rewrite the mapping in place.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
	FindByStripeID(ctx context.Context, stripeCustomerID string) (*models.Customer, error)
	Upsert(ctx context.Context, mapping *models.Customer) error
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

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	var mapping models.Customer
	err := r.db.WithContext(ctx).First(&mapping, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *repository) FindByStripeID(ctx context.Context, stripeCustomerID string) (*models.Customer, error) {
	var mapping models.Customer
	err := r.db.WithContext(ctx).First(&mapping, "stripe_customer_id = ?", stripeCustomerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *repository) Upsert(ctx context.Context, mapping *models.Customer) error {
	mapping.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stripe_customer_id", "updated_at"}),
		}).
		Create(mapping).Error
}

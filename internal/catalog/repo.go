package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
)

// Repository handles product/price persistence. Every write is an upsert or a
// soft deactivation; rows are never deleted so retired prices keep resolving
// for subscriptions that still reference them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertProduct(ctx context.Context, product *models.Product) error
	UpsertPrice(ctx context.Context, price *models.Price) error
	DeactivateProduct(ctx context.Context, id string) error
	DeactivatePrice(ctx context.Context, id string) error
	FindProductByID(ctx context.Context, id string) (*models.Product, error)
	FindPriceByID(ctx context.Context, id string) (*models.Price, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) UpsertProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"active",
			"name",
			"description",
			"image",
			"metadata",
			"updated_at",
		}),
	}).Create(product).Error
}

func (r *repository) UpsertPrice(ctx context.Context, price *models.Price) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id",
			"active",
			"currency",
			"type",
			"unit_amount",
			"interval",
			"interval_count",
			"trial_period_days",
			"metadata",
			"updated_at",
		}),
	}).Create(price).Error
}

func (r *repository) DeactivateProduct(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) DeactivatePrice(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Price{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) FindProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindPriceByID(ctx context.Context, id string) (*models.Price, error) {
	var price models.Price
	if err := r.db.WithContext(ctx).First(&price, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}

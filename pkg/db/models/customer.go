package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer associates a local user with the provider-minted customer id.
// At most one mapping per user; the row is updated in place, never duplicated.
type Customer struct {
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	StripeCustomerID string    `gorm:"column:stripe_customer_id;not null;uniqueIndex"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

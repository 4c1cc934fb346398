package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nateruiz/saasbase-backend/pkg/enums"
)

// Subscription persists provider subscription state per user.
type Subscription struct {
	ID                 string                   `gorm:"column:id;primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	PriceID            *string                  `gorm:"column:price_id;index"`
	Price              *Price                   `gorm:"foreignKey:PriceID;constraint:OnDelete:RESTRICT"`
	Quantity           int                      `gorm:"column:quantity;not null;default:1"`
	CancelAtPeriodEnd  bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	Created            time.Time                `gorm:"column:created;not null"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null"`
	CurrentPeriodEnd   time.Time                `gorm:"column:current_period_end;not null"`
	EndedAt            *time.Time               `gorm:"column:ended_at"`
	CancelAt           *time.Time               `gorm:"column:cancel_at"`
	CanceledAt         *time.Time               `gorm:"column:canceled_at"`
	TrialStart         *time.Time               `gorm:"column:trial_start"`
	TrialEnd           *time.Time               `gorm:"column:trial_end"`
	Metadata           json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

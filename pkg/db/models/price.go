package models

import (
	"encoding/json"
	"time"

	"github.com/nateruiz/saasbase-backend/pkg/enums"
)

// Price mirrors a provider-owned price. Interval fields are populated only
// for recurring prices. UnitAmount is in the smallest currency unit.
type Price struct {
	ID              string                 `gorm:"column:id;primaryKey"`
	ProductID       string                 `gorm:"column:product_id;not null;index"`
	Product         *Product               `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Active          bool                   `gorm:"column:active;not null;default:true"`
	Currency        string                 `gorm:"column:currency;type:char(3);not null"`
	Type            enums.PricingType      `gorm:"column:type;type:pricing_type;not null"`
	UnitAmount      *int64                 `gorm:"column:unit_amount"`
	Interval        *enums.PricingInterval `gorm:"column:interval;type:pricing_plan_interval"`
	IntervalCount   *int                   `gorm:"column:interval_count"`
	TrialPeriodDays *int                   `gorm:"column:trial_period_days"`
	Metadata        json.RawMessage        `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

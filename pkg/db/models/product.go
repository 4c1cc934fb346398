package models

import (
	"encoding/json"
	"time"
)

// Product mirrors a provider-owned product. The provider mints the id; local
// rows are a cache, never the source of truth.
type Product struct {
	ID          string          `gorm:"column:id;primaryKey"`
	Active      bool            `gorm:"column:active;not null;default:true"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Image       *string         `gorm:"column:image"`
	Metadata    json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

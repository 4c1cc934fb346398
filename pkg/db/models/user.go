package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is owned by the auth subsystem; the reconciliation engine only touches
// billing_address and payment_method during enrichment.
type User struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName       *string         `gorm:"column:full_name"`
	BillingAddress json.RawMessage `gorm:"column:billing_address;type:jsonb"`
	PaymentMethod  json.RawMessage `gorm:"column:payment_method;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

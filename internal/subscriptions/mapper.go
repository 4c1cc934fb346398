package subscriptions

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
	"github.com/nateruiz/saasbase-backend/pkg/enums"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
)

// SubscriptionFromStripe maps a provider subscription into the canonical
// model. The status is parsed against the known enumeration but written
// as-is: the provider is the authority on legal transitions.
func SubscriptionFromStripe(sub *stripe.Subscription, userID uuid.UUID) (*models.Subscription, error) {
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription payload is nil")
	}
	if sub.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	status, err := enums.ParseSubscriptionStatus(string(sub.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription status")
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription has no items")
	}
	item := sub.Items.Data[0]

	var priceID *string
	if item.Price != nil && item.Price.ID != "" {
		id := item.Price.ID
		priceID = &id
	}

	quantity := int(item.Quantity)
	if quantity <= 0 {
		quantity = 1
	}

	periodStart := fromUnix(item.CurrentPeriodStart)
	periodEnd := fromUnix(item.CurrentPeriodEnd)
	if periodEnd.Before(periodStart) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "current period ends before it starts")
	}

	metadata, err := marshalMetadata(sub.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal subscription metadata")
	}

	return &models.Subscription{
		ID:                 sub.ID,
		UserID:             userID,
		Status:             status,
		PriceID:            priceID,
		Quantity:           quantity,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Created:            fromUnix(sub.Created),
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		EndedAt:            fromUnixPtr(sub.EndedAt),
		CancelAt:           fromUnixPtr(sub.CancelAt),
		CanceledAt:         fromUnixPtr(sub.CanceledAt),
		TrialStart:         fromUnixPtr(sub.TrialStart),
		TrialEnd:           fromUnixPtr(sub.TrialEnd),
		Metadata:           metadata,
	}, nil
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// fromUnixPtr treats zero as absent, which is how the provider encodes
// unset lifecycle timestamps.
func fromUnixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	ts := fromUnix(sec)
	return &ts
}

func marshalMetadata(metadata map[string]string) (json.RawMessage, error) {
	if len(metadata) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

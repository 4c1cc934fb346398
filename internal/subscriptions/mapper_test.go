package subscriptions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/nateruiz/saasbase-backend/pkg/enums"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
)

func stripeSubscription() *stripe.Subscription {
	return &stripe.Subscription{
		ID:                "sub_123",
		Status:            stripe.SubscriptionStatusTrialing,
		CancelAtPeriodEnd: false,
		Created:           1700000000,
		TrialStart:        1700000000,
		TrialEnd:          1701209600,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					Quantity:           2,
					CurrentPeriodStart: 1700000000,
					CurrentPeriodEnd:   1702592000,
					Price:              &stripe.Price{ID: "price_123"},
				},
			},
		},
		Metadata: map[string]string{"plan": "starter"},
	}
}

func TestSubscriptionFromStripe(t *testing.T) {
	userID := uuid.New()
	row, err := SubscriptionFromStripe(stripeSubscription(), userID)
	require.NoError(t, err)

	assert.Equal(t, "sub_123", row.ID)
	assert.Equal(t, userID, row.UserID)
	assert.Equal(t, enums.SubscriptionStatusTrialing, row.Status)
	require.NotNil(t, row.PriceID)
	assert.Equal(t, "price_123", *row.PriceID)
	assert.Equal(t, 2, row.Quantity)
	assert.False(t, row.CancelAtPeriodEnd)

	assert.Equal(t, time.Unix(1700000000, 0).UTC(), row.Created)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), row.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), row.CurrentPeriodEnd)
	require.NotNil(t, row.TrialStart)
	require.NotNil(t, row.TrialEnd)
	assert.Nil(t, row.EndedAt)
	assert.Nil(t, row.CancelAt)
	assert.Nil(t, row.CanceledAt)
	assert.JSONEq(t, `{"plan":"starter"}`, string(row.Metadata))
}

func TestSubscriptionFromStripe_DefaultsQuantity(t *testing.T) {
	sub := stripeSubscription()
	sub.Items.Data[0].Quantity = 0

	row, err := SubscriptionFromStripe(sub, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, row.Quantity)
}

func TestSubscriptionFromStripe_Invalid(t *testing.T) {
	userID := uuid.New()

	cases := map[string]func() (*stripe.Subscription, uuid.UUID){
		"nil payload": func() (*stripe.Subscription, uuid.UUID) {
			return nil, userID
		},
		"nil user": func() (*stripe.Subscription, uuid.UUID) {
			return stripeSubscription(), uuid.Nil
		},
		"unknown status": func() (*stripe.Subscription, uuid.UUID) {
			sub := stripeSubscription()
			sub.Status = stripe.SubscriptionStatus("limbo")
			return sub, userID
		},
		"no items": func() (*stripe.Subscription, uuid.UUID) {
			sub := stripeSubscription()
			sub.Items = &stripe.SubscriptionItemList{}
			return sub, userID
		},
		"period ends before start": func() (*stripe.Subscription, uuid.UUID) {
			sub := stripeSubscription()
			sub.Items.Data[0].CurrentPeriodStart = 1702592000
			sub.Items.Data[0].CurrentPeriodEnd = 1700000000
			return sub, userID
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			sub, user := build()
			_, err := SubscriptionFromStripe(sub, user)
			require.Error(t, err)

			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
		})
	}
}

package subscriptions

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/nateruiz/saasbase-backend/pkg/stripe"
)

// StripeSubscriptionClient exposes the subset of Stripe operations required
// by the sync flow.
type StripeSubscriptionClient interface {
	Retrieve(ctx context.Context, id string) (*stripe.Subscription, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the shared Stripe client so the sync service can be
// tested against a fake.
func NewStripeClient(api *pkgstripe.Client) StripeSubscriptionClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

// Retrieve loads a subscription with its default payment method expanded,
// which the billing-details propagation step reads from.
func (w *stripeClientWrapper) Retrieve(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("default_payment_method")
	return subscription.Get(id, params)
}

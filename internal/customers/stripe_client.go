package customers

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"

	pkgstripe "github.com/nateruiz/saasbase-backend/pkg/stripe"
)

// StripeCustomerClient exposes the subset of Stripe customer operations the
// resolution flow needs.
type StripeCustomerClient interface {
	Retrieve(ctx context.Context, id string) (*stripe.Customer, error)
	SearchByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	Create(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	Update(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the shared Stripe client so callers can be tested
// against a fake.
func NewStripeClient(api *pkgstripe.Client) StripeCustomerClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Retrieve(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return customer.Get(id, params)
}

func (w *stripeClientWrapper) SearchByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("email:%q", email),
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}
	iter := customer.Search(params)
	for iter.Next() {
		return iter.Customer(), nil
	}
	return nil, iter.Err()
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (w *stripeClientWrapper) Update(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Update(id, params)
}

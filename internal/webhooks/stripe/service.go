package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
)

type catalogService interface {
	UpsertProduct(ctx context.Context, product *stripe.Product) error
	UpsertPrice(ctx context.Context, price *stripe.Price) error
	DeleteProduct(ctx context.Context, product *stripe.Product) error
	DeletePrice(ctx context.Context, price *stripe.Price) error
}

type subscriptionSyncer interface {
	SyncFromStripe(ctx context.Context, subscriptionID, customerID string, isCreation bool) error
}

type ServiceParams struct {
	Catalog       catalogService
	Subscriptions subscriptionSyncer
	Logger        *logger.Logger
}

// Service routes verified events to the handler for their type. Only the
// fixed allow-list below is handled; anything else is rejected loudly so
// unexpected provider configuration shows up in delivery dashboards instead
// of being silently acknowledged.
type Service struct {
	catalog       catalogService
	subscriptions subscriptionSyncer
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog service required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service required")
	}
	return &Service{
		catalog:       params.Catalog,
		subscriptions: params.Subscriptions,
		logg:          params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeProductCreated, stripe.EventTypeProductUpdated:
		product, err := decodeProduct(event)
		if err != nil {
			return err
		}
		return s.catalog.UpsertProduct(ctx, product)

	case stripe.EventTypeProductDeleted:
		product, err := decodeProduct(event)
		if err != nil {
			return err
		}
		return s.catalog.DeleteProduct(ctx, product)

	case stripe.EventTypePriceCreated, stripe.EventTypePriceUpdated:
		price, err := decodePrice(event)
		if err != nil {
			return err
		}
		return s.catalog.UpsertPrice(ctx, price)

	case stripe.EventTypePriceDeleted:
		price, err := decodePrice(event)
		if err != nil {
			return err
		}
		return s.catalog.DeletePrice(ctx, price)

	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		if sub.ID == "" || sub.Customer == nil || sub.Customer.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription event missing ids")
		}
		isCreation := event.Type == stripe.EventTypeCustomerSubscriptionCreated
		return s.subscriptions.SyncFromStripe(ctx, sub.ID, sub.Customer.ID, isCreation)

	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutSession(ctx, event)

	default:
		return pkgerrors.New(pkgerrors.CodeUnsupportedEvent,
			fmt.Sprintf("unsupported event type: %s", event.Type))
	}
}

// handleCheckoutSession syncs the subscription a subscription-mode checkout
// created. Payment-mode sessions are acknowledged without action; one-off
// purchases have no local state to reconcile.
func (s *Service) handleCheckoutSession(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}

	if session.Mode != stripe.CheckoutSessionModeSubscription {
		if s.logg != nil {
			s.logg.Info(ctx, fmt.Sprintf("checkout session %s mode %s acknowledged", session.ID, session.Mode))
		}
		return nil
	}

	if session.Subscription == nil || session.Subscription.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing subscription id")
	}
	if session.Customer == nil || session.Customer.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing customer id")
	}
	return s.subscriptions.SyncFromStripe(ctx, session.Subscription.ID, session.Customer.ID, true)
}

func decodeProduct(event *stripe.Event) (*stripe.Product, error) {
	var product stripe.Product
	if err := json.Unmarshal(event.Data.Raw, &product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode product event")
	}
	return &product, nil
}

func decodePrice(event *stripe.Event) (*stripe.Price, error) {
	var price stripe.Price
	if err := json.Unmarshal(event.Data.Raw, &price); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode price event")
	}
	return &price, nil
}

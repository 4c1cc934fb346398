package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/nateruiz/saasbase-backend/internal/users"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
)

type executor interface {
	Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error
	Transact(ctx context.Context, op string, fn func(db *gorm.DB) error) error
}

type userResolver interface {
	UserIDByStripeID(ctx context.Context, stripeCustomerID string) (uuid.UUID, error)
}

type customerUpdater interface {
	Update(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type ServiceParams struct {
	Repo           Repository
	UsersRepo      users.Repository
	Resolver       userResolver
	Stripe         StripeSubscriptionClient
	CustomerClient customerUpdater
	Executor       executor
	Logger         *logger.Logger
}

// Service reconciles provider subscription events into the local store.
type Service struct {
	repo      Repository
	usersRepo users.Repository
	resolver  userResolver
	stripe    StripeSubscriptionClient
	customers customerUpdater
	exec      executor
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions repo required")
	}
	if params.UsersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer resolver required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.CustomerClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer client required")
	}
	if params.Executor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "executor required")
	}
	return &Service{
		repo:      params.Repo,
		usersRepo: params.UsersRepo,
		resolver:  params.Resolver,
		stripe:    params.Stripe,
		customers: params.CustomerClient,
		exec:      params.Executor,
		logg:      params.Logger,
	}, nil
}

// SyncFromStripe pulls the subscription from the provider and upserts it
// locally. The owning user is resolved through the customer mapping; a
// missing mapping fails fast and is never retried, because it means the
// customer-creation flow has not run for this customer.
//
// On creation events that carry a complete default payment method, the
// billing details are propagated to the provider customer record and the
// local user row in the same transaction as the subscription write.
func (s *Service) SyncFromStripe(ctx context.Context, subscriptionID, customerID string, isCreation bool) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	customerID = strings.TrimSpace(customerID)
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	userID, err := s.resolver.UserIDByStripeID(ctx, customerID)
	if err != nil {
		return err
	}

	sub, err := s.stripe.Retrieve(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe subscription")
	}

	row, err := SubscriptionFromStripe(sub, userID)
	if err != nil {
		return err
	}

	details := completeBillingDetails(sub.DefaultPaymentMethod)
	if !isCreation || details == nil {
		if err := s.exec.Run(ctx, "upsert subscription "+row.ID, func(dbh *gorm.DB) error {
			return s.repo.WithTx(dbh).Upsert(ctx, row)
		}); err != nil {
			return err
		}
		s.logSynced(ctx, row.ID, string(row.Status))
		return nil
	}

	// Provider first: if the customer update fails nothing has been written
	// locally and the delivery can be replayed whole.
	if _, err := s.customers.Update(ctx, customerID, customerUpdateParams(details)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "propagate billing details to stripe customer")
	}

	address, paymentMethod, err := billingSnapshots(details, sub.DefaultPaymentMethod)
	if err != nil {
		return err
	}

	if err := s.exec.Transact(ctx, "upsert subscription with billing details "+row.ID, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, row); err != nil {
			return err
		}
		return s.usersRepo.WithTx(tx).UpdateBillingDetails(ctx, userID, address, paymentMethod)
	}); err != nil {
		return err
	}
	s.logSynced(ctx, row.ID, string(row.Status))
	return nil
}

func (s *Service) logSynced(ctx context.Context, id, status string) {
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("subscription %s synced (status=%s)", id, status))
	}
}

type billingDetails struct {
	name    string
	phone   string
	address *stripe.Address
}

// completeBillingDetails returns the payment method's billing details only
// when name, phone, and address are all present. Partial data is treated as
// no data: nothing is propagated rather than a fragment.
func completeBillingDetails(pm *stripe.PaymentMethod) *billingDetails {
	if pm == nil || pm.BillingDetails == nil {
		return nil
	}
	bd := pm.BillingDetails
	name := strings.TrimSpace(bd.Name)
	phone := strings.TrimSpace(bd.Phone)
	if name == "" || phone == "" || bd.Address == nil {
		return nil
	}
	return &billingDetails{name: name, phone: phone, address: bd.Address}
}

func customerUpdateParams(details *billingDetails) *stripe.CustomerParams {
	return &stripe.CustomerParams{
		Name:  stripe.String(details.name),
		Phone: stripe.String(details.phone),
		Address: &stripe.AddressParams{
			Line1:      stripe.String(details.address.Line1),
			Line2:      stripe.String(details.address.Line2),
			City:       stripe.String(details.address.City),
			State:      stripe.String(details.address.State),
			PostalCode: stripe.String(details.address.PostalCode),
			Country:    stripe.String(details.address.Country),
		},
	}
}

func billingSnapshots(details *billingDetails, pm *stripe.PaymentMethod) (json.RawMessage, json.RawMessage, error) {
	address, err := json.Marshal(details.address)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal billing address")
	}

	snapshot := map[string]any{
		"id":   pm.ID,
		"type": string(pm.Type),
	}
	if pm.Card != nil {
		snapshot["card"] = map[string]any{
			"brand":     string(pm.Card.Brand),
			"last4":     pm.Card.Last4,
			"exp_month": pm.Card.ExpMonth,
			"exp_year":  pm.Card.ExpYear,
		}
	}
	paymentMethod, err := json.Marshal(snapshot)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal payment method")
	}
	return address, paymentMethod, nil
}

package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
)

type executor interface {
	Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error
}

type ServiceParams struct {
	Repo     Repository
	Executor executor
	Stripe   StripeCustomerClient
	Logger   *logger.Logger
}

// Service resolves a local user to a provider customer id, creating the
// provider record only when no existing one can be adopted.
type Service struct {
	repo   Repository
	exec   executor
	stripe StripeCustomerClient
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customers repo required")
	}
	if params.Executor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "executor required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		repo:   params.Repo,
		exec:   params.Executor,
		stripe: params.Stripe,
		logg:   params.Logger,
	}, nil
}

// CreateOrRetrieve returns the provider customer id for the user. Resolution
// order: existing mapping that still resolves on the provider, then a
// provider-side search by email, then a fresh customer. The mapping row is
// rewritten in place afterwards so replays converge on one row per user.
func (s *Service) CreateOrRetrieve(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	var mapping *models.Customer
	if err := s.exec.Run(ctx, "find customer mapping "+userID.String(), func(dbh *gorm.DB) error {
		found, err := s.repo.WithTx(dbh).FindByUserID(ctx, userID)
		mapping = found
		return err
	}); err != nil {
		return "", err
	}

	if mapping != nil {
		resolved, err := s.resolves(ctx, mapping.StripeCustomerID)
		if err != nil {
			return "", err
		}
		if resolved {
			return mapping.StripeCustomerID, nil
		}
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("mapped customer %s no longer resolves, re-resolving by email", mapping.StripeCustomerID))
		}
	}

	customerID, err := s.adoptOrCreate(ctx, userID, email)
	if err != nil {
		return "", err
	}

	if err := s.exec.Run(ctx, "upsert customer mapping "+userID.String(), func(dbh *gorm.DB) error {
		return s.repo.WithTx(dbh).Upsert(ctx, &models.Customer{
			UserID:           userID,
			StripeCustomerID: customerID,
		})
	}); err != nil {
		return "", err
	}
	return customerID, nil
}

// UserIDByStripeID resolves the owning local user for a provider customer id.
// A missing mapping is returned as a not-found error and is never retried:
// subscriptions for unmapped customers indicate an ordering problem upstream.
func (s *Service) UserIDByStripeID(ctx context.Context, stripeCustomerID string) (uuid.UUID, error) {
	if stripeCustomerID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe customer id required")
	}

	var mapping *models.Customer
	if err := s.exec.Run(ctx, "find customer mapping for "+stripeCustomerID, func(dbh *gorm.DB) error {
		found, err := s.repo.WithTx(dbh).FindByStripeID(ctx, stripeCustomerID)
		mapping = found
		return err
	}); err != nil {
		return uuid.Nil, err
	}
	if mapping == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no user mapping for stripe customer %s", stripeCustomerID))
	}
	return mapping.UserID, nil
}

func (s *Service) adoptOrCreate(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	match, err := s.stripe.SearchByEmail(ctx, email)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search stripe customer by email")
	}
	if match != nil && match.ID != "" {
		return match.ID, nil
	}

	created, err := s.stripe.Create(ctx, &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"user_id": userID.String(),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	if created == nil || created.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "stripe customer id missing")
	}
	return created.ID, nil
}

// resolves reports whether the provider still knows the customer. A deleted
// or missing record means the mapping is stale, not that the call failed.
func (s *Service) resolves(ctx context.Context, customerID string) (bool, error) {
	existing, err := s.stripe.Retrieve(ctx, customerID)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe customer")
	}
	return existing != nil && !existing.Deleted, nil
}

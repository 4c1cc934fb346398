package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/nateruiz/saasbase-backend/pkg/db"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
)

const (
	defaultFKRetryAttempts = 3
	defaultFKRetryDelay    = 2 * time.Second
)

type executor interface {
	Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error
}

type ServiceParams struct {
	Repo     Repository
	Executor executor
	Logger   *logger.Logger

	// FK-race budget: how often a price write racing ahead of its parent
	// product is replayed before the event is surfaced as failed.
	FKRetryAttempts int
	FKRetryDelay    time.Duration
}

// Service reconciles provider product/price events into the local mirror.
type Service struct {
	repo       Repository
	exec       executor
	logg       *logger.Logger
	fkAttempts int
	fkDelay    time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repo required")
	}
	if params.Executor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "executor required")
	}
	attempts := params.FKRetryAttempts
	if attempts <= 0 {
		attempts = defaultFKRetryAttempts
	}
	delay := params.FKRetryDelay
	if delay <= 0 {
		delay = defaultFKRetryDelay
	}
	return &Service{
		repo:       params.Repo,
		exec:       params.Executor,
		logg:       params.Logger,
		fkAttempts: attempts,
		fkDelay:    delay,
	}, nil
}

// UpsertProduct applies a product.created/updated event. Replays are safe:
// the write overwrites every mutable column keyed by the provider id.
func (s *Service) UpsertProduct(ctx context.Context, product *stripe.Product) error {
	row, err := ProductFromStripe(product)
	if err != nil {
		return err
	}
	return s.exec.Run(ctx, "upsert product "+row.ID, func(dbh *gorm.DB) error {
		return s.repo.WithTx(dbh).UpsertProduct(ctx, row)
	})
}

// UpsertPrice applies a price.created/updated event. A price can be delivered
// before its parent product has committed; that specific failure is a
// foreign-key violation and is replayed on a fixed delay until the budget is
// spent. Connectivity failures are already absorbed below by the executor.
func (s *Service) UpsertPrice(ctx context.Context, price *stripe.Price) error {
	row, err := PriceFromStripe(price)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.fkAttempts; attempt++ {
		if attempt > 0 {
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("price %s waiting on product %s (attempt %d)", row.ID, row.ProductID, attempt))
			}
			if err := sleep(ctx, s.fkDelay); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price upsert canceled")
			}
		}

		lastErr = s.exec.Run(ctx, "upsert price "+row.ID, func(dbh *gorm.DB) error {
			return s.repo.WithTx(dbh).UpsertPrice(ctx, row)
		})
		if lastErr == nil {
			return nil
		}
		if !db.IsForeignKeyViolation(lastErr) {
			return lastErr
		}
	}

	return pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr,
		fmt.Sprintf("price %s insert/update failed after %d retries", row.ID, s.fkAttempts))
}

// DeleteProduct applies a product.deleted event as a soft retirement.
func (s *Service) DeleteProduct(ctx context.Context, product *stripe.Product) error {
	if product == nil || product.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.exec.Run(ctx, "deactivate product "+product.ID, func(dbh *gorm.DB) error {
		return s.repo.WithTx(dbh).DeactivateProduct(ctx, product.ID)
	})
}

// DeletePrice applies a price.deleted event as a soft retirement so that
// subscriptions pointing at the price keep resolving.
func (s *Service) DeletePrice(ctx context.Context, price *stripe.Price) error {
	if price == nil || price.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "price id required")
	}
	return s.exec.Run(ctx, "deactivate price "+price.ID, func(dbh *gorm.DB) error {
		return s.repo.WithTx(dbh).DeactivatePrice(ctx, price.ID)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

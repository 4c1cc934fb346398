package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
)

type passthroughExecutor struct{}

func (passthroughExecutor) Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return fn(nil)
}

type stubRepo struct {
	Repository

	upsertPriceCalls int
	upsertPriceErrs  []error

	upsertProductCalls int
	deactivated        []string
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) UpsertProduct(ctx context.Context, product *models.Product) error {
	s.upsertProductCalls++
	return nil
}

func (s *stubRepo) UpsertPrice(ctx context.Context, price *models.Price) error {
	s.upsertPriceCalls++
	if len(s.upsertPriceErrs) > 0 {
		err := s.upsertPriceErrs[0]
		s.upsertPriceErrs = s.upsertPriceErrs[1:]
		return err
	}
	return nil
}

func (s *stubRepo) DeactivateProduct(ctx context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *stubRepo) DeactivatePrice(ctx context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:            repo,
		Executor:        passthroughExecutor{},
		FKRetryAttempts: 2,
		FKRetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	return svc
}

func recurringPriceEvent(id, productID string) *stripe.Price {
	return &stripe.Price{
		ID:         id,
		Active:     true,
		Currency:   stripe.CurrencyUSD,
		Product:    &stripe.Product{ID: productID},
		Type:       stripe.PriceTypeRecurring,
		UnitAmount: 1500,
		Recurring: &stripe.PriceRecurring{
			Interval:      stripe.PriceRecurringIntervalMonth,
			IntervalCount: 1,
		},
	}
}

func TestService_UpsertProduct(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)

	err := svc.UpsertProduct(context.Background(), &stripe.Product{ID: "prod_123", Name: "Starter"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.upsertProductCalls)
}

func TestService_UpsertPriceRetriesMissingParent(t *testing.T) {
	fkErr := errors.New("insert into prices: FOREIGN KEY constraint failed")
	repo := &stubRepo{upsertPriceErrs: []error{fkErr, fkErr}}
	svc := newTestService(t, repo)

	err := svc.UpsertPrice(context.Background(), recurringPriceEvent("price_123", "prod_123"))
	require.NoError(t, err)
	assert.Equal(t, 3, repo.upsertPriceCalls)
}

func TestService_UpsertPriceExhaustsRetryBudget(t *testing.T) {
	fkErr := errors.New("insert into prices: FOREIGN KEY constraint failed")
	repo := &stubRepo{upsertPriceErrs: []error{fkErr, fkErr, fkErr}}
	svc := newTestService(t, repo)

	err := svc.UpsertPrice(context.Background(), recurringPriceEvent("price_123", "prod_123"))
	require.Error(t, err)
	assert.Equal(t, 3, repo.upsertPriceCalls)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())
}

func TestService_UpsertPriceDoesNotRetryOtherErrors(t *testing.T) {
	repo := &stubRepo{upsertPriceErrs: []error{errors.New("CHECK constraint failed: currency")}}
	svc := newTestService(t, repo)

	err := svc.UpsertPrice(context.Background(), recurringPriceEvent("price_123", "prod_123"))
	require.Error(t, err)
	assert.Equal(t, 1, repo.upsertPriceCalls)
}

func TestService_UpsertPriceRejectsMalformedPayload(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)

	err := svc.UpsertPrice(context.Background(), &stripe.Price{ID: "price_123"})
	require.Error(t, err)
	assert.Equal(t, 0, repo.upsertPriceCalls)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestService_DeleteProductAndPrice(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)

	require.NoError(t, svc.DeleteProduct(context.Background(), &stripe.Product{ID: "prod_123"}))
	require.NoError(t, svc.DeletePrice(context.Background(), &stripe.Price{ID: "price_123"}))
	assert.Equal(t, []string{"prod_123", "price_123"}, repo.deactivated)

	err := svc.DeleteProduct(context.Background(), &stripe.Product{})
	require.Error(t, err)
}

type dbExecutor struct {
	dbh *gorm.DB
}

func (e dbExecutor) Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return fn(e.dbh)
}

// lateParentRepo seeds the parent product only after a price write has
// already failed, reproducing a price event landing ahead of its product
// event.
type lateParentRepo struct {
	Repository

	parent   *models.Product
	failures int
}

func (r *lateParentRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *lateParentRepo) UpsertPrice(ctx context.Context, price *models.Price) error {
	err := r.Repository.UpsertPrice(ctx, price)
	if err != nil {
		r.failures++
		_ = r.Repository.UpsertProduct(ctx, r.parent)
	}
	return err
}

func TestService_UpsertPriceRecoversFromEnforcedConstraint(t *testing.T) {
	dbh, err := gorm.Open(sqlite.Open("file:catalog_fk?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, dbh.Exec(`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  active INTEGER NOT NULL DEFAULT 1,
  name TEXT NOT NULL,
  description TEXT,
  image TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, dbh.Exec(`
CREATE TABLE IF NOT EXISTS prices (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products (id),
  active INTEGER NOT NULL DEFAULT 1,
  currency TEXT NOT NULL,
  type TEXT NOT NULL,
  unit_amount INTEGER,
  interval TEXT,
  interval_count INTEGER,
  trial_period_days INTEGER,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)

	repo := &lateParentRepo{Repository: NewRepository(dbh), parent: sampleProduct("prod_late")}
	svc, err := NewService(ServiceParams{
		Repo:            repo,
		Executor:        dbExecutor{dbh: dbh},
		FKRetryAttempts: 2,
		FKRetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpsertPrice(context.Background(), recurringPriceEvent("price_late", "prod_late")))
	assert.Equal(t, 1, repo.failures)

	stored, err := NewRepository(dbh).FindPriceByID(context.Background(), "price_late")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "prod_late", stored.ProductID)
}

func TestService_UpsertPriceCanceledContext(t *testing.T) {
	fkErr := errors.New("insert into prices: FOREIGN KEY constraint failed")
	repo := &stubRepo{upsertPriceErrs: []error{fkErr, fkErr, fkErr}}
	svc := newTestService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.UpsertPrice(ctx, recurringPriceEvent("price_123", "prod_123"))
	require.Error(t, err)
	assert.Equal(t, 1, repo.upsertPriceCalls)
}

package subscriptions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nateruiz/saasbase-backend/internal/users"
	"github.com/nateruiz/saasbase-backend/pkg/db/models"
	"github.com/nateruiz/saasbase-backend/pkg/enums"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:subscriptions_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	subscriptionsTable := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  price_id TEXT,
  quantity INTEGER NOT NULL DEFAULT 1,
  cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
  created DATETIME NOT NULL,
  current_period_start DATETIME NOT NULL,
  current_period_end DATETIME NOT NULL,
  ended_at DATETIME,
  cancel_at DATETIME,
  canceled_at DATETIME,
  trial_start DATETIME,
  trial_end DATETIME,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT,
  billing_address TEXT,
  payment_method TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, stmt := range []string{subscriptionsTable, usersTable} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type testExecutor struct {
	db *gorm.DB
}

func (e testExecutor) Run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return fn(e.db)
}

func (e testExecutor) Transact(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

type fakeResolver struct {
	userID uuid.UUID
	err    error
	calls  int
}

func (f *fakeResolver) UserIDByStripeID(ctx context.Context, stripeCustomerID string) (uuid.UUID, error) {
	f.calls++
	return f.userID, f.err
}

type fakeSubscriptionClient struct {
	sub   *stripe.Subscription
	err   error
	calls int
}

func (f *fakeSubscriptionClient) Retrieve(ctx context.Context, id string) (*stripe.Subscription, error) {
	f.calls++
	return f.sub, f.err
}

type fakeCustomerUpdater struct {
	err    error
	calls  int
	params *stripe.CustomerParams
}

func (f *fakeCustomerUpdater) Update(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	f.calls++
	f.params = params
	return &stripe.Customer{ID: id}, f.err
}

type syncFixture struct {
	db       *gorm.DB
	svc      *Service
	resolver *fakeResolver
	stripe   *fakeSubscriptionClient
	updater  *fakeCustomerUpdater
	userID   uuid.UUID
}

func newSyncFixture(t *testing.T, sub *stripe.Subscription) *syncFixture {
	t.Helper()

	db := setupSubscriptionsTestDB(t)
	userID := uuid.New()
	require.NoError(t, db.Create(&models.User{ID: userID, Email: "jordan@example.com"}).Error)

	resolver := &fakeResolver{userID: userID}
	client := &fakeSubscriptionClient{sub: sub}
	updater := &fakeCustomerUpdater{}

	svc, err := NewService(ServiceParams{
		Repo:           NewRepository(db),
		UsersRepo:      users.NewRepository(db),
		Resolver:       resolver,
		Stripe:         client,
		CustomerClient: updater,
		Executor:       testExecutor{db: db},
	})
	require.NoError(t, err)

	return &syncFixture{db: db, svc: svc, resolver: resolver, stripe: client, updater: updater, userID: userID}
}

func completePaymentMethod() *stripe.PaymentMethod {
	return &stripe.PaymentMethod{
		ID:   "pm_123",
		Type: stripe.PaymentMethodTypeCard,
		Card: &stripe.PaymentMethodCard{
			Brand:    stripe.PaymentMethodCardBrandVisa,
			Last4:    "4242",
			ExpMonth: 12,
			ExpYear:  2030,
		},
		BillingDetails: &stripe.PaymentMethodBillingDetails{
			Name:  "Jordan Smith",
			Phone: "+15035551234",
			Address: &stripe.Address{
				Line1:      "1 Main St",
				City:       "Portland",
				State:      "OR",
				PostalCode: "97201",
				Country:    "US",
			},
		},
	}
}

func TestSyncFromStripe_UpsertsSubscription(t *testing.T) {
	f := newSyncFixture(t, stripeSubscription())

	require.NoError(t, f.svc.SyncFromStripe(context.Background(), "sub_123", "cus_123", false))

	stored, err := NewRepository(f.db).FindByID(context.Background(), "sub_123")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, f.userID, stored.UserID)
	assert.Equal(t, enums.SubscriptionStatusTrialing, stored.Status)
	assert.Equal(t, 0, f.updater.calls)
}

func TestSyncFromStripe_IsIdempotent(t *testing.T) {
	f := newSyncFixture(t, stripeSubscription())
	ctx := context.Background()

	require.NoError(t, f.svc.SyncFromStripe(ctx, "sub_123", "cus_123", false))

	f.stripe.sub.Status = stripe.SubscriptionStatusActive
	require.NoError(t, f.svc.SyncFromStripe(ctx, "sub_123", "cus_123", false))

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := NewRepository(f.db).FindByID(ctx, "sub_123")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
}

func TestSyncFromStripe_MissingMappingFailsFast(t *testing.T) {
	f := newSyncFixture(t, stripeSubscription())
	f.resolver.err = pkgerrors.New(pkgerrors.CodeNotFound, "no user mapping for stripe customer cus_123")

	err := f.svc.SyncFromStripe(context.Background(), "sub_123", "cus_123", true)
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	// fail fast: the provider is never consulted and nothing is written
	assert.Equal(t, 0, f.stripe.calls)
	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSyncFromStripe_PropagatesBillingDetailsOnCreation(t *testing.T) {
	sub := stripeSubscription()
	sub.DefaultPaymentMethod = completePaymentMethod()
	f := newSyncFixture(t, sub)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncFromStripe(ctx, "sub_123", "cus_123", true))

	require.Equal(t, 1, f.updater.calls)
	require.NotNil(t, f.updater.params)
	assert.Equal(t, "Jordan Smith", *f.updater.params.Name)

	user, err := users.NewRepository(f.db).FindByID(ctx, f.userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Contains(t, string(user.BillingAddress), "1 Main St")
	assert.Contains(t, string(user.PaymentMethod), "4242")
}

func TestSyncFromStripe_SkipsPartialBillingDetails(t *testing.T) {
	sub := stripeSubscription()
	pm := completePaymentMethod()
	pm.BillingDetails.Phone = ""
	sub.DefaultPaymentMethod = pm
	f := newSyncFixture(t, sub)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncFromStripe(ctx, "sub_123", "cus_123", true))

	assert.Equal(t, 0, f.updater.calls)

	user, err := users.NewRepository(f.db).FindByID(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, user.BillingAddress)
	assert.Empty(t, user.PaymentMethod)

	stored, err := NewRepository(f.db).FindByID(ctx, "sub_123")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestSyncFromStripe_IgnoresBillingDetailsOnUpdates(t *testing.T) {
	sub := stripeSubscription()
	sub.DefaultPaymentMethod = completePaymentMethod()
	f := newSyncFixture(t, sub)

	require.NoError(t, f.svc.SyncFromStripe(context.Background(), "sub_123", "cus_123", false))
	assert.Equal(t, 0, f.updater.calls)
}

func TestSyncFromStripe_CustomerUpdateFailureWritesNothing(t *testing.T) {
	sub := stripeSubscription()
	sub.DefaultPaymentMethod = completePaymentMethod()
	f := newSyncFixture(t, sub)
	f.updater.err = errors.New("stripe: customer update failed")

	err := f.svc.SyncFromStripe(context.Background(), "sub_123", "cus_123", true)
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSyncFromStripe_ValidatesInput(t *testing.T) {
	f := newSyncFixture(t, stripeSubscription())

	require.Error(t, f.svc.SyncFromStripe(context.Background(), "", "cus_123", false))
	require.Error(t, f.svc.SyncFromStripe(context.Background(), "sub_123", "", false))
	assert.Equal(t, 0, f.resolver.calls)
}

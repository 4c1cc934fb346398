package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nateruiz/saasbase-backend/api/middleware"
	"github.com/nateruiz/saasbase-backend/api/responses"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
	"github.com/nateruiz/saasbase-backend/pkg/logger"
)

type customerResolver interface {
	CreateOrRetrieve(ctx context.Context, userID uuid.UUID, email string) (string, error)
}

// EnsureBillingCustomer resolves (or creates) the Stripe customer for the
// authenticated user. The checkout frontend calls this before opening a
// checkout session so subscription events always find a mapping.
func EnsureBillingCustomer(svc customerResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
			return
		}

		rawUserID := middleware.UserIDFromContext(ctx)
		if rawUserID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
			return
		}
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		email := middleware.UserEmailFromContext(ctx)
		if email == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user email missing"))
			return
		}

		customerID, err := svc.CreateOrRetrieve(ctx, userID, email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"stripe_customer_id": customerID})
	}
}

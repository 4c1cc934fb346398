package catalog

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v84"

	"github.com/nateruiz/saasbase-backend/pkg/db/models"
	"github.com/nateruiz/saasbase-backend/pkg/enums"
	pkgerrors "github.com/nateruiz/saasbase-backend/pkg/errors"
)

var validate = validator.New()

type productAttributes struct {
	ID   string `validate:"required"`
	Name string `validate:"required"`
}

type priceAttributes struct {
	ID        string `validate:"required"`
	ProductID string `validate:"required"`
	Currency  string `validate:"required,len=3"`
}

// ProductFromStripe maps a provider product payload into the canonical model.
// Any malformed field is a validation error, never retried.
func ProductFromStripe(product *stripe.Product) (*models.Product, error) {
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product payload is nil")
	}
	if err := validate.Struct(productAttributes{ID: product.ID, Name: product.Name}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product payload")
	}

	metadata, err := marshalMetadata(product.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal product metadata")
	}

	var image *string
	if len(product.Images) > 0 {
		image = trimmedPtr(product.Images[0])
	}

	return &models.Product{
		ID:          product.ID,
		Active:      product.Active,
		Name:        product.Name,
		Description: trimmedPtr(product.Description),
		Image:       image,
		Metadata:    metadata,
	}, nil
}

// PriceFromStripe maps a provider price payload into the canonical model.
// Interval fields are carried only for recurring prices.
func PriceFromStripe(price *stripe.Price) (*models.Price, error) {
	if price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price payload is nil")
	}

	productID := ""
	if price.Product != nil {
		productID = price.Product.ID
	}
	currency := strings.ToLower(string(price.Currency))
	if err := validate.Struct(priceAttributes{ID: price.ID, ProductID: productID, Currency: currency}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price payload")
	}

	pricingType, err := enums.ParsePricingType(string(price.Type))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing type")
	}

	metadata, err := marshalMetadata(price.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal price metadata")
	}

	row := &models.Price{
		ID:        price.ID,
		ProductID: productID,
		Active:    price.Active,
		Currency:  currency,
		Type:      pricingType,
		Metadata:  metadata,
	}
	// unit_amount is nullable; an absent amount decodes as zero
	if price.UnitAmount > 0 {
		row.UnitAmount = int64Ptr(price.UnitAmount)
	}

	if pricingType == enums.PricingTypeRecurring {
		if price.Recurring == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "recurring price missing interval data")
		}
		interval, err := enums.ParsePricingInterval(string(price.Recurring.Interval))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pricing interval")
		}
		row.Interval = &interval
		row.IntervalCount = intPtr(int(price.Recurring.IntervalCount))
		if price.Recurring.TrialPeriodDays > 0 {
			row.TrialPeriodDays = intPtr(int(price.Recurring.TrialPeriodDays))
		}
	}

	return row, nil
}

func marshalMetadata(metadata map[string]string) (json.RawMessage, error) {
	if len(metadata) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func trimmedPtr(value string) *string {
	if s := strings.TrimSpace(value); s != "" {
		return &s
	}
	return nil
}

func int64Ptr(value int64) *int64 {
	return &value
}

func intPtr(value int) *int {
	return &value
}

package enums

import "fmt"

// PricingInterval is the recurrence unit for recurring prices.
type PricingInterval string

const (
	PricingIntervalDay   PricingInterval = "day"
	PricingIntervalWeek  PricingInterval = "week"
	PricingIntervalMonth PricingInterval = "month"
	PricingIntervalYear  PricingInterval = "year"
)

var validPricingIntervals = []PricingInterval{
	PricingIntervalDay,
	PricingIntervalWeek,
	PricingIntervalMonth,
	PricingIntervalYear,
}

// String implements fmt.Stringer.
func (p PricingInterval) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PricingInterval) IsValid() bool {
	for _, candidate := range validPricingIntervals {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePricingInterval converts raw input into a PricingInterval.
func ParsePricingInterval(value string) (PricingInterval, error) {
	for _, candidate := range validPricingIntervals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing interval %q", value)
}

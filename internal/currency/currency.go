// Package currency converts USD amounts into the rounded local currency.
package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToLocal converts usd at rate and snaps the result to the nearest multiple
// of granularity, ties away from zero. A zero granularity rounds to the
// nearest whole unit instead.
func ToLocal(usd, rate decimal.Decimal, granularity int64) int64 {
	local := usd.Mul(rate)

	if granularity < 0 {
		granularity = -granularity
	}
	if granularity == 0 {
		return local.Round(0).IntPart()
	}

	g := decimal.NewFromInt(granularity)
	q, r := local.QuoRem(g, 0)
	if r.Abs().Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(g) {
		if local.Sign() < 0 {
			q = q.Sub(decimal.NewFromInt(1))
		} else {
			q = q.Add(decimal.NewFromInt(1))
		}
	}
	return q.IntPart() * granularity
}

// ToLocalNullable is ToLocal for optional amounts. The bool is false when
// usd is absent, so callers can tell an unknown price from a free one.
func ToLocalNullable(usd decimal.NullDecimal, rate decimal.Decimal, granularity int64) (int64, bool) {
	if !usd.Valid {
		return 0, false
	}
	return ToLocal(usd.Decimal, rate, granularity), true
}

// Converter carries a rate and granularity pair, typically the one captured
// on an order at placement time.
type Converter struct {
	Rate        decimal.Decimal
	Granularity int64
}

func (c Converter) Convert(usd decimal.Decimal) int64 {
	return ToLocal(usd, c.Rate, c.Granularity)
}

// Rates are stored on every order as NUMERIC(14,4).
const (
	RateScale     = 4
	maxRateDigits = 10
)

var maxRate = decimal.New(1, maxRateDigits)

// ValidateRate reports whether rate is positive and storable on an order
// without rounding: at most RateScale decimal places and below 10^10.
func ValidateRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("exchange rate %s is not positive", rate)
	}
	if !rate.Equal(rate.Round(RateScale)) {
		return fmt.Errorf("exchange rate %s has more than %d decimal places", rate, RateScale)
	}
	if rate.GreaterThanOrEqual(maxRate) {
		return fmt.Errorf("exchange rate %s must be below %s", rate, maxRate)
	}
	return nil
}

// ParseConverter builds a Converter from a decimal rate string. The rate must
// pass ValidateRate and the granularity must be non-negative.
func ParseConverter(rate string, granularity int64) (Converter, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return Converter{}, fmt.Errorf("parse exchange rate %q: %w", rate, err)
	}
	if err := ValidateRate(r); err != nil {
		return Converter{}, err
	}
	if granularity < 0 {
		return Converter{}, fmt.Errorf("rounding factor %d is negative", granularity)
	}
	return Converter{Rate: r, Granularity: granularity}, nil
}

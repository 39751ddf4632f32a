package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// RateScale is the number of fractional digits a stored tax rate keeps.
const RateScale = 6

var (
	errNegativeRate  = errors.New("pricing: tax rate must not be negative")
	errRatePrecision = errors.New("pricing: tax rate allows at most 6 decimal places")
	errRateRange     = errors.New("pricing: tax rate must be below 100")
	rateCeiling      = decimal.NewFromInt(100)
)

// ErrOverflow is returned when a total does not fit in Money.
var ErrOverflow = errors.New("pricing: total exceeds representable amount")

var maxMoney = decimal.NewFromInt(math.MaxInt64)

// Money represents a monetary value stored in minor units.
type Money = int64

// Line describes a cart line used for aggregate calculation.
type Line struct {
	Amount int
	Price  Money
}

// Totals aggregates the derived cart fields.
type Totals struct {
	NumItems   int
	CartTotal  Money
	Tax        Money
	Shipping   Money
	OrderTotal Money
}

// Compute derives cart totals from the current lines. The tax rate is a
// fraction (0.08 for 8%); tax is rounded half away from zero to a whole minor
// unit. The shipping fee only applies to a non-empty cart. Negative amounts or
// prices and totals beyond Money's range yield ErrOverflow.
func Compute(lines []Line, taxRate decimal.Decimal, shippingFee Money) (Totals, error) {
	var (
		numItems int
		subtotal Money
	)
	for _, l := range lines {
		if l.Amount < 0 || l.Price < 0 {
			return Totals{}, ErrOverflow
		}
		line, ok := mul(Money(l.Amount), l.Price)
		if !ok {
			return Totals{}, ErrOverflow
		}
		if subtotal, ok = add(subtotal, line); !ok {
			return Totals{}, ErrOverflow
		}
		if numItems > math.MaxInt-l.Amount {
			return Totals{}, ErrOverflow
		}
		numItems += l.Amount
	}
	tax, err := checkedTax(subtotal, taxRate)
	if err != nil {
		return Totals{}, err
	}
	var shipping Money
	if subtotal > 0 {
		shipping = shippingFee
	}
	total, ok := add(subtotal, tax)
	if ok {
		total, ok = add(total, shipping)
	}
	if !ok {
		return Totals{}, ErrOverflow
	}
	return Totals{
		NumItems:   numItems,
		CartTotal:  subtotal,
		Tax:        tax,
		Shipping:   shipping,
		OrderTotal: total,
	}, nil
}

func checkedTax(amount Money, rate decimal.Decimal) (Money, error) {
	if amount == 0 || rate.IsZero() {
		return 0, nil
	}
	tax := decimal.NewFromInt(amount).Mul(rate).Round(0)
	if tax.Abs().GreaterThan(maxMoney) {
		return 0, ErrOverflow
	}
	return tax.IntPart(), nil
}

func mul(a, b Money) (Money, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

// add sums two non-negative amounts.
func add(a, b Money) (Money, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// Tax applies rate to amount in fixed-point arithmetic.
func Tax(amount Money, rate decimal.Decimal) Money {
	tax, _ := checkedTax(amount, rate)
	return tax
}

// ParseRate parses a fractional tax rate such as "0.08". The rate must lie in
// [0, 100) and carry at most RateScale fractional digits so every store keeps
// it exactly.
func ParseRate(value string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	switch {
	case rate.IsNegative():
		return decimal.Zero, errNegativeRate
	case rate.GreaterThanOrEqual(rateCeiling):
		return decimal.Zero, errRateRange
	case !rate.Equal(rate.Truncate(RateScale)):
		return decimal.Zero, errRatePrecision
	}
	return rate, nil
}

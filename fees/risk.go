package fees

import (
	"github.com/shopspring/decimal"
)

// Profit is a realized-profit figure that may be undefined. A flat position
// has no profit figure at all, which is not the same thing as zero profit,
// so callers must check Defined before using Value.
type Profit struct {
	Value   decimal.Decimal
	Defined bool
}

// Some wraps a defined profit value.
func Some(v decimal.Decimal) Profit { return Profit{Value: v, Defined: true} }

// Undefined is the no-profit sentinel for flat positions.
func Undefined() Profit { return Profit{} }

var one = decimal.NewFromInt(1)

// Profit computes the profit realized by marking a position to mark price.
//
//	long:  mark × units × (1 − rate) − costBasis − feesPaid
//	short: (costBasis − feesPaid) − mark × |units| × (1 + rate)
//
// The result is rounded down to 2 decimals. A flat position (units == 0)
// yields Undefined.
func (s Schedule) Profit(mark, costBasis, feesPaid, units decimal.Decimal, c Class) (Profit, error) {
	if units.IsZero() {
		return Undefined(), nil
	}
	rate, err := s.Rate(c)
	if err != nil {
		return Undefined(), err
	}

	var p decimal.Decimal
	if units.IsPositive() {
		p = mark.Mul(units).Mul(one.Sub(rate)).Sub(costBasis).Sub(feesPaid)
	} else {
		p = costBasis.Sub(feesPaid).Sub(mark.Mul(units.Neg()).Mul(one.Add(rate)))
	}
	return Some(p.RoundFloor(2)), nil
}

// LiquidationPrice solves the profit formula for the mark price that yields
// target. It is used with target = −(invest+margin capital) for the forced
// liquidation price and target = 0 for the break-even price. The result is
// rounded up to the next integer tick. ok is false for a flat position.
func (s Schedule) LiquidationPrice(target, costBasis, feesPaid, units decimal.Decimal, c Class) (price decimal.Decimal, ok bool, err error) {
	if units.IsZero() {
		return decimal.Decimal{}, false, nil
	}
	rate, err := s.Rate(c)
	if err != nil {
		return decimal.Decimal{}, false, err
	}

	var p decimal.Decimal
	if units.IsPositive() {
		p = target.Add(costBasis).Add(feesPaid).Div(units).Div(one.Sub(rate))
	} else {
		p = costBasis.Sub(feesPaid).Sub(target).Div(units.Neg()).Div(one.Add(rate))
	}
	return p.RoundCeil(0), true, nil
}

// BreakEvenPrice is the mark price at which a full close realizes exactly
// zero profit (before tick rounding).
func (s Schedule) BreakEvenPrice(costBasis, feesPaid, units decimal.Decimal, c Class) (decimal.Decimal, bool, error) {
	return s.LiquidationPrice(decimal.Zero, costBasis, feesPaid, units, c)
}

// MaxAdverseExcursion is the worst profit the position could have realized
// within the bar's range, i.e. the lesser of the profit marked at the bar
// high and at the bar low. Both sides use the same min-of-endpoints rule;
// for a short the high is the losing endpoint and the formula's sign
// handling picks it out. A flat position's excursion is zero by definition.
func (s Schedule) MaxAdverseExcursion(high, low, costBasis, feesPaid, units decimal.Decimal, c Class) (decimal.Decimal, error) {
	if units.IsZero() {
		return decimal.Zero, nil
	}
	atHigh, err := s.Profit(high, costBasis, feesPaid, units, c)
	if err != nil {
		return decimal.Decimal{}, err
	}
	atLow, err := s.Profit(low, costBasis, feesPaid, units, c)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.Min(atHigh.Value, atLow.Value), nil
}

// BuyableUnits converts an investment amount at a price into tradable units,
// floored to 0.001-unit lots. Non-positive amounts buy nothing.
func BuyableUnits(amount, price decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(price).RoundFloor(3)
}

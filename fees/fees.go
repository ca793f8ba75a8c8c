// Package fees holds the pure fee and risk formulas the position ledger is
// built on. All arithmetic is decimal with a deliberate conservative bias:
// fees round up to 2 decimals, realized profit rounds down to 2 decimals,
// and liquidation prices round up to the next integer tick.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Class is a fee class. It is pure data; the rate lives in a Schedule.
type Class int

const (
	Maker Class = iota
	Taker
)

func (c Class) String() string {
	switch c {
	case Maker:
		return "MAKER"
	case Taker:
		return "TAKER"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ParseClass maps a config string to a Class.
func ParseClass(s string) (Class, error) {
	switch s {
	case "MAKER", "maker":
		return Maker, nil
	case "TAKER", "taker":
		return Taker, nil
	}
	return 0, fmt.Errorf("fees: unknown fee class %q", s)
}

// ErrNoRate means the schedule has no rate for a fee class. Every formula
// must resolve a rate or fail; a run cannot proceed without one.
var ErrNoRate = errors.New("fees: no rate for class")

// Schedule maps fee classes to decimal rates (e.g. Maker 0.0002, Taker 0.0004).
type Schedule struct {
	rates map[Class]decimal.Decimal
}

// NewSchedule builds a schedule. Both classes must be present and
// non-negative, and the maker rate may not exceed the taker rate.
func NewSchedule(maker, taker decimal.Decimal) (Schedule, error) {
	if maker.IsNegative() || taker.IsNegative() {
		return Schedule{}, fmt.Errorf("fees: negative rate (maker=%s taker=%s)", maker, taker)
	}
	if maker.GreaterThan(taker) {
		return Schedule{}, fmt.Errorf("fees: maker rate %s exceeds taker rate %s", maker, taker)
	}
	return Schedule{rates: map[Class]decimal.Decimal{
		Maker: maker,
		Taker: taker,
	}}, nil
}

// Rate resolves the rate for a class.
func (s Schedule) Rate(c Class) (decimal.Decimal, error) {
	r, ok := s.rates[c]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrNoRate, c)
	}
	return r, nil
}

// Fee is the handling fee for trading units at price under class c,
// rounded up to 2 decimals.
func (s Schedule) Fee(price, units decimal.Decimal, c Class) (decimal.Decimal, error) {
	rate, err := s.Rate(c)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return price.Mul(units).Mul(rate).RoundCeil(2), nil
}

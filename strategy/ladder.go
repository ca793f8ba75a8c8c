// Package strategy holds the reference policies that drive a backtest run:
// a ladder-sized moving-average cross and a hedged grid. Policies decide,
// the ledger accounts; no policy ever mutates a snapshot.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rung is one sizing tranche. A consumed rung is skipped until the ladder
// resets on a direction flip.
type Rung struct {
	Amount   decimal.Decimal
	Consumed bool
}

// Ladder is an ordered list of geometrically scaled investment tranches,
// drawn front to back on successive same-direction entries.
type Ladder struct {
	rungs []Rung
}

// FirstLayerAmount sizes the first rung so the whole ladder sums to total:
//
//	first = round(total × (1−g) / (1−gⁿ))   for ratio g ≠ 1
//	first = total / n                        for ratio g = 1
func FirstLayerAmount(total, ratio decimal.Decimal, levels int) decimal.Decimal {
	if levels <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(levels))
	if ratio.Equal(one) {
		return total.Div(n)
	}
	return total.Mul(one.Sub(ratio)).Div(one.Sub(ratio.Pow(n))).Round(0)
}

var one = decimal.NewFromInt(1)

// NewLadder builds levels rungs with rung[i] = first × ratio^i.
func NewLadder(total, ratio decimal.Decimal, levels int) (*Ladder, error) {
	if levels <= 0 {
		return nil, fmt.Errorf("strategy: ladder needs at least one level, got %d", levels)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("strategy: ladder total %s must be positive", total)
	}
	if !ratio.IsPositive() {
		return nil, fmt.Errorf("strategy: ladder ratio %s must be positive", ratio)
	}

	first := FirstLayerAmount(total, ratio, levels)
	rungs := make([]Rung, levels)
	amt := first
	for i := range rungs {
		rungs[i] = Rung{Amount: amt}
		amt = amt.Mul(ratio)
	}
	return &Ladder{rungs: rungs}, nil
}

// FirstAvailable consumes and returns the first unconsumed rung's amount.
// ok is false once the ladder is exhausted.
func (l *Ladder) FirstAvailable() (decimal.Decimal, bool) {
	for i := range l.rungs {
		if !l.rungs[i].Consumed {
			l.rungs[i].Consumed = true
			return l.rungs[i].Amount, true
		}
	}
	return decimal.Zero, false
}

// ResetAndFirst marks every rung available again and consumes the first.
// Direction flips restart the escalation from the bottom.
func (l *Ladder) ResetAndFirst() decimal.Decimal {
	l.Reset()
	l.rungs[0].Consumed = true
	return l.rungs[0].Amount
}

// Reset marks every rung available.
func (l *Ladder) Reset() {
	for i := range l.rungs {
		l.rungs[i].Consumed = false
	}
}

// MarkConsumedBelow marks rungs with Amount < amount as consumed and the
// rest available, restoring the ladder to the depth a prior position had
// reached.
func (l *Ladder) MarkConsumedBelow(amount decimal.Decimal) {
	for i := range l.rungs {
		l.rungs[i].Consumed = l.rungs[i].Amount.LessThan(amount)
	}
}

// Rungs returns a copy of the ladder state.
func (l *Ladder) Rungs() []Rung {
	out := make([]Rung, len(l.rungs))
	copy(out, l.rungs)
	return out
}

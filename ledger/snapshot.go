package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/willyhc/futsim/fees"
)

// Snapshot is the immutable per-bar ledger state. The book appends exactly
// one per processed step and never mutates one afterwards; the current
// position is always the tail of the history.
type Snapshot struct {
	Time time.Time

	// Position carried forward. Units are signed: >0 long, <0 short, 0 flat.
	Units     decimal.Decimal
	CostBasis decimal.Decimal
	FeesPaid  decimal.Decimal
	Margin    decimal.Decimal

	// Marks for this step.
	MarkPrice        decimal.Decimal
	Profit           fees.Profit // realized this step; undefined when flat with no trade
	ProfitRatio      decimal.Decimal
	CumulativeProfit decimal.Decimal

	// Risk figures against the position as of this step. Zero when flat.
	LiquidationPrice    decimal.Decimal
	BreakEvenPrice      decimal.Decimal
	MaxAdverseExcursion decimal.Decimal

	Balance decimal.Decimal

	// Event is the trade that produced this snapshot, nil for a pure
	// mark-to-market step.
	Event *Event
}

// Flat reports whether the position is closed as of this snapshot.
func (s Snapshot) Flat() bool { return s.Units.IsZero() }

// Long reports whether the position is long as of this snapshot.
func (s Snapshot) Long() bool { return s.Units.IsPositive() }

// AvgEntryPrice is the volume-weighted entry price of the open position,
// or zero when flat.
func (s Snapshot) AvgEntryPrice() decimal.Decimal {
	if s.Units.IsZero() {
		return decimal.Zero
	}
	return s.CostBasis.Div(s.Units.Abs())
}

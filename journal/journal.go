// Package journal persists backtest runs: one trade record per folded
// event and one snapshot record per ledger step, keyed by run ID.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one folded trade event.
type TradeRecord struct {
	RunID   string
	EventID string
	Time    time.Time
	Side    string
	Price   decimal.Decimal
	Units   decimal.Decimal
	Class   string
	Reason  string
	Note    string
	Profit  decimal.Decimal
}

// SnapshotRecord is one ledger step.
type SnapshotRecord struct {
	RunID            string
	Time             time.Time
	Units            decimal.Decimal
	CostBasis        decimal.Decimal
	FeesPaid         decimal.Decimal
	Margin           decimal.Decimal
	MarkPrice        decimal.Decimal
	ProfitDefined    bool
	Profit           decimal.Decimal
	CumulativeProfit decimal.Decimal
	LiquidationPrice decimal.Decimal
	BreakEvenPrice   decimal.Decimal
	Balance          decimal.Decimal
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(SnapshotRecord) error
	Close() error
}

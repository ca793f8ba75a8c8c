package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
)

// Result summarizes one finished run. Snapshots is the full ordered ledger
// history; rendering (charts, reports, notifications) is the receiver's
// concern, not the driver's.
type Result struct {
	RunID  string
	Policy string

	Start time.Time
	End   time.Time
	Bars  int

	Trades       int
	Wins         int
	Losses       int
	Liquidations int

	// RealizedProfit sums the profit realized by trade events only.
	// CumulativeProfit is the final snapshot's running figure, which also
	// tracks mark-to-market bars.
	RealizedProfit   decimal.Decimal
	CumulativeProfit decimal.Decimal
	EndBalance       decimal.Decimal

	Snapshots []ledger.Snapshot
}

func summarize(runID, policy string, bars market.Series, history []ledger.Snapshot, liquidations int) Result {
	res := Result{
		RunID:        runID,
		Policy:       policy,
		Bars:         len(bars),
		Liquidations: liquidations,
		Snapshots:    history,
	}
	if len(bars) > 0 {
		res.Start = bars[0].StartTime
		res.End = bars[len(bars)-1].EndTime
	}

	for _, snap := range history {
		if snap.Event == nil {
			continue
		}
		res.Trades++
		if !snap.Profit.Defined {
			continue
		}
		res.RealizedProfit = res.RealizedProfit.Add(snap.Profit.Value)
		switch {
		case snap.Profit.Value.IsPositive():
			res.Wins++
		case snap.Profit.Value.IsNegative():
			res.Losses++
		}
	}

	if len(history) > 0 {
		tail := history[len(history)-1]
		res.CumulativeProfit = tail.CumulativeProfit
		res.EndBalance = tail.Balance
	}
	return res
}

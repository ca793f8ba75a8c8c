// Package backtest replays a bar series against a strategy policy, folding
// each decision through the position ledger and enforcing forced
// liquidation within every bar's range.
package backtest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/internal/id"
	"github.com/willyhc/futsim/journal"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
)

// Policy is the decision contract a strategy implements. Decide may return
// a nil event for "no trade this bar". The history is read-only; a policy
// must never mutate snapshots.
type Policy interface {
	Name() string
	Decide(bar market.Kline, history []ledger.Snapshot) (*ledger.Event, error)
}

// State tracks a run through its lifecycle.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateFinished
)

// Driver sequences one backtest run: policy decision, ledger fold, forced
// liquidation check, per bar, strictly in time order. Each driver owns its
// book exclusively; parameter sweeps construct one driver per run.
type Driver struct {
	book    *ledger.Book
	policy  Policy
	journal journal.Journal
	log     *zap.Logger

	runID string
	state State
}

// NewDriver wires a run. The journal may be nil; the logger defaults to a
// no-op logger.
func NewDriver(book *ledger.Book, policy Policy, j journal.Journal, log *zap.Logger) (*Driver, error) {
	if book == nil {
		return nil, fmt.Errorf("backtest: book is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("backtest: policy is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		book:    book,
		policy:  policy,
		journal: j,
		log:     log,
		runID:   id.New(),
		state:   StateInitialized,
	}, nil
}

// RunID returns the ULID assigned to this run.
func (dr *Driver) RunID() string { return dr.runID }

// State returns the run lifecycle state.
func (dr *Driver) State() State { return dr.state }

// Run replays the bars. Any arithmetic or policy failure aborts the run;
// a skipped or guessed snapshot would silently corrupt every later
// cumulative figure, so there are no retries and no defaults.
func (dr *Driver) Run(bars market.Series) (Result, error) {
	if dr.state != StateInitialized {
		return Result{}, fmt.Errorf("backtest: run %s already started", dr.runID)
	}
	if err := bars.Validate(); err != nil {
		return Result{}, err
	}

	dr.state = StateRunning
	dr.log.Info("backtest run starting",
		zap.String("run_id", dr.runID),
		zap.String("policy", dr.policy.Name()),
		zap.Int("bars", len(bars)),
	)

	liquidations := 0
	for i, bar := range bars {
		ev, err := dr.policy.Decide(bar, dr.book.History())
		if err != nil {
			return Result{}, fmt.Errorf("backtest: bar %d policy: %w", i, err)
		}
		if ev != nil && ev.ID == "" {
			ev.ID = id.New()
		}

		snap, err := dr.book.Apply(bar, ev)
		if err != nil {
			return Result{}, fmt.Errorf("backtest: bar %d apply: %w", i, err)
		}
		if err := dr.record(snap); err != nil {
			return Result{}, err
		}

		// The liquidation check runs on the post-trade position every bar,
		// whether or not the policy acted.
		liqSnap, liquidated, err := dr.checkLiquidation(bar, snap)
		if err != nil {
			return Result{}, fmt.Errorf("backtest: bar %d liquidation: %w", i, err)
		}
		if liquidated {
			liquidations++
			if err := dr.record(liqSnap); err != nil {
				return Result{}, err
			}
		}
	}

	dr.state = StateFinished
	res := summarize(dr.runID, dr.policy.Name(), bars, dr.book.History(), liquidations)
	dr.log.Info("backtest run finished",
		zap.String("run_id", dr.runID),
		zap.Int("trades", res.Trades),
		zap.Int("liquidations", res.Liquidations),
		zap.String("realized_profit", res.RealizedProfit.String()),
		zap.String("end_balance", res.EndBalance.String()),
	)
	return res, nil
}

// checkLiquidation closes the whole position at the liquidation price when
// the bar's range breaches it: the low for a long, the high for a short.
// The close is an ordinary full-close event folded through the engine.
func (dr *Driver) checkLiquidation(bar market.Kline, snap ledger.Snapshot) (ledger.Snapshot, bool, error) {
	if snap.Flat() {
		return ledger.Snapshot{}, false, nil
	}
	liq := snap.LiquidationPrice

	var breached bool
	if snap.Long() {
		breached = bar.Low.LessThanOrEqual(liq)
	} else {
		breached = bar.High.GreaterThanOrEqual(liq)
	}
	if !breached {
		return ledger.Snapshot{}, false, nil
	}

	side := ledger.Sell
	if !snap.Long() {
		side = ledger.Buy
	}
	ev := &ledger.Event{
		ID:    id.New(),
		Time:  bar.EndTime,
		Side:  side,
		Price: liq,
		Units: snap.Units.Abs(),
		Class: fees.Taker,
		Reason: ledger.Reason{
			Kind: ledger.ReasonLiquidation,
			Note: "capital exhausted within bar range",
		},
	}

	dr.log.Warn("forced liquidation",
		zap.String("run_id", dr.runID),
		zap.Time("bar_start", bar.StartTime),
		zap.String("price", liq.String()),
		zap.String("units", snap.Units.String()),
	)

	out, err := dr.book.Apply(bar, ev)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	return out, true, nil
}

func (dr *Driver) record(snap ledger.Snapshot) error {
	if dr.journal == nil {
		return nil
	}
	if snap.Event != nil {
		if err := dr.journal.RecordTrade(journal.TradeRecord{
			RunID:   dr.runID,
			EventID: snap.Event.ID,
			Time:    snap.Event.Time,
			Side:    snap.Event.Side.String(),
			Price:   snap.Event.Price,
			Units:   snap.Event.Units,
			Class:   snap.Event.Class.String(),
			Reason:  snap.Event.Reason.Kind.String(),
			Note:    snap.Event.Reason.Note,
			Profit:  snap.Profit.Value,
		}); err != nil {
			return fmt.Errorf("backtest: journal trade: %w", err)
		}
	}
	return dr.journalSnapshot(snap)
}

func (dr *Driver) journalSnapshot(snap ledger.Snapshot) error {
	rec := journal.SnapshotRecord{
		RunID:            dr.runID,
		Time:             snap.Time,
		Units:            snap.Units,
		CostBasis:        snap.CostBasis,
		FeesPaid:         snap.FeesPaid,
		Margin:           snap.Margin,
		MarkPrice:        snap.MarkPrice,
		ProfitDefined:    snap.Profit.Defined,
		Profit:           snap.Profit.Value,
		CumulativeProfit: snap.CumulativeProfit,
		LiquidationPrice: snap.LiquidationPrice,
		BreakEvenPrice:   snap.BreakEvenPrice,
		Balance:          snap.Balance,
	}
	if err := dr.journal.RecordSnapshot(rec); err != nil {
		return fmt.Errorf("backtest: journal snapshot: %w", err)
	}
	return nil
}

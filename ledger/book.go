// Package ledger maintains an exact leveraged position ledger. A Book folds
// a stream of trade events and mark-to-market bars into an append-only
// history of snapshots; every figure is decimal and every rounding keeps
// the conservative bias of the fees package.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/market"
)

// Params configures a Book. Everything is injected; a book owns no globals
// and two concurrent runs never share one.
type Params struct {
	Schedule fees.Schedule
	Leverage decimal.Decimal

	// InvestCapital is the working capital; MarginCapital is the extra
	// guarantee posted against liquidation. Their sum is the total at risk.
	InvestCapital decimal.Decimal
	MarginCapital decimal.Decimal
}

// Book is the position ledger plus the transaction engine that folds one
// trade-or-mark step per bar.
type Book struct {
	sched     fees.Schedule
	leverage  decimal.Decimal
	invest    decimal.Decimal
	guarantee decimal.Decimal

	history []Snapshot
}

// NewBook validates the parameters up front: the fee schedule must resolve
// both classes before any formula runs, and the capital and leverage must
// be positive.
func NewBook(p Params) (*Book, error) {
	if _, err := p.Schedule.Rate(fees.Maker); err != nil {
		return nil, err
	}
	if _, err := p.Schedule.Rate(fees.Taker); err != nil {
		return nil, err
	}
	if !p.Leverage.IsPositive() {
		return nil, fmt.Errorf("ledger: leverage %s must be positive", p.Leverage)
	}
	if !p.InvestCapital.IsPositive() {
		return nil, fmt.Errorf("ledger: invest capital %s must be positive", p.InvestCapital)
	}
	if p.MarginCapital.IsNegative() {
		return nil, fmt.Errorf("ledger: margin capital %s must not be negative", p.MarginCapital)
	}
	return &Book{
		sched:     p.Schedule,
		leverage:  p.Leverage,
		invest:    p.InvestCapital,
		guarantee: p.MarginCapital,
	}, nil
}

// History returns the full snapshot list, oldest first.
func (b *Book) History() []Snapshot { return b.history }

// Last returns the tail snapshot, if any step has been folded yet.
func (b *Book) Last() (Snapshot, bool) {
	if len(b.history) == 0 {
		return Snapshot{}, false
	}
	return b.history[len(b.history)-1], true
}

// CapitalAtRisk is the total capital a forced liquidation consumes.
func (b *Book) CapitalAtRisk() decimal.Decimal {
	return b.invest.Add(b.guarantee)
}

// last returns the carried-forward state, with the pre-trade baseline
// (balance = invest capital) when the history is empty.
func (b *Book) last() Snapshot {
	if s, ok := b.Last(); ok {
		return s
	}
	return Snapshot{Balance: b.invest}
}

// lastTrade returns the most recent snapshot produced by a trade event.
func (b *Book) lastTrade() (Snapshot, bool) {
	for i := len(b.history) - 1; i >= 0; i-- {
		if b.history[i].Event != nil {
			return b.history[i], true
		}
	}
	return Snapshot{}, false
}

// Apply folds one step: a trade event, or a mark-to-market pass when ev is
// nil. The returned snapshot is the one appended to the history. Any error
// leaves the history untouched; a step that cannot be computed must abort
// the run rather than append a guessed figure.
func (b *Book) Apply(bar market.Kline, ev *Event) (Snapshot, error) {
	if ev == nil {
		return b.markToMarket(bar)
	}
	if err := ev.Validate(); err != nil {
		return Snapshot{}, err
	}

	// Anti-overexposure rule: a second policy-signal entry in the same
	// direction closes the open position at the new price instead of
	// averaging in. Rung fills and forced closures are exempt.
	if ev.Reason.Kind == ReasonSignal {
		if prev, ok := b.lastTrade(); ok && !prev.Units.IsZero() && prev.Event.Side == ev.Side {
			closeEv := &Event{
				ID:    ev.ID,
				Time:  ev.Time,
				Side:  ev.Side.Opposite(),
				Price: ev.Price,
				Units: prev.Units.Abs(),
				Class: ev.Class,
				Reason: Reason{
					Kind: ReasonRepeatClose,
					Note: "consecutive same-direction entry",
				},
			}
			return b.fold(bar, closeEv)
		}
	}

	return b.fold(bar, ev)
}

// fold applies the direction-aware position algebra and appends a snapshot.
func (b *Book) fold(bar market.Kline, ev *Event) (Snapshot, error) {
	last := b.last()
	newUnits := last.Units.Add(ev.SignedUnits())

	var (
		cost, feesPaid decimal.Decimal
		profit         fees.Profit
		ratio          decimal.Decimal
		err            error
	)

	sameDir := (ev.Side == Buy && !last.Units.IsNegative()) ||
		(ev.Side == Sell && !last.Units.IsPositive())

	switch {
	case sameDir:
		// Add to (or open) the position; nothing closes, nothing realizes.
		var fee decimal.Decimal
		fee, err = b.sched.Fee(ev.Price, ev.Units, ev.Class)
		if err != nil {
			return Snapshot{}, err
		}
		cost = last.CostBasis.Add(ev.Price.Mul(ev.Units))
		feesPaid = last.FeesPaid.Add(fee)
		profit = fees.Some(decimal.Zero)

	case ev.Units.GreaterThan(last.Units.Abs()):
		// Flip: realize the whole prior position at the event price, then
		// open the excess units fresh. Cost and fees never blend.
		excess := newUnits.Abs()
		cost = ev.Price.Mul(excess)
		feesPaid, err = b.sched.Fee(ev.Price, excess, ev.Class)
		if err != nil {
			return Snapshot{}, err
		}
		profit, err = b.sched.Profit(ev.Price, last.CostBasis, last.FeesPaid, last.Units, ev.Class)
		if err != nil {
			return Snapshot{}, err
		}
		if last.Margin.IsPositive() {
			ratio = profit.Value.Div(last.Margin)
		}

	default:
		// Partial or full close without flip. The remaining cost and fees
		// scale by the remaining-unit ratio; the closed fraction's
		// proportional share backs the realized profit.
		scale := newUnits.Div(last.Units)
		cost = last.CostBasis.Mul(scale)
		feesPaid = last.FeesPaid.Mul(scale)

		closedCost := last.CostBasis.Sub(cost)
		closedFees := last.FeesPaid.Sub(feesPaid)
		closedUnits := last.Units.Sub(newUnits)

		profit, err = b.sched.Profit(ev.Price, closedCost, closedFees, closedUnits, ev.Class)
		if err != nil {
			return Snapshot{}, err
		}
		released := closedCost.Div(b.leverage).RoundCeil(2)
		if released.IsPositive() {
			ratio = profit.Value.Div(released)
		}
	}

	snap, err := b.finishStep(bar, ev, newUnits, cost, feesPaid, profit, ratio)
	if err != nil {
		return Snapshot{}, err
	}
	b.history = append(b.history, snap)
	return snap, nil
}

// finishStep recomputes the derived figures against the post-trade position.
func (b *Book) finishStep(bar market.Kline, ev *Event, units, cost, feesPaid decimal.Decimal,
	profit fees.Profit, ratio decimal.Decimal) (Snapshot, error) {

	last := b.last()

	margin := cost.Div(b.leverage).RoundCeil(2)
	balance := b.invest.Add(b.guarantee).Sub(margin).Sub(feesPaid)

	maxLoss, err := b.sched.MaxAdverseExcursion(bar.High, bar.Low, cost, feesPaid, units, fees.Taker)
	if err != nil {
		return Snapshot{}, err
	}
	liq, _, err := b.sched.LiquidationPrice(b.CapitalAtRisk().Neg(), cost, feesPaid, units, fees.Taker)
	if err != nil {
		return Snapshot{}, err
	}
	breakEven, _, err := b.sched.BreakEvenPrice(cost, feesPaid, units, fees.Taker)
	if err != nil {
		return Snapshot{}, err
	}

	cumulative := last.CumulativeProfit
	if profit.Defined {
		cumulative = cumulative.Add(profit.Value)
	}

	return Snapshot{
		Time:                ev.Time,
		Units:               units,
		CostBasis:           cost,
		FeesPaid:            feesPaid,
		Margin:              margin,
		MarkPrice:           ev.Price,
		Profit:              profit,
		ProfitRatio:         ratio,
		CumulativeProfit:    cumulative,
		LiquidationPrice:    liq,
		BreakEvenPrice:      breakEven,
		MaxAdverseExcursion: maxLoss,
		Balance:             balance,
		Event:               ev,
	}, nil
}

// markToMarket revalues the unchanged position at the bar close. Cumulative
// profit tracks the running mark so the history doubles as an equity curve.
func (b *Book) markToMarket(bar market.Kline) (Snapshot, error) {
	last := b.last()

	profit, err := b.sched.Profit(bar.Close, last.CostBasis, last.FeesPaid, last.Units, fees.Taker)
	if err != nil {
		return Snapshot{}, err
	}

	ratio := decimal.Zero
	cumulative := last.CumulativeProfit
	if profit.Defined {
		cumulative = cumulative.Add(profit.Value)
		if last.Margin.IsPositive() {
			ratio = profit.Value.Div(last.Margin)
		}
	}

	snap := Snapshot{
		Time:                bar.StartTime,
		Units:               last.Units,
		CostBasis:           last.CostBasis,
		FeesPaid:            last.FeesPaid,
		Margin:              last.Margin,
		MarkPrice:           bar.Close,
		Profit:              profit,
		ProfitRatio:         ratio,
		CumulativeProfit:    cumulative,
		LiquidationPrice:    last.LiquidationPrice,
		BreakEvenPrice:      last.BreakEvenPrice,
		MaxAdverseExcursion: last.MaxAdverseExcursion,
		Balance:             last.Balance,
	}
	b.history = append(b.history, snap)
	return snap, nil
}

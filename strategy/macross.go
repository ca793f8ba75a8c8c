package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
)

// MACrossConfig parameterizes the ladder-sized moving-average cross policy.
type MACrossConfig struct {
	FastPeriod int
	SlowPeriod int

	// ConfirmBars is how long the fast MA must stay on one side of the slow
	// MA before a cross back counts as a signal.
	ConfirmBars int
	// ReversalBars is the re-cross window for the false-break rule.
	ReversalBars int
	// StopLossPoints closes the position once the adverse move from the
	// weighted entry exceeds this many points.
	StopLossPoints decimal.Decimal

	// InvestAmount × Leverage is spread across the sizing ladder.
	InvestAmount decimal.Decimal
	Leverage     decimal.Decimal
	Levels       int
	LevelRatio   decimal.Decimal
}

func MACrossDefaults() MACrossConfig {
	return MACrossConfig{
		FastPeriod:     7,
		SlowPeriod:     25,
		ConfirmBars:    20,
		ReversalBars:   10,
		StopLossPoints: decimal.NewFromInt(1000),
		Levels:         10,
		LevelRatio:     decimal.NewFromFloat(1.5),
	}
}

// MACross trades fast/slow MA crosses. It keeps a signed bars-since-cross
// counter, commits to a direction only after a confirmed window, escalates
// size down a geometric ladder, stops out on a fixed point threshold and
// re-enters on a false break. One policy instance belongs to one run.
type MACross struct {
	cfg    MACrossConfig
	ladder *Ladder

	closes   []float64
	slowHist []float64
	rel      int

	barIdx     int
	barIdxSeen map[int64]int
}

func NewMACross(cfg MACrossConfig) (*MACross, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= cfg.FastPeriod {
		return nil, fmt.Errorf("strategy: MA periods %d/%d must satisfy 0 < fast < slow", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if cfg.ConfirmBars <= 0 {
		return nil, fmt.Errorf("strategy: confirm window %d must be positive", cfg.ConfirmBars)
	}
	if cfg.ReversalBars <= 0 {
		return nil, fmt.Errorf("strategy: reversal window %d must be positive", cfg.ReversalBars)
	}
	if !cfg.StopLossPoints.IsPositive() {
		return nil, fmt.Errorf("strategy: stop-loss threshold %s must be positive", cfg.StopLossPoints)
	}
	if !cfg.Leverage.IsPositive() {
		return nil, fmt.Errorf("strategy: leverage %s must be positive", cfg.Leverage)
	}

	ladder, err := NewLadder(cfg.InvestAmount.Mul(cfg.Leverage), cfg.LevelRatio, cfg.Levels)
	if err != nil {
		return nil, err
	}
	return &MACross{
		cfg:        cfg,
		ladder:     ladder,
		barIdxSeen: make(map[int64]int),
	}, nil
}

func (m *MACross) Name() string { return "ma-cross" }

// Ladder exposes the sizing ladder state, for reporting.
func (m *MACross) Ladder() *Ladder { return m.ladder }

func (m *MACross) Decide(bar market.Kline, history []ledger.Snapshot) (*ledger.Event, error) {
	m.barIdxSeen[bar.StartTime.Unix()] = m.barIdx
	defer func() { m.barIdx++ }()

	c, _ := bar.Close.Float64()
	m.closes = append(m.closes, c)
	if len(m.closes) > 4*m.cfg.SlowPeriod {
		m.closes = m.closes[len(m.closes)-m.cfg.SlowPeriod:]
	}
	if len(m.closes) < m.cfg.SlowPeriod {
		return nil, nil
	}

	fast := lastSMA(m.closes, m.cfg.FastPeriod)
	slow := lastSMA(m.closes, m.cfg.SlowPeriod)
	m.slowHist = append(m.slowHist, slow)
	if len(m.slowHist) > m.cfg.ConfirmBars+1 {
		m.slowHist = m.slowHist[len(m.slowHist)-m.cfg.ConfirmBars-1:]
	}

	// The cross check reads the counter as of the previous bar; the counter
	// then advances with this bar's MAs before the false-break check.
	ev := m.signalEvent(bar, history, fast, slow)
	if ev == nil {
		ev = m.stopLossEvent(bar, history)
	}
	m.rel = bumpRel(m.rel, fast, slow)
	if ev == nil {
		ev = m.reversalEvent(bar, history, fast, slow)
	}
	return ev, nil
}

// bumpRel advances the signed bars-since-cross counter: it grows while the
// fast MA stays on one side of the slow MA and restarts at ±1 on a cross.
// Equal MAs leave it untouched.
func bumpRel(rel int, fast, slow float64) int {
	switch {
	case fast > slow:
		if rel > 0 {
			return rel + 1
		}
		return 1
	case fast < slow:
		if rel < 0 {
			return rel - 1
		}
		return -1
	}
	return rel
}

func (m *MACross) signalEvent(bar market.Kline, history []ledger.Snapshot, fast, slow float64) *ledger.Event {
	if m.rel < m.cfg.ConfirmBars && m.rel > -m.cfg.ConfirmBars {
		return nil
	}

	var side ledger.Side
	switch {
	case m.rel > 0 && fast < slow:
		side = ledger.Sell
	case m.rel < 0 && fast > slow:
		side = ledger.Buy
	default:
		return nil
	}

	if m.trendExhausted(side) {
		return nil
	}

	prevUnits := decimal.Zero
	if len(history) > 0 {
		prevUnits = history[len(history)-1].Units
	}
	flipping := (side == ledger.Buy && prevUnits.IsNegative()) ||
		(side == ledger.Sell && prevUnits.IsPositive())

	var amt decimal.Decimal
	if flipping {
		amt = m.ladder.ResetAndFirst()
	} else {
		var ok bool
		if amt, ok = m.ladder.FirstAvailable(); !ok {
			return nil
		}
	}

	units := fees.BuyableUnits(amt, bar.Open)
	if flipping {
		units = units.Add(prevUnits.Abs())
	}
	if !units.IsPositive() {
		return nil
	}

	return &ledger.Event{
		Time:   bar.StartTime,
		Side:   side,
		Price:  bar.Open,
		Units:  units,
		Class:  fees.Taker,
		Reason: ledger.Reason{Kind: ledger.ReasonSignal, Note: "confirmed ma cross"},
	}
}

// trendExhausted reports whether the slow MA has moved strictly monotonically
// in the signal's direction through the whole confirmation window. Entering
// there chases a move that already ran its course.
func (m *MACross) trendExhausted(side ledger.Side) bool {
	if len(m.slowHist) < m.cfg.ConfirmBars+1 {
		return false
	}
	for i := 1; i < len(m.slowHist); i++ {
		rising := m.slowHist[i] > m.slowHist[i-1]
		if side == ledger.Buy && !rising {
			return false
		}
		if side == ledger.Sell && rising {
			return false
		}
	}
	return true
}

func (m *MACross) stopLossEvent(bar market.Kline, history []ledger.Snapshot) *ledger.Event {
	if len(history) == 0 {
		return nil
	}
	pos := history[len(history)-1]
	if pos.Flat() {
		return nil
	}

	avg := pos.AvgEntryPrice().Round(2)
	var price decimal.Decimal
	if pos.Long() {
		if avg.Sub(bar.Low).LessThanOrEqual(m.cfg.StopLossPoints) {
			return nil
		}
		price = avg.Sub(m.cfg.StopLossPoints)
	} else {
		if bar.High.Sub(avg).LessThanOrEqual(m.cfg.StopLossPoints) {
			return nil
		}
		price = avg.Add(m.cfg.StopLossPoints)
	}

	side := ledger.Sell
	if !pos.Long() {
		side = ledger.Buy
	}
	m.ladder.Reset()
	return &ledger.Event{
		Time:   bar.StartTime,
		Side:   side,
		Price:  price,
		Units:  pos.Units.Abs(),
		Class:  fees.Taker,
		Reason: ledger.Reason{Kind: ledger.ReasonStopLoss, Note: "adverse move beyond threshold"},
	}
}

// reversalEvent re-covers a false break: the last two non-liquidation trades
// went opposite directions and the MAs crossed back against the newer one
// within the reversal window, so the newer trade is taken back at the close,
// sized to both close it and restore the original direction.
func (m *MACross) reversalEvent(bar market.Kline, history []ledger.Snapshot, fast, slow float64) *ledger.Event {
	last1, last2, ok := lastTwoTrades(history)
	if !ok || last1.Event.Side == last2.Event.Side {
		return nil
	}

	idx, seen := m.barIdxSeen[last1.Event.Time.Unix()]
	if !seen || m.barIdx-idx >= m.cfg.ReversalBars {
		return nil
	}

	crossedBack := (last1.Event.Side == ledger.Buy && fast < slow) ||
		(last1.Event.Side == ledger.Sell && fast > slow)
	if !crossedBack {
		return nil
	}

	m.ladder.MarkConsumedBelow(last2.CostBasis)
	return &ledger.Event{
		Time:   bar.StartTime,
		Side:   last1.Event.Side.Opposite(),
		Price:  bar.Close,
		Units:  last1.Event.Units,
		Class:  fees.Taker,
		Reason: ledger.Reason{Kind: ledger.ReasonReversal, Note: "false break re-cover"},
	}
}

func lastTwoTrades(history []ledger.Snapshot) (last1, last2 ledger.Snapshot, ok bool) {
	found := 0
	for i := len(history) - 1; i >= 0 && found < 2; i-- {
		s := history[i]
		if s.Event == nil || s.Event.Reason.Kind == ledger.ReasonLiquidation {
			continue
		}
		if found == 0 {
			last1 = s
		} else {
			last2 = s
		}
		found++
	}
	return last1, last2, found == 2
}

func lastSMA(closes []float64, period int) float64 {
	out := talib.Sma(closes, period)
	return out[len(out)-1]
}

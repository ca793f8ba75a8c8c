package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/willyhc/futsim/backtest"
	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/journal"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
)

// Unbuilt extension points. The intended behavior of both was never pinned
// down, so the constructor refuses the modes outright instead of guessing.
var (
	ErrPercentSpacing = errors.New("strategy: percentage grid spacing is not implemented")
	ErrCircuitBreaker = errors.New("strategy: grid circuit breaker is not implemented")
)

// HedgeGridConfig parameterizes the twin-ledger grid.
type HedgeGridConfig struct {
	Name string

	// Price ladder: Levels rungs descending from Upper toward Lower with an
	// integer gap of (Upper−Lower)/Levels.
	Lower  decimal.Decimal
	Upper  decimal.Decimal
	Levels int

	// PercentSpacing selects a percentage-denominated rung gap instead of
	// the integer ladder. Setting it is an error; see ErrPercentSpacing.
	PercentSpacing decimal.Decimal
	// CircuitBreakerRungs would force-flatten after this many rung fills in
	// one bar. Setting it is an error; see ErrCircuitBreaker.
	CircuitBreakerRungs int

	// AmountRatio scales each rung's investment from the previous one,
	// floored to whole currency units. The sell-side ladder uses the same
	// amounts back to front.
	AmountRatio decimal.Decimal

	Schedule      fees.Schedule
	Leverage      decimal.Decimal
	InvestCapital decimal.Decimal
	MarginCapital decimal.Decimal
}

// HedgeGrid runs one long-biased and one short-biased ledger over the same
// bars. Each side owns its book, half the capital, and its own rung state.
type HedgeGrid struct {
	cfg  HedgeGridConfig
	log  *zap.Logger
	buy  *gridSide
	sell *gridSide
}

// HedgeGridResult pairs the two runs. GridBreached is set once any bar
// ranged outside the ladder bounds on either side.
type HedgeGridResult struct {
	Name         string
	Long         backtest.Result
	Short        backtest.Result
	GridBreached bool
}

func NewHedgeGrid(cfg HedgeGridConfig, log *zap.Logger) (*HedgeGrid, error) {
	if !cfg.PercentSpacing.IsZero() {
		return nil, ErrPercentSpacing
	}
	if cfg.CircuitBreakerRungs != 0 {
		return nil, ErrCircuitBreaker
	}
	if cfg.Levels <= 0 {
		return nil, fmt.Errorf("strategy: grid levels %d must be positive", cfg.Levels)
	}
	if !cfg.Upper.GreaterThan(cfg.Lower) || !cfg.Lower.IsPositive() {
		return nil, fmt.Errorf("strategy: grid bounds [%s, %s] invalid", cfg.Lower, cfg.Upper)
	}
	if !cfg.AmountRatio.IsPositive() {
		return nil, fmt.Errorf("strategy: amount ratio %s must be positive", cfg.AmountRatio)
	}
	if log == nil {
		log = zap.NewNop()
	}

	prices := gridPrices(cfg.Lower, cfg.Upper, cfg.Levels)
	if len(prices) == 0 {
		return nil, fmt.Errorf("strategy: grid [%s, %s]/%d yields no rungs", cfg.Lower, cfg.Upper, cfg.Levels)
	}
	amounts := gridAmounts(cfg.InvestCapital.Mul(cfg.Leverage), cfg.AmountRatio, len(prices))

	buyRungs := make([]gridRung, len(prices))
	sellRungs := make([]gridRung, len(prices))
	for i := range prices {
		buyRungs[i] = gridRung{price: prices[i], amount: amounts[i]}
		sellRungs[i] = gridRung{price: prices[i], amount: amounts[len(amounts)-1-i]}
	}

	return &HedgeGrid{
		cfg: cfg,
		log: log,
		buy: &gridSide{
			name:  cfg.Name + "-long",
			side:  ledger.Buy,
			rungs: buyRungs,
			lower: prices[len(prices)-1],
			upper: prices[0],
		},
		sell: &gridSide{
			name:  cfg.Name + "-short",
			side:  ledger.Sell,
			rungs: sellRungs,
			lower: prices[len(prices)-1],
			upper: prices[0],
		},
	}, nil
}

// Run replays both sides over the bars. The journal may be nil. The two
// sides run sequentially and never share ledger state.
func (h *HedgeGrid) Run(bars market.Series, j journal.Journal) (HedgeGridResult, error) {
	halfInvest := h.cfg.InvestCapital.Div(two).RoundFloor(2)
	halfMargin := h.cfg.MarginCapital.Div(two).RoundFloor(2)

	res := HedgeGridResult{Name: h.cfg.Name}
	for _, side := range []*gridSide{h.buy, h.sell} {
		book, err := ledger.NewBook(ledger.Params{
			Schedule:      h.cfg.Schedule,
			Leverage:      h.cfg.Leverage,
			InvestCapital: halfInvest,
			MarginCapital: halfMargin,
		})
		if err != nil {
			return HedgeGridResult{}, err
		}
		dr, err := backtest.NewDriver(book, side, j, h.log)
		if err != nil {
			return HedgeGridResult{}, err
		}
		out, err := dr.Run(bars)
		if err != nil {
			return HedgeGridResult{}, fmt.Errorf("strategy: %s: %w", side.name, err)
		}
		if side.side == ledger.Buy {
			res.Long = out
		} else {
			res.Short = out
		}
	}

	res.GridBreached = h.buy.breached || h.sell.breached
	return res, nil
}

var two = decimal.NewFromInt(2)

// gridPrices descends from upper by the integer gap until lower.
func gridPrices(lower, upper decimal.Decimal, levels int) []decimal.Decimal {
	gap := upper.Sub(lower).Div(decimal.NewFromInt(int64(levels))).Floor()
	if !gap.IsPositive() {
		return nil
	}
	var out []decimal.Decimal
	for p := upper; p.GreaterThanOrEqual(lower); p = p.Sub(gap) {
		out = append(out, p)
	}
	return out
}

// gridAmounts front-loads the ladder: the first rung comes from the closed
// geometric sum, each later rung is the previous floored times the ratio.
func gridAmounts(total, ratio decimal.Decimal, n int) []decimal.Decimal {
	first := FirstLayerAmount(total.Div(two), ratio, n)
	out := make([]decimal.Decimal, n)
	amt := first
	for i := range out {
		out[i] = amt
		amt = amt.Mul(ratio).Floor()
	}
	return out
}

type gridRung struct {
	price  decimal.Decimal
	amount decimal.Decimal
	filled bool
}

// gridSide is one half of the hedge: a policy that fires the first untouched
// rung whose price falls strictly inside the bar's range. Rungs fire once.
type gridSide struct {
	name  string
	side  ledger.Side
	rungs []gridRung

	lower, upper decimal.Decimal
	breached     bool
}

func (g *gridSide) Name() string { return g.name }

func (g *gridSide) Decide(bar market.Kline, _ []ledger.Snapshot) (*ledger.Event, error) {
	if bar.High.GreaterThan(g.upper) || bar.Low.LessThan(g.lower) {
		g.breached = true
	}

	for i := range g.rungs {
		r := &g.rungs[i]
		if r.filled {
			continue
		}
		if !bar.High.GreaterThan(r.price) || !r.price.GreaterThan(bar.Low) {
			continue
		}
		r.filled = true

		units := fees.BuyableUnits(r.amount, r.price)
		if !units.IsPositive() {
			continue
		}
		return &ledger.Event{
			Time:   bar.StartTime,
			Side:   g.side,
			Price:  r.price,
			Units:  units,
			Class:  fees.Maker,
			Reason: ledger.Reason{Kind: ledger.ReasonGridFill, Note: fmt.Sprintf("rung %d", i)},
		}, nil
	}
	return nil, nil
}

// Breached reports whether any bar ranged outside the ladder bounds.
func (g *gridSide) Breached() bool { return g.breached }

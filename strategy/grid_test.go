package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
)

func testGridConfig(t *testing.T) HedgeGridConfig {
	t.Helper()
	sched, err := fees.NewSchedule(d("0.0002"), d("0.0004"))
	require.NoError(t, err)
	return HedgeGridConfig{
		Name:          "btc-range",
		Lower:         d("9000"),
		Upper:         d("10000"),
		Levels:        4,
		AmountRatio:   d("1.05"),
		Schedule:      sched,
		Leverage:      d("100"),
		InvestCapital: d("1000"),
		MarginCapital: d("4000"),
	}
}

func TestNewHedgeGridRefusesUnbuiltModes(t *testing.T) {
	t.Parallel()

	cfg := testGridConfig(t)
	cfg.PercentSpacing = d("2")
	_, err := NewHedgeGrid(cfg, nil)
	assert.ErrorIs(t, err, ErrPercentSpacing)

	cfg = testGridConfig(t)
	cfg.CircuitBreakerRungs = 3
	_, err = NewHedgeGrid(cfg, nil)
	assert.ErrorIs(t, err, ErrCircuitBreaker)
}

func TestGridPrices(t *testing.T) {
	t.Parallel()

	prices := gridPrices(d("9000"), d("10000"), 4)
	require.Len(t, prices, 5, "gap 250 descending from the upper bound")

	want := []string{"10000", "9750", "9500", "9250", "9000"}
	for i, w := range want {
		assert.True(t, prices[i].Equal(d(w)), "rung %d: got %s want %s", i, prices[i], w)
	}
}

func TestGridAmountsFrontLoaded(t *testing.T) {
	t.Parallel()

	// Half of 1000×100 leveraged capital over 5 rungs at 5% per layer.
	amounts := gridAmounts(d("100000"), d("1.05"), 5)
	require.Len(t, amounts, 5)

	want := []string{"9049", "9501", "9976", "10474", "10997"}
	for i, w := range want {
		assert.True(t, amounts[i].Equal(d(w)), "layer %d: got %s want %s", i, amounts[i], w)
	}
}

func TestGridSideFiresFirstTouchedRungOnce(t *testing.T) {
	t.Parallel()

	g, err := NewHedgeGrid(testGridConfig(t), nil)
	require.NoError(t, err)

	at := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	touch := market.Kline{
		StartTime: at, EndTime: at.Add(5 * time.Minute),
		Open: d("9700"), High: d("9800"), Low: d("9600"), Close: d("9700"),
	}

	ev, err := g.buy.Decide(touch, nil)
	require.NoError(t, err)
	require.NotNil(t, ev, "9750 sits strictly inside the bar range")

	assert.Equal(t, ledger.Buy, ev.Side)
	assert.Equal(t, ledger.ReasonGridFill, ev.Reason.Kind)
	assert.Equal(t, fees.Maker, ev.Class, "resting rung orders fill passively")
	assert.True(t, ev.Price.Equal(d("9750")))

	// Same bar again: the rung is spent.
	touch.StartTime = touch.StartTime.Add(5 * time.Minute)
	ev, err = g.buy.Decide(touch, nil)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestGridSideBoundaryTouchDoesNotFill(t *testing.T) {
	t.Parallel()

	g, err := NewHedgeGrid(testGridConfig(t), nil)
	require.NoError(t, err)

	at := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	exact := market.Kline{
		StartTime: at, EndTime: at.Add(5 * time.Minute),
		Open: d("9750"), High: d("9750"), Low: d("9700"), Close: d("9720"),
	}
	ev, err := g.buy.Decide(exact, nil)
	require.NoError(t, err)
	assert.Nil(t, ev, "the rung must sit strictly inside the range")
}

func TestGridBreachFlag(t *testing.T) {
	t.Parallel()

	g, err := NewHedgeGrid(testGridConfig(t), nil)
	require.NoError(t, err)

	at := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	outside := market.Kline{
		StartTime: at, EndTime: at.Add(5 * time.Minute),
		Open: d("10050"), High: d("10100"), Low: d("10020"), Close: d("10050"),
	}
	_, err = g.buy.Decide(outside, nil)
	require.NoError(t, err)
	assert.True(t, g.buy.Breached())
}

func TestHedgeGridRun(t *testing.T) {
	t.Parallel()

	g, err := NewHedgeGrid(testGridConfig(t), nil)
	require.NoError(t, err)

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	mk := func(i int, open, high, low, close string) market.Kline {
		return market.Kline{
			StartTime: start.Add(time.Duration(i) * 5 * time.Minute),
			EndTime:   start.Add(time.Duration(i+1) * 5 * time.Minute),
			Open:      d(open), High: d(high), Low: d(low), Close: d(close),
		}
	}
	bars := market.Series{
		mk(0, "9700", "9800", "9600", "9700"), // fills 9750 on both sides
		mk(1, "9700", "9740", "9660", "9700"), // no rung inside
		mk(2, "9700", "9760", "9480", "9520"), // fills the next rung
	}

	res, err := g.Run(bars, nil)
	require.NoError(t, err)

	assert.Equal(t, "btc-range", res.Name)
	assert.Equal(t, 2, res.Long.Trades)
	assert.Equal(t, 2, res.Short.Trades)
	assert.False(t, res.GridBreached)
	require.NotEmpty(t, res.Long.Snapshots)
	assert.True(t, res.Long.Snapshots[0].Units.IsPositive())
	assert.True(t, res.Short.Snapshots[0].Units.IsNegative())
}

func TestHedgeGridRunMarksBreach(t *testing.T) {
	t.Parallel()

	g, err := NewHedgeGrid(testGridConfig(t), nil)
	require.NoError(t, err)

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	bars := market.Series{{
		StartTime: start, EndTime: start.Add(5 * time.Minute),
		Open: d("10050"), High: d("10200"), Low: d("10000"), Close: d("10100"),
	}}

	res, err := g.Run(bars, nil)
	require.NoError(t, err)
	assert.True(t, res.GridBreached)
}

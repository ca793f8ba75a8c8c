package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
)

// testCrossConfig shrinks the windows so a handful of bars can exercise the
// signal path.
func testCrossConfig() MACrossConfig {
	return MACrossConfig{
		FastPeriod:     2,
		SlowPeriod:     3,
		ConfirmBars:    2,
		ReversalBars:   10,
		StopLossPoints: decimal.NewFromInt(1000),
		InvestAmount:   decimal.NewFromInt(1000),
		Leverage:       decimal.NewFromInt(100),
		Levels:         3,
		LevelRatio:     decimal.NewFromInt(1),
	}
}

func bar(i int, open, high, low, close string) market.Kline {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 15 * time.Minute)
	return market.Kline{
		StartTime: start,
		EndTime:   start.Add(15 * time.Minute),
		Open:      d(open), High: d(high), Low: d(low), Close: d(close),
	}
}

func flatBar(i int, price string) market.Kline {
	return bar(i, price, price, price, price)
}

func TestMACrossSignalAfterConfirmedWindow(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	// Rising closes keep the fast MA above the slow MA for the confirmation
	// window; the sharp drop then crosses it back down.
	for i, c := range []string{"10", "20", "30", "40"} {
		ev, err := m.Decide(flatBar(i, c), nil)
		require.NoError(t, err)
		assert.Nil(t, ev, "warmup and confirmation bars trade nothing")
	}

	ev, err := m.Decide(flatBar(4, "5"), nil)
	require.NoError(t, err)
	require.NotNil(t, ev, "cross back after confirmed window must signal")

	assert.Equal(t, ledger.Sell, ev.Side)
	assert.Equal(t, ledger.ReasonSignal, ev.Reason.Kind)
	assert.Equal(t, fees.Taker, ev.Class)
	assert.True(t, ev.Price.Equal(d("5")), "entry at the bar open")
	assert.True(t, ev.Units.IsPositive())
}

func TestMACrossUnconfirmedCrossIsIgnored(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	// Only one bar above before the cross back: below the confirm window.
	for i, c := range []string{"10", "20", "30"} {
		_, err := m.Decide(flatBar(i, c), nil)
		require.NoError(t, err)
	}
	ev, err := m.Decide(flatBar(3, "5"), nil)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestMACrossFlipSizesAgainstOpenPosition(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	for i, c := range []string{"10", "20", "30", "40"} {
		_, err := m.Decide(flatBar(i, c), nil)
		require.NoError(t, err)
	}

	history := []ledger.Snapshot{{
		Units:     d("10"),
		CostBasis: d("100"),
	}}
	ev, err := m.Decide(flatBar(4, "5"), history)
	require.NoError(t, err)
	require.NotNil(t, ev)

	// First rung is 100000/3 leveraged capital; at price 5 that buys
	// 6666.666 units, plus the 10 long units the flip must also close.
	assert.Equal(t, ledger.Sell, ev.Side)
	assert.True(t, ev.Units.Equal(d("6676.666")), "got %s", ev.Units)
}

func TestMACrossStopLossLong(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.Decide(flatBar(i, "10000"), nil)
		require.NoError(t, err)
	}

	history := []ledger.Snapshot{{
		Units:     d("100"),
		CostBasis: d("1000000"), // weighted entry 10000
	}}
	ev, err := m.Decide(bar(3, "10000", "10000", "8500", "10000"), history)
	require.NoError(t, err)
	require.NotNil(t, ev, "1500-point adverse move must stop out")

	assert.Equal(t, ledger.Sell, ev.Side)
	assert.Equal(t, ledger.ReasonStopLoss, ev.Reason.Kind)
	assert.True(t, ev.Price.Equal(d("9000")), "close at entry minus threshold, got %s", ev.Price)
	assert.True(t, ev.Units.Equal(d("100")))
}

func TestMACrossStopLossShort(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.Decide(flatBar(i, "10000"), nil)
		require.NoError(t, err)
	}

	history := []ledger.Snapshot{{
		Units:     d("-100"),
		CostBasis: d("1000000"),
	}}
	ev, err := m.Decide(bar(3, "10000", "11500", "10000", "10000"), history)
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, ledger.Buy, ev.Side)
	assert.True(t, ev.Price.Equal(d("11000")), "close at entry plus threshold, got %s", ev.Price)
}

func TestMACrossStopLossInsideThresholdHolds(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.Decide(flatBar(i, "10000"), nil)
		require.NoError(t, err)
	}

	history := []ledger.Snapshot{{
		Units:     d("100"),
		CostBasis: d("1000000"),
	}}
	ev, err := m.Decide(bar(3, "10000", "10000", "9100", "10000"), history)
	require.NoError(t, err)
	assert.Nil(t, ev, "a 900-point move stays inside the threshold")
}

func TestMACrossFalseBreakReversal(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	sellAt := time.Date(2025, 8, 1, 1, 0, 0, 0, time.UTC)
	m.barIdxSeen[sellAt.Unix()] = 3
	m.barIdx = 7 // 4 bars since the sell, inside the window

	history := []ledger.Snapshot{
		{
			Units:     d("5"),
			CostBasis: d("50000"),
			Event:     &ledger.Event{Side: ledger.Buy, Units: d("5"), Time: sellAt.Add(-time.Hour)},
		},
		{
			Units:     d("-3"),
			CostBasis: d("30000"),
			Event:     &ledger.Event{Side: ledger.Sell, Units: d("8"), Time: sellAt},
		},
	}

	// fast back above slow: the sell was a false break.
	ev := m.reversalEvent(bar(7, "10500", "10500", "10500", "10500"), history, 2, 1)
	require.NotNil(t, ev)

	assert.Equal(t, ledger.Buy, ev.Side)
	assert.Equal(t, ledger.ReasonReversal, ev.Reason.Kind)
	assert.True(t, ev.Units.Equal(d("8")), "re-cover is sized to the whole false-break trade")
	assert.True(t, ev.Price.Equal(d("10500")), "re-cover at the bar close")
}

func TestMACrossReversalOutsideWindowHolds(t *testing.T) {
	t.Parallel()

	m, err := NewMACross(testCrossConfig())
	require.NoError(t, err)

	sellAt := time.Date(2025, 8, 1, 1, 0, 0, 0, time.UTC)
	m.barIdxSeen[sellAt.Unix()] = 3
	m.barIdx = 20

	history := []ledger.Snapshot{
		{Event: &ledger.Event{Side: ledger.Buy, Units: d("5")}},
		{Event: &ledger.Event{Side: ledger.Sell, Units: d("8"), Time: sellAt}},
	}
	ev := m.reversalEvent(flatBar(20, "10500"), history, 2, 1)
	assert.Nil(t, ev)
}

func TestNewMACrossValidation(t *testing.T) {
	t.Parallel()

	cfg := testCrossConfig()
	cfg.SlowPeriod = cfg.FastPeriod
	_, err := NewMACross(cfg)
	assert.Error(t, err, "slow period must exceed fast")

	cfg = testCrossConfig()
	cfg.StopLossPoints = decimal.Zero
	_, err = NewMACross(cfg)
	assert.Error(t, err)
}

package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willyhc/futsim/market"
)

// countingSource serves a fixed series and counts fetches.
type countingSource struct {
	bars    market.Series
	fetches int
}

func (s *countingSource) Fetch(_ market.Product, _ market.Interval, from, to time.Time) (market.Series, error) {
	s.fetches++
	return s.bars.Slice(from, to), nil
}

func seriesEnding(end time.Time, n int) market.Series {
	out := make(market.Series, n)
	p := decimal.NewFromInt(10000)
	for i := range out {
		start := end.Add(time.Duration(i-n) * 15 * time.Minute)
		out[i] = market.Kline{
			StartTime: start,
			EndTime:   start.Add(15 * time.Minute),
			Open:      p, High: p, Low: p, Close: p,
		}
	}
	return out
}

func TestCacheServesCoveredRange(t *testing.T) {
	t.Parallel()

	end := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{bars: seriesEnding(end, 8)}
	c, err := NewCache(src, 4)
	require.NoError(t, err)

	first, err := c.Fetch("BTCUSDT", market.Interval15m, time.Time{}, end)
	require.NoError(t, err)
	require.Len(t, first, 8)
	assert.Equal(t, 1, src.fetches)

	// A narrower request inside the cached range must not refetch.
	again, err := c.Fetch("BTCUSDT", market.Interval15m, end.Add(-time.Hour), end.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1, src.fetches, "covered request served from cache")
}

func TestCacheRefetchesWhenEndingBarFallsShort(t *testing.T) {
	t.Parallel()

	end := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{bars: seriesEnding(end, 8)}
	c, err := NewCache(src, 4)
	require.NoError(t, err)

	_, err = c.Fetch("BTCUSDT", market.Interval15m, time.Time{}, end.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, src.fetches)

	// The cached copy ends at `end`; asking past it must go to the source.
	src.bars = seriesEnding(end.Add(time.Hour), 12)
	got, err := c.Fetch("BTCUSDT", market.Interval15m, time.Time{}, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetches, "stale entry is refetched whole")
	assert.Len(t, got, 12)
}

func TestCacheEvictsOldestBeyondBound(t *testing.T) {
	t.Parallel()

	end := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{bars: seriesEnding(end, 2)}
	c, err := NewCache(src, 2)
	require.NoError(t, err)

	for _, p := range []market.Product{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		_, err := c.Fetch(p, market.Interval15m, time.Time{}, end)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	// The first key was evicted, so it costs a fourth source fetch.
	_, err = c.Fetch("BTCUSDT", market.Interval15m, time.Time{}, end)
	require.NoError(t, err)
	assert.Equal(t, 4, src.fetches)
}

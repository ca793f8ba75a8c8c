package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kline is one OHLC price bar. Bars are immutable once loaded; a Series is
// strictly ordered by StartTime.
type Kline struct {
	StartTime  time.Time
	EndTime    time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	TradeCount int64
}

// Product identifies a tradable pair, e.g. "BTCUSDT".
type Product string

// Interval is a bar bucket size, e.g. "5m", "15m", "1d".
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Duration returns the bucket length, or 0 for an unknown interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	}
	return 0
}

// Series is an ordered run of bars.
type Series []Kline

// Validate fails on an empty series or any non-increasing StartTime. The
// ledger replay depends on strict time order, so callers are expected to
// check the feed once up front and abort on violation.
func (s Series) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("market: empty bar series")
	}
	for i := 1; i < len(s); i++ {
		if !s[i].StartTime.After(s[i-1].StartTime) {
			return fmt.Errorf("market: bar %d start %s not after bar %d start %s",
				i, s[i].StartTime.Format(time.RFC3339), i-1, s[i-1].StartTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Slice returns the bars with StartTime in [from, to). A zero bound is open.
func (s Series) Slice(from, to time.Time) Series {
	out := make(Series, 0, len(s))
	for _, k := range s {
		if !from.IsZero() && k.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && !k.StartTime.Before(to) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Covers reports whether the series' last bar ends at or after to. The feed
// cache uses this as its only staleness check: a cached range whose ending
// bar covers the request is served as-is.
func (s Series) Covers(to time.Time) bool {
	if len(s) == 0 {
		return false
	}
	last := s[len(s)-1]
	return !last.EndTime.Before(to)
}

// Closes returns the close column as float64, for indicator libraries.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, k := range s {
		out[i], _ = k.Close.Float64()
	}
	return out
}

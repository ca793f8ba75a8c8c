// Package feed supplies bar series to the backtest driver. Sources are
// read-only: a backtest never writes market data, it only consumes a
// previously exported range.
package feed

import (
	"fmt"
	"time"

	"github.com/willyhc/futsim/market"
)

// ErrNoData reports that a source has no file for the requested product and
// interval.
var ErrNoData = fmt.Errorf("feed: no data")

// Source produces the bars for one product and interval inside [from, to).
// Zero bounds are open. Implementations must return a validated, strictly
// time-ordered series.
type Source interface {
	Fetch(product market.Product, interval market.Interval, from, to time.Time) (market.Series, error)
}

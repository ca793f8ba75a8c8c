package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"

	"github.com/willyhc/futsim/market"
)

// CSVSource reads exported kline files from a directory. A product/interval
// pair maps to one file, tried in order:
//
//	{PRODUCT}_{interval}.csv
//	{PRODUCT}_{interval}.csv.xz
//	{PRODUCT}_{interval}.zip   (extracted next to itself, then read as .csv)
//
// Rows are:
//
//	start_time,end_time,open,high,low,close[,volume[,trade_count]]
//
// with RFC3339 times. A single header row ("start_time,...") is allowed.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) (*CSVSource, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("feed: %s is not a directory", dir)
	}
	return &CSVSource{dir: dir}, nil
}

func (s *CSVSource) Fetch(product market.Product, interval market.Interval, from, to time.Time) (market.Series, error) {
	r, closeFn, err := s.open(product, interval)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	bars, err := readBars(r)
	if err != nil {
		return nil, fmt.Errorf("feed: %s %s: %w", product, interval, err)
	}

	bars = bars.Slice(from, to)
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

func (s *CSVSource) open(product market.Product, interval market.Interval) (io.Reader, func() error, error) {
	base := fmt.Sprintf("%s_%s", product, interval)

	if f, err := os.Open(filepath.Join(s.dir, base+".csv")); err == nil {
		return f, f.Close, nil
	}

	if f, err := os.Open(filepath.Join(s.dir, base+".csv.xz")); err == nil {
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("feed: xz %s: %w", base, err)
		}
		return xr, f.Close, nil
	}

	// Binance-vision style monthly export: a zip holding the csv of the same
	// base name. Extract once next to the archive, then read the plain file.
	zipPath := filepath.Join(s.dir, base+".zip")
	if _, err := os.Stat(zipPath); err == nil {
		if err := unzip.Extract(zipPath, s.dir); err != nil {
			return nil, nil, fmt.Errorf("feed: unzip %s: %w", base, err)
		}
		f, err := os.Open(filepath.Join(s.dir, base+".csv"))
		if err != nil {
			return nil, nil, fmt.Errorf("feed: %s.zip held no %s.csv: %w", base, base, err)
		}
		return f, f.Close, nil
	}

	return nil, nil, fmt.Errorf("%w for %s %s in %s", ErrNoData, product, interval, s.dir)
}

func readBars(r io.Reader) (market.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var (
		out      market.Series
		sawFirst bool
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row.
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "start_time") {
				continue
			}
		}

		bar, ok, err := parseBarRow(row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, bar)
	}
}

func parseBarRow(row []string) (market.Kline, bool, error) {
	if len(row) < 6 {
		return market.Kline{}, false, nil
	}

	start, err := parseTime(row[0])
	if err != nil {
		return market.Kline{}, false, err
	}
	end, err := parseTime(row[1])
	if err != nil {
		return market.Kline{}, false, err
	}

	var prices [4]decimal.Decimal
	for i, col := range row[2:6] {
		v, err := decimal.NewFromString(strings.TrimSpace(col))
		if err != nil {
			return market.Kline{}, false, fmt.Errorf("bad price %q: %w", col, err)
		}
		prices[i] = v
	}

	bar := market.Kline{
		StartTime: start,
		EndTime:   end,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
	}

	if len(row) > 6 {
		if bar.Volume, err = decimal.NewFromString(strings.TrimSpace(row[6])); err != nil {
			return market.Kline{}, false, fmt.Errorf("bad volume %q: %w", row[6], err)
		}
	}
	if len(row) > 7 {
		if bar.TradeCount, err = strconv.ParseInt(strings.TrimSpace(row[7]), 10, 64); err != nil {
			return market.Kline{}, false, fmt.Errorf("bad trade count %q: %w", row[7], err)
		}
	}
	return bar, true, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
		}
		t = t2
	}
	return t, nil
}

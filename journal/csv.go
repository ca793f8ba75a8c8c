package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes trades and snapshots to two flat files, handy for
// spreadsheet inspection of a single run.
type CSVJournal struct {
	trades    *csv.Writer
	snapshots *csv.Writer
	tf, sf    *os.File
}

func NewCSV(tradesPath, snapshotsPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	sf, err := os.Create(snapshotsPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	sw := csv.NewWriter(sf)

	if err := tw.Write([]string{"run_id", "event_id", "time", "side", "price", "units", "class", "reason", "note", "profit"}); err != nil {
		return nil, err
	}
	if err := sw.Write([]string{"run_id", "time", "units", "cost_basis", "fees_paid", "margin", "mark_price", "profit_defined", "profit", "cumulative_profit", "liquidation_price", "break_even_price", "balance"}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	sw.Flush()
	if err := sw.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{tw, sw, tf, sf}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.RunID,
		t.EventID,
		t.Time.Format(time.RFC3339),
		t.Side,
		t.Price.String(),
		t.Units.String(),
		t.Class,
		t.Reason,
		t.Note,
		t.Profit.String(),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordSnapshot(s SnapshotRecord) error {
	err := j.snapshots.Write([]string{
		s.RunID,
		s.Time.Format(time.RFC3339),
		s.Units.String(),
		s.CostBasis.String(),
		s.FeesPaid.String(),
		s.Margin.String(),
		s.MarkPrice.String(),
		strconv.FormatBool(s.ProfitDefined),
		s.Profit.String(),
		s.CumulativeProfit.String(),
		s.LiquidationPrice.String(),
		s.BreakEvenPrice.String(),
		s.Balance.String(),
	})
	if err != nil {
		return err
	}
	j.snapshots.Flush()
	return j.snapshots.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.snapshots.Flush()
	if err := j.snapshots.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.sf.Close()
}

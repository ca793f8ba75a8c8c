package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteJournal persists runs to a local sqlite database so finished
// backtests can be queried and compared after the process exits.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, event_id, time, side, price, units, class, reason, note, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.EventID, t.Time, t.Side, t.Price.String(), t.Units.String(),
		t.Class, t.Reason, t.Note, t.Profit.String(),
	)
	return err
}

func (j *SQLiteJournal) RecordSnapshot(s SnapshotRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(run_id, time, units, cost_basis, fees_paid, margin, mark_price,
		 profit_defined, profit, cumulative_profit, liquidation_price, break_even_price, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Time, s.Units.String(), s.CostBasis.String(), s.FeesPaid.String(),
		s.Margin.String(), s.MarkPrice.String(), s.ProfitDefined, s.Profit.String(),
		s.CumulativeProfit.String(), s.LiquidationPrice.String(),
		s.BreakEvenPrice.String(), s.Balance.String(),
	)
	return err
}

// TradesByRun returns a run's trades oldest first.
func (j *SQLiteJournal) TradesByRun(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, event_id, time, side, price, units, class, reason, note, profit
		FROM trades WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			t                    TradeRecord
			price, units, profit string
		)
		if err := rows.Scan(&t.RunID, &t.EventID, &t.Time, &t.Side,
			&price, &units, &t.Class, &t.Reason, &t.Note, &profit); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("journal: trade %s price: %w", t.EventID, err)
		}
		if t.Units, err = decimal.NewFromString(units); err != nil {
			return nil, fmt.Errorf("journal: trade %s units: %w", t.EventID, err)
		}
		if t.Profit, err = decimal.NewFromString(profit); err != nil {
			return nil, fmt.Errorf("journal: trade %s profit: %w", t.EventID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SnapshotsByRun returns a run's ledger history oldest first.
func (j *SQLiteJournal) SnapshotsByRun(runID string) ([]SnapshotRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, units, cost_basis, fees_paid, margin, mark_price,
		       profit_defined, profit, cumulative_profit, liquidation_price, break_even_price, balance
		FROM snapshots WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			s    SnapshotRecord
			cols [10]string
		)
		if err := rows.Scan(&s.RunID, &s.Time, &cols[0], &cols[1], &cols[2], &cols[3],
			&cols[4], &s.ProfitDefined, &cols[5], &cols[6], &cols[7], &cols[8], &cols[9]); err != nil {
			return nil, err
		}
		dsts := []*decimal.Decimal{
			&s.Units, &s.CostBasis, &s.FeesPaid, &s.Margin, &s.MarkPrice,
			&s.Profit, &s.CumulativeProfit, &s.LiquidationPrice, &s.BreakEvenPrice, &s.Balance,
		}
		for i, dst := range dsts {
			if *dst, err = decimal.NewFromString(cols[i]); err != nil {
				return nil, fmt.Errorf("journal: snapshot at %s: %w", s.Time, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

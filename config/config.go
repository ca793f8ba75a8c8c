// Package config loads and validates run configuration. Validation is
// fail-fast: a missing fee rate or ladder parameter aborts before any
// formula runs, never silently defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/willyhc/futsim/fees"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/market"
	"github.com/willyhc/futsim/strategy"
)

// Config is the complete configuration for one backtest run. Money figures
// are decimal strings so no value passes through float64 on its way to the
// ledger.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Fees    FeesConfig    `json:"fees" yaml:"fees"`
	Data    DataConfig    `json:"data" yaml:"data"`
	Journal JournalConfig `json:"journal" yaml:"journal"`

	MACross *MACrossConfig `json:"ma_cross,omitempty" yaml:"ma_cross,omitempty"`
	Grid    *GridConfig    `json:"grid,omitempty" yaml:"grid,omitempty"`
}

// AccountConfig is the capital split backing the run.
type AccountConfig struct {
	InvestCapital string `json:"invest_capital" yaml:"invest_capital"`
	MarginCapital string `json:"margin_capital" yaml:"margin_capital"`
	Leverage      string `json:"leverage" yaml:"leverage"`
}

// FeesConfig is the maker/taker rate pair.
type FeesConfig struct {
	MakerRate string `json:"maker_rate" yaml:"maker_rate"`
	TakerRate string `json:"taker_rate" yaml:"taker_rate"`
}

// DataConfig selects the bar range to replay.
type DataConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	Product  string `json:"product" yaml:"product"`
	Interval string `json:"interval" yaml:"interval"`
	Start    string `json:"start" yaml:"start"` // RFC3339
	End      string `json:"end" yaml:"end"`     // RFC3339

	CacheEntries int `json:"cache_entries,omitempty" yaml:"cache_entries,omitempty"`
}

// JournalConfig selects the report sink.
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// MACrossConfig parameterizes the moving-average cross policy.
type MACrossConfig struct {
	FastPeriod     int    `json:"fast_period" yaml:"fast_period"`
	SlowPeriod     int    `json:"slow_period" yaml:"slow_period"`
	ConfirmBars    int    `json:"confirm_bars" yaml:"confirm_bars"`
	ReversalBars   int    `json:"reversal_bars" yaml:"reversal_bars"`
	StopLossPoints string `json:"stop_loss_points" yaml:"stop_loss_points"`
	Levels         int    `json:"levels" yaml:"levels"`
	LevelRatio     string `json:"level_ratio" yaml:"level_ratio"`
}

// GridConfig parameterizes the hedged grid.
type GridConfig struct {
	Name        string `json:"name" yaml:"name"`
	Lower       string `json:"lower" yaml:"lower"`
	Upper       string `json:"upper" yaml:"upper"`
	Levels      int    `json:"levels" yaml:"levels"`
	AmountRatio string `json:"amount_ratio" yaml:"amount_ratio"`
}

// LoadFromFile reads and validates a YAML (or JSON) config.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field the run will need. It parses each decimal
// string once so a malformed figure fails here rather than mid-run.
func (c *Config) Validate() error {
	if _, err := c.Schedule(); err != nil {
		return err
	}
	if _, err := c.LedgerParams(); err != nil {
		return err
	}

	if c.Data.Product == "" {
		return fmt.Errorf("data.product is required")
	}
	if market.Interval(c.Data.Interval).Duration() == 0 {
		return fmt.Errorf("data.interval %q is unknown", c.Data.Interval)
	}
	if _, _, err := c.TimeRange(); err != nil {
		return err
	}
	if c.Data.CacheEntries < 0 {
		return fmt.Errorf("data.cache_entries must not be negative")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.SnapshotsFile == "" {
			return fmt.Errorf("journal trades_file and snapshots_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.MACross != nil {
		if _, err := c.MACrossStrategy(); err != nil {
			return err
		}
	}
	if c.Grid != nil {
		if _, err := c.GridStrategy(); err != nil {
			return err
		}
	}
	return nil
}

// Schedule builds the fee schedule. A missing or malformed rate is fatal.
func (c *Config) Schedule() (fees.Schedule, error) {
	maker, err := dec("fees.maker_rate", c.Fees.MakerRate)
	if err != nil {
		return fees.Schedule{}, err
	}
	taker, err := dec("fees.taker_rate", c.Fees.TakerRate)
	if err != nil {
		return fees.Schedule{}, err
	}
	return fees.NewSchedule(maker, taker)
}

// LedgerParams builds the book parameters from the account section.
func (c *Config) LedgerParams() (ledger.Params, error) {
	sched, err := c.Schedule()
	if err != nil {
		return ledger.Params{}, err
	}
	invest, err := dec("account.invest_capital", c.Account.InvestCapital)
	if err != nil {
		return ledger.Params{}, err
	}
	margin, err := dec("account.margin_capital", c.Account.MarginCapital)
	if err != nil {
		return ledger.Params{}, err
	}
	leverage, err := dec("account.leverage", c.Account.Leverage)
	if err != nil {
		return ledger.Params{}, err
	}
	return ledger.Params{
		Schedule:      sched,
		Leverage:      leverage,
		InvestCapital: invest,
		MarginCapital: margin,
	}, nil
}

// TimeRange parses the replay window.
func (c *Config) TimeRange() (from, to time.Time, err error) {
	if c.Data.Start != "" {
		if from, err = time.Parse(time.RFC3339, c.Data.Start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data.start: %w", err)
		}
	}
	if c.Data.End != "" {
		if to, err = time.Parse(time.RFC3339, c.Data.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data.end: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end must be after data.start")
	}
	return from, to, nil
}

// MACrossStrategy builds the policy config, combining the strategy section
// with the account's capital and leverage.
func (c *Config) MACrossStrategy() (strategy.MACrossConfig, error) {
	if c.MACross == nil {
		return strategy.MACrossConfig{}, fmt.Errorf("ma_cross section is required")
	}
	params, err := c.LedgerParams()
	if err != nil {
		return strategy.MACrossConfig{}, err
	}

	out := strategy.MACrossDefaults()
	out.InvestAmount = params.InvestCapital
	out.Leverage = params.Leverage

	m := c.MACross
	if m.FastPeriod != 0 {
		out.FastPeriod = m.FastPeriod
	}
	if m.SlowPeriod != 0 {
		out.SlowPeriod = m.SlowPeriod
	}
	if m.ConfirmBars != 0 {
		out.ConfirmBars = m.ConfirmBars
	}
	if m.ReversalBars != 0 {
		out.ReversalBars = m.ReversalBars
	}
	if m.Levels != 0 {
		out.Levels = m.Levels
	}
	if m.StopLossPoints != "" {
		if out.StopLossPoints, err = dec("ma_cross.stop_loss_points", m.StopLossPoints); err != nil {
			return strategy.MACrossConfig{}, err
		}
	}
	if m.LevelRatio != "" {
		if out.LevelRatio, err = dec("ma_cross.level_ratio", m.LevelRatio); err != nil {
			return strategy.MACrossConfig{}, err
		}
	}
	return out, nil
}

// GridStrategy builds the hedge grid config.
func (c *Config) GridStrategy() (strategy.HedgeGridConfig, error) {
	if c.Grid == nil {
		return strategy.HedgeGridConfig{}, fmt.Errorf("grid section is required")
	}
	params, err := c.LedgerParams()
	if err != nil {
		return strategy.HedgeGridConfig{}, err
	}

	lower, err := dec("grid.lower", c.Grid.Lower)
	if err != nil {
		return strategy.HedgeGridConfig{}, err
	}
	upper, err := dec("grid.upper", c.Grid.Upper)
	if err != nil {
		return strategy.HedgeGridConfig{}, err
	}
	ratio, err := dec("grid.amount_ratio", c.Grid.AmountRatio)
	if err != nil {
		return strategy.HedgeGridConfig{}, err
	}
	if c.Grid.Levels <= 0 {
		return strategy.HedgeGridConfig{}, fmt.Errorf("grid.levels must be positive")
	}

	name := c.Grid.Name
	if name == "" {
		name = c.Data.Product
	}
	return strategy.HedgeGridConfig{
		Name:          name,
		Lower:         lower,
		Upper:         upper,
		Levels:        c.Grid.Levels,
		AmountRatio:   ratio,
		Schedule:      params.Schedule,
		Leverage:      params.Leverage,
		InvestCapital: params.InvestCapital,
		MarginCapital: params.MarginCapital,
	}, nil
}

// Default returns a runnable configuration with reference parameters.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InvestCapital: "1000",
			MarginCapital: "4000",
			Leverage:      "100",
		},
		Fees: FeesConfig{
			MakerRate: "0.0002",
			TakerRate: "0.0004",
		},
		Data: DataConfig{
			Dir:      "./data",
			Product:  "BTCUSDT",
			Interval: "15m",
		},
		Journal: JournalConfig{Type: "none"},
		MACross: &MACrossConfig{
			FastPeriod:     7,
			SlowPeriod:     25,
			ConfirmBars:    20,
			ReversalBars:   10,
			StopLossPoints: "1000",
			Levels:         10,
			LevelRatio:     "1.5",
		},
	}
}

func dec(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", field)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

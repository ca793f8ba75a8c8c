package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/willyhc/futsim/backtest"
	"github.com/willyhc/futsim/config"
	"github.com/willyhc/futsim/feed"
	"github.com/willyhc/futsim/journal"
	"github.com/willyhc/futsim/market"
)

var rootCmd = &cobra.Command{
	Use:   "futsim",
	Short: "A leveraged-futures backtest engine with exact decimal accounting",
	Long: `Futsim replays historical kline data against trading policies while
keeping an exact position ledger:

  - maker/taker fee accounting with conservative rounding
  - leveraged margin, liquidation and break-even figures per bar
  - ladder-sized MA-cross and hedged grid reference strategies
  - per-run trade and snapshot journals (sqlite or csv)`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "f", "", "path to run config (YAML or JSON)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	viper.SetEnvPrefix("FUTSIM")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// loadConfig reads the configured file, or falls back to the built-in
// reference defaults when none is given.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openJournal builds the configured report sink; nil means no journaling.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return nil, nil
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.SnapshotsFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
}

// loadBars fetches the configured bar range through the feed cache.
func loadBars(cfg *config.Config) (market.Series, error) {
	src, err := feed.NewCSVSource(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	entries := cfg.Data.CacheEntries
	if entries == 0 {
		entries = 8
	}
	cache, err := feed.NewCache(src, entries)
	if err != nil {
		return nil, err
	}

	from, to, err := cfg.TimeRange()
	if err != nil {
		return nil, err
	}
	return cache.Fetch(market.Product(cfg.Data.Product), market.Interval(cfg.Data.Interval), from, to)
}

func printResult(res backtest.Result) {
	fmt.Printf("run %s (%s)\n", res.RunID, res.Policy)
	fmt.Printf("  bars:          %d (%s - %s)\n", res.Bars,
		res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339))
	fmt.Printf("  trades:        %d (%d wins / %d losses)\n", res.Trades, res.Wins, res.Losses)
	fmt.Printf("  liquidations:  %d\n", res.Liquidations)
	fmt.Printf("  realized:      %s\n", res.RealizedProfit)
	fmt.Printf("  cumulative:    %s\n", res.CumulativeProfit)
	fmt.Printf("  end balance:   %s\n", res.EndBalance)
}

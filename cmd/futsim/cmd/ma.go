package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/willyhc/futsim/backtest"
	"github.com/willyhc/futsim/ledger"
	"github.com/willyhc/futsim/strategy"
)

var maCmd = &cobra.Command{
	Use:   "ma",
	Short: "Backtest the ladder-sized moving-average cross policy",
	Long: `Replay the configured bar range against the MA-cross policy: confirmed
fast/slow crosses open ladder-sized positions, adverse moves beyond the
threshold stop out, and false breaks re-cover within the reversal window.

Example:
  futsim ma -f examples/configs/ma.yaml`,
	RunE: runMA,
}

func init() {
	rootCmd.AddCommand(maCmd)
}

func runMA(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	params, err := cfg.LedgerParams()
	if err != nil {
		return err
	}
	book, err := ledger.NewBook(params)
	if err != nil {
		return err
	}

	mcfg, err := cfg.MACrossStrategy()
	if err != nil {
		return err
	}
	policy, err := strategy.NewMACross(mcfg)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	bars, err := loadBars(cfg)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	dr, err := backtest.NewDriver(book, policy, j, log)
	if err != nil {
		return err
	}
	res, err := dr.Run(bars)
	if err != nil {
		return err
	}

	printResult(res)
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/backtest"
	"github.com/rustyeddy/orb/config"
	"github.com/rustyeddy/orb/market"
	"github.com/rustyeddy/orb/perf"
	"github.com/rustyeddy/orb/trade"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through the breakout pipeline",
	Long: `Backtest replays a CSV of minute bars through the full decision
pipeline and reports per-period performance.

The bar file format is:
  symbol,time,open,high,low,close,volume,trade_count

Example:
  orb backtest --bars data/2024.csv --profile growth --report monthly`,
	RunE: runBacktest,
}

var (
	btBarsPath string
	btReport   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (required)")
	backtestCmd.Flags().StringVar(&btReport, "report", "monthly", "report period (daily, monthly, yearly)")

	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	period, err := reportPeriod(btReport)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(config.ModeBacktest)
	if err != nil {
		return err
	}
	prof, err := cfg.ResolveProfile()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	bars, err := backtest.LoadCSV(btBarsPath, loc)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	sink, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer sink.Close()

	runner := backtest.NewRunner(backtest.Options{
		Profile: prof,
		Clock:   market.Clock{Loc: loc, ORBMinutes: cfg.ORBMinutes},
		Commission: trade.Commission{
			PerShare: decimal.NewFromFloat(cfg.Commission.PerShare),
			Base:     decimal.NewFromFloat(cfg.Commission.Base),
		},
		StartingEquity: decimal.NewFromFloat(cfg.StartingEquity),
		Journal:        sink,
		Logger:         logger,
	})

	fmt.Printf("Replaying %d bars with profile %s\n\n", len(bars), prof.Name)

	res, err := runner.Run(bars)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Printf("Backtest Complete (%s to %s)\n",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))
	fmt.Printf("  Trades: %d (%d wins, %d losses)\n", res.Trades, res.Wins, res.Losses)
	if res.Trades > 0 {
		fmt.Printf("  Win Rate: %.1f%%\n", float64(res.Wins)/float64(res.Trades)*100)
	}
	fmt.Printf("  Total PnL: $%s\n", res.TotalPnL.StringFixed(2))
	fmt.Printf("  Final Equity: $%s\n", res.FinalEquity.StringFixed(2))
	fmt.Printf("  Max Drawdown: $%s\n", res.MaxDrawdown.StringFixed(2))

	printRollup(runner.Perf(), period)
	return nil
}

func reportPeriod(name string) (perf.Period, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "daily":
		return perf.Daily, nil
	case "monthly":
		return perf.Monthly, nil
	case "yearly":
		return perf.Yearly, nil
	default:
		return "", fmt.Errorf("unknown report period %q (supported: daily, monthly, yearly)", name)
	}
}

func printRollup(agg *perf.Aggregator, period perf.Period) {
	recs := agg.Rollup(period)
	if len(recs) == 0 {
		return
	}

	fmt.Printf("\n%-10s %7s %8s %12s %8s %8s %12s\n",
		"Period", "Trades", "Win%", "PnL", "Ret%", "Sharpe", "MaxLoss")
	for _, r := range recs {
		fmt.Printf("%-10s %7d %7.1f%% %12s %7.2f%% %8.2f %12s\n",
			r.Period, r.Trades, r.WinRate*100,
			r.TotalPnL.StringFixed(2), r.ReturnPct, r.Sharpe,
			r.MaxLoss.StringFixed(2))
	}
}

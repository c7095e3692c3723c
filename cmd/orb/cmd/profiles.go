package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/orb/config"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available risk profiles",
	Long: `Profiles prints the built-in risk tiers plus any profiles defined in
the config file. Each tier shares the same stop and target brackets and
differs in per-trade risk and account-level limits.`,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	table := config.BuiltinProfiles()
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		for name, p := range cfg.Profiles {
			if p.Name == "" {
				p.Name = name
			}
			table[name] = p
		}
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-14s %6s %7s %7s %9s %7s %5s %7s\n",
		"Profile", "Risk%", "Stop%", "Tgt%", "Notional%", "Trades", "Pos", "Loss%")
	for _, name := range names {
		p := table[name]
		fmt.Printf("%-14s %5.1f%% %6.1f%% %6.1f%% %8.0f%% %7d %5d %6.1f%%\n",
			p.Name,
			pct(p.PositionRiskPct), pct(p.StopLossPct), pct(p.TakeProfitPct),
			pct(p.MaxPositionNotionalPct),
			p.MaxDailyTrades, p.MaxSimultaneousPositions,
			pct(p.DailyLossLimitPct))
	}
	return nil
}

func pct(v float64) float64 { return v * 100 }

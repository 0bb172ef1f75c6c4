package cli

import (
	"github.com/spf13/cobra"

	"poe-trade-archive/internal/app"
)

var (
	statsLeague    string
	statsPreferred string
	statsRate      string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise income by day, week, category, base type and rarity",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.StatsOptions{
			League:            statsLeague,
			PreferredCurrency: statsPreferred,
			ExchangeRate:      statsRate,
		}
		return getApp().Stats(cmd.Context(), opts)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsLeague, "league", "", "League to summarise (defaults to the first feed league)")
	statsCmd.Flags().StringVar(&statsPreferred, "currency", "", "Preferred reporting currency (overrides stats.preferred_currency)")
	statsCmd.Flags().StringVar(&statsRate, "rate", "", "Exchange rate, quote units per base unit (overrides stats.exchange_rate)")
}

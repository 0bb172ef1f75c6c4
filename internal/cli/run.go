package cli

import (
	"github.com/spf13/cobra"

	"poe-trade-archive/internal/app"
)

var fetchLeagues []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the trade history on an interval and archive every batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and archive the latest history page once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Fetch(cmd.Context(), app.FetchOptions{Leagues: fetchLeagues})
	},
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchLeagues, "league", nil, "League(s) to fetch (defaults to feed.leagues)")
}

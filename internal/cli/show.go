package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"poe-trade-archive/internal/app"
)

var (
	showLeague  string
	showLimit   int
	showOnlyNew bool
	showFilter  string

	markSeenLeague string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display archived sales, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		opts := app.ShowOptions{
			League:  showLeague,
			Limit:   showLimit,
			OnlyNew: showOnlyNew,
			Filter:  showFilter,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

var markSeenCmd = &cobra.Command{
	Use:   "mark-seen [ITEM_ID...]",
	Short: "Mark item ids, or the whole league archive, as seen",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().MarkSeen(cmd.Context(), app.MarkSeenOptions{League: markSeenLeague, ItemIDs: args})
	},
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List stored archive slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Slots(cmd.Context())
	},
}

func init() {
	showCmd.Flags().StringVar(&showLeague, "league", "", "League to display (defaults to the first feed league)")
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "Number of sales to display (0 for all)")
	showCmd.Flags().BoolVar(&showOnlyNew, "only-new", false, "Only show sales not yet marked seen")
	showCmd.Flags().StringVar(&showFilter, "filter", "", "Case-insensitive text filter over name, mods, note and price")

	markSeenCmd.Flags().StringVar(&markSeenLeague, "league", "", "League whose archive is marked seen when no ids are given")
}

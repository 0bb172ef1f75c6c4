package cli

import (
	"github.com/spf13/cobra"

	"poe-trade-archive/internal/app"
)

var (
	importLeague string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Merge saved trade history responses into the archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ImportOptions{
			League: importLeague,
			Paths:  args,
			DryRun: importDryRun,
		}
		return getApp().Import(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importLeague, "league", "", "League partition to import into (defaults to the first feed league)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Decode and count entries without writing to storage")
}

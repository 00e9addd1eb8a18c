package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "possync",
	Short: "Point-of-sale order synchronization terminal",
	Long: `possync keeps a restaurant terminal's local order, menu and settings
snapshots consistent with the shared cloud store, merging offline edits
under a bounded freshness window.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

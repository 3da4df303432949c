// Package cli holds the storefront command tree: serve, seed and indexes.
package cli

import (
	"github.com/spf13/cobra"

	"storefront/internal/config"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront REST API",
	Long:  "Storefront serves the shop API (auth, addresses, catalog, cart, orders, payments) and its maintenance commands.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load(envFiles...)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env file(s) to load before reading the environment (default .env)")
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

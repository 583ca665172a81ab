// Package config provides the CLI commands for personaforge configuration:
// show, set, keys, and init.
package config

import (
	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/cli/shared"
)

// Register adds the config command tree to the root command.
func Register(rootCmd *cobra.Command) {
	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Inspect and change configuration",
		GroupID: shared.GroupConfiguration,
	}
	configCmd.AddCommand(newShowCmd(), newSetCmd(), newKeysCmd(), newInitCmd())
	rootCmd.AddCommand(configCmd)
}

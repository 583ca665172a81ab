package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/cli/shared"
)

var (
	// Version information - set via ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display version, commit, build date, and Go version information for personaforge",
		Args:  shared.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "personaforge version %s\n", Version)
			fmt.Fprintf(out, "Built from commit: %s\n", Commit)
			fmt.Fprintf(out, "Build date: %s\n", BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}
}

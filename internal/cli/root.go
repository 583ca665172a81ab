// Package cli provides the cobra commands of personaforge: the pipeline
// modes (assess, test, build, deploy), lookups over stored versions, run
// history, and configuration management.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/cli/config"
	"github.com/personaforge/personaforge/internal/cli/shared"
	apperrors "github.com/personaforge/personaforge/internal/errors"
)

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "personaforge",
		Short: "Deterministic AI persona builder",
		Long: `personaforge turns a persona definition into a versioned delivery bundle:
a system prompt, OpenAI and Claude provider configs, a behavioral test suite,
and a confidence score.

Results are printed as JSON on stdout. Progress and logs go to stderr.`,
		Example: `  # Score a persona without writing anything
  personaforge assess --name "Support Bot" --role "Customer Support Agent"

  # Publish the next version to disk
  personaforge build -f persona.yaml

  # Publish and record it in the database
  personaforge deploy -f persona.yaml

  # Inspect what is stored
  personaforge latest "Support Bot"
  personaforge versions "Support Bot"`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddGroup(&cobra.Group{ID: shared.GroupPipeline, Title: "Pipeline:"})
	root.AddGroup(&cobra.Group{ID: shared.GroupInspect, Title: "Inspect:"})
	root.AddGroup(&cobra.Group{ID: shared.GroupConfiguration, Title: "Configuration:"})
	root.SetHelpCommandGroupID(shared.GroupConfiguration)
	root.SetCompletionCommandGroupID(shared.GroupConfiguration)

	root.SetFlagErrorFunc(shared.FlagError)
	root.PersistentFlags().StringP(shared.ConfigFlag, "c", "", "Path to local config file (default .personaforge/config.json)")
	root.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{newAssessCmd(), newTestCmd(), newBuildCmd(), newDeployCmd()} {
		cmd.GroupID = shared.GroupPipeline
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{newLatestCmd(), newVersionsCmd(), newListCmd(), newDeployedCmd(), newHistoryCmd()} {
		cmd.GroupID = shared.GroupInspect
		root.AddCommand(cmd)
	}
	version := newVersionCmd()
	version.GroupID = shared.GroupConfiguration
	root.AddCommand(version)
	config.Register(root)

	return root
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are printed to stderr with remediation steps.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return shared.ExitSuccess
	}
	if !shared.IsReported(err) {
		apperrors.FprintError(stderr, apperrors.FromDomain(err))
	}
	return shared.ExitCode(err)
}

package shared

import (
	"github.com/spf13/cobra"

	apperrors "github.com/personaforge/personaforge/internal/errors"
)

// ExactArgs is cobra.ExactArgs reporting an argument error with usage.
func ExactArgs(n int) cobra.PositionalArgs {
	return asArgumentError(cobra.ExactArgs(n))
}

// NoArgs is cobra.NoArgs reporting an argument error with usage.
func NoArgs(cmd *cobra.Command, args []string) error {
	return asArgumentError(cobra.NoArgs)(cmd, args)
}

// FlagError converts flag parsing failures into argument errors.
func FlagError(cmd *cobra.Command, err error) error {
	return apperrors.NewArgumentErrorWithUsage(err.Error(), cmd.UseLine())
}

func asArgumentError(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return apperrors.NewArgumentErrorWithUsage(err.Error(), cmd.UseLine())
		}
		return nil
	}
}

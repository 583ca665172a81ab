package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/cli/shared"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

func newLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "latest <name>",
		Short:   "Show the newest stored version of a persona",
		Long:    "Show the newest version of a persona published to output_dir, with its artifacts.",
		Example: `  personaforge latest "Support Bot"`,
		Args:    shared.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, storeNone)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.orch.GetLatest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "versions <name>",
		Short:   "List every stored version of a persona, oldest first",
		Example: `  personaforge versions "Support Bot"`,
		Args:    shared.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, storeNone)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.orch.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if records == nil {
				records = []persona.Record{}
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every persona in output_dir",
		Args:  shared.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, storeNone)
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.orch.ListPersonas(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summaries)
		},
	}
}

func newDeployedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployed",
		Short: "List database records by status",
		Long: `List persona records stored in the database. Defaults to deployed records;
use --status failed to see deploys whose database write failed. --name narrows
the listing to one persona name.`,
		Example: `  personaforge deployed
  personaforge deployed --status failed
  personaforge deployed --name "Support Bot"`,
		Args: shared.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			if err := validateStatus(status); err != nil {
				return err
			}

			a, err := openApp(cmd, storeRequired)
			if err != nil {
				return err
			}
			defer a.Close()

			var records []persona.Record
			if name, _ := cmd.Flags().GetString("name"); name != "" {
				records, err = a.orch.Records(cmd.Context(), name, persona.Status(status))
			} else {
				records, err = a.orch.Deployed(cmd.Context(), persona.Status(status))
			}
			if err != nil {
				return err
			}
			if records == nil {
				records = []persona.Record{}
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().String("status", string(persona.StatusDeployed), "Record status to list (deployed, failed)")
	cmd.Flags().String("name", "", "Only list records with this persona name")
	return cmd
}

func validateStatus(s string) error {
	if !persona.Status(s).Valid() {
		return apperrors.NewArgumentError(
			fmt.Sprintf("unknown status %q", s),
			"Use one of: draft, built, deployed, failed",
		)
	}
	return nil
}

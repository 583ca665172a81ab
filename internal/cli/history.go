package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/cli/shared"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Long:  "Show recent assess, test, build, and deploy runs, newest first, from state_dir/history.yaml.",
		Example: `  personaforge history
  personaforge history -n 5 --status failed
  personaforge history --clear`,
		Args: shared.NoArgs,
		RunE: runHistory,
	}
	cmd.Flags().IntP("limit", "n", 20, "Show at most N entries (0 for all)")
	cmd.Flags().String("status", "", "Filter by status (running, completed, rejected, failed, cancelled)")
	cmd.Flags().String("persona", "", "Filter by persona slug")
	cmd.Flags().Bool("clear", false, "Clear all history")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	slug, _ := cmd.Flags().GetString("persona")
	clearAll, _ := cmd.Flags().GetBool("clear")

	if limit < 0 {
		return apperrors.NewArgumentError(fmt.Sprintf("limit must not be negative, got %d", limit))
	}

	cfg, err := shared.LoadConfig(cmd)
	if err != nil {
		return err
	}

	if clearAll {
		if err := history.Clear(cfg.StateDir); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "History cleared.")
		return nil
	}

	file, err := history.Load(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	entries := []history.Entry{}
	for _, e := range file.Recent(0) {
		if status != "" && e.Status != status {
			continue
		}
		if slug != "" && e.Slug != slug {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return writeJSON(cmd.OutOrStdout(), entries)
}

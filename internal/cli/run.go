package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/personaforge/personaforge/internal/bundle"
	"github.com/personaforge/personaforge/internal/cli/shared"
	"github.com/personaforge/personaforge/internal/history"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/pipeline"
	"github.com/personaforge/personaforge/internal/retry"
)

// retryBackoff is the delay before the first storage retry.
const retryBackoff = 200 * time.Millisecond

func newAssessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Validate and score a persona without writing anything",
		Long: `Validate a persona, generate its artifacts in memory, and report the
confidence score. Nothing is written to disk or to the database.

Exits 1 when the persona fails validation.`,
		Example: `  personaforge assess --name "Support Bot" --role "Customer Support Agent"
  personaforge assess -f persona.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, bundle.ModeAssess)
		},
	}
	addInputFlags(cmd)
	return cmd
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "test",
		Short:   "Generate the behavioral test suite for a persona",
		Example: `  personaforge test -f persona.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, bundle.ModeTest)
		},
	}
	addInputFlags(cmd)
	return cmd
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and publish the next version of a persona to disk",
		Long: `Run the full pipeline and publish the persona as a new version under
output_dir/<slug>/v<N>. Storage failures are retried up to max_retries times.`,
		Example: `  personaforge build -f persona.yaml
  cat persona.json | personaforge build -f -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, bundle.ModeBuild)
		},
	}
	addInputFlags(cmd)
	return cmd
}

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build a persona and record it as deployed in the database",
		Long: `Run the full pipeline, publish the new version to disk, and insert it with
its artifacts into the persona database in one transaction.

Requires database_path to be set.`,
		Example: `  personaforge deploy -f persona.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, bundle.ModeDeploy)
		},
	}
	addInputFlags(cmd)
	return cmd
}

// outcome is what one pipeline run reports to history and the exit code.
type outcome struct {
	result   any
	rejected bool
	slug     string
	version  int
	grade    string
}

func runPipeline(cmd *cobra.Command, mode bundle.Mode) error {
	raw, err := readInput(cmd)
	if err != nil {
		return err
	}

	need := storeNone
	switch mode {
	case bundle.ModeBuild:
		need = storeOptional
	case bundle.ModeDeploy:
		need = storeRequired
	}
	a, err := openApp(cmd, need)
	if err != nil {
		return err
	}
	defer a.Close()

	name := personaName(raw)
	historyID, herr := a.history.WriteStart(string(mode), name)
	if herr != nil {
		a.logger.Warn("history unavailable", zap.Error(herr))
	}

	start := time.Now()
	out, runErr := execute(cmd.Context(), a, mode, raw, name)
	a.logger.Debug("command finished", zap.String("mode", string(mode)), zap.Duration("elapsed", time.Since(start)))

	if historyID != "" {
		if err := a.history.UpdateComplete(historyID, historyOutcome(out, runErr)); err != nil {
			a.logger.Warn("history update failed", zap.Error(err))
		}
	}

	if out.result != nil {
		if err := writeJSON(cmd.OutOrStdout(), out.result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if out.rejected {
		return shared.NewExitError(shared.ExitRejected)
	}
	return nil
}

func execute(ctx context.Context, a *app, mode bundle.Mode, raw persona.Raw, name string) (outcome, error) {
	switch mode {
	case bundle.ModeAssess:
		res, err := a.orch.Assess(ctx, raw)
		if err != nil {
			return outcome{}, err
		}
		out := outcome{result: res, rejected: !res.Validation.Valid, grade: string(res.Confidence.Grade)}
		if res.Record != nil {
			out.slug = res.Record.Slug
		}
		return out, nil

	case bundle.ModeTest:
		res, err := a.orch.GenerateTests(ctx, raw)
		if err != nil {
			return outcome{}, err
		}
		return outcome{result: res, rejected: !res.Validation.Valid}, nil

	default:
		policy := retry.Policy{MaxRetries: a.cfg.MaxRetries, Backoff: retryBackoff, Logger: a.logger}
		res, err := retry.Do(ctx, policy, string(mode), name, func(ctx context.Context) (*pipeline.BuildResult, error) {
			if mode == bundle.ModeDeploy {
				return a.orch.Deploy(ctx, raw)
			}
			return a.orch.Build(ctx, raw)
		})
		if res == nil {
			return outcome{}, err
		}
		return outcome{
			result:   res,
			rejected: !res.Validation.Valid,
			slug:     res.Record.Slug,
			version:  res.Record.Version,
			grade:    res.Record.ConfidenceGrade,
		}, err
	}
}

func historyOutcome(out outcome, err error) history.Outcome {
	h := history.Outcome{
		Status:  history.StatusCompleted,
		Slug:    out.slug,
		Version: out.version,
		Grade:   out.grade,
		Err:     err,
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.Status = history.StatusCancelled
	case err != nil:
		h.Status = history.StatusFailed
	case out.rejected:
		h.Status = history.StatusRejected
	}
	h.ExitCode = shared.ExitCode(err)
	if err == nil && out.rejected {
		h.ExitCode = shared.ExitRejected
	}
	return h
}

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/personaforge/personaforge/internal/archive"
	"github.com/personaforge/personaforge/internal/cli/shared"
	"github.com/personaforge/personaforge/internal/config"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/generate"
	"github.com/personaforge/personaforge/internal/history"
	"github.com/personaforge/personaforge/internal/logging"
	"github.com/personaforge/personaforge/internal/pipeline"
	"github.com/personaforge/personaforge/internal/progress"
	"github.com/personaforge/personaforge/internal/store"
	"github.com/personaforge/personaforge/internal/versioning"
)

// storeNeed says whether a command opens the relational store.
type storeNeed int

const (
	storeNone     storeNeed = iota
	storeOptional           // opened when database_path is set
	storeRequired           // database_path must be set
)

// app is the wiring one command invocation runs against.
type app struct {
	cfg     *config.Configuration
	logger  *zap.Logger
	store   *store.Store
	orch    *pipeline.Orchestrator
	history *history.Writer
}

func openApp(cmd *cobra.Command, need storeNeed) (*app, error) {
	cfg, err := shared.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Configuration)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		history: history.NewWriter(cfg.StateDir, cfg.HistoryMaxEntries),
	}

	if need == storeRequired && cfg.DatabasePath == "" {
		return nil, apperrors.StoreNotConfigured(cmd.Name())
	}
	if need != storeNone && cfg.DatabasePath != "" {
		s, err := store.Open(cmd.Context(), cfg.DatabasePath, logger)
		if err != nil {
			return nil, apperrors.StoreUnavailable(cfg.DatabasePath, err)
		}
		a.store = s
	}

	arch := archive.New(filepath.Clean(cfg.OutputDir), logger)
	deps := pipeline.Deps{
		Generator: generate.New(generate.Models{OpenAI: cfg.OpenAIModel, Claude: cfg.ClaudeModel}),
		Engine:    versioning.New(arch, a.store, versioning.WithLogger(logger)),
		Archive:   arch,
		Store:     a.store,
		Logger:    logger,
	}
	if cfg.ShowProgress {
		display := progress.NewProgressDisplay(cmd.ErrOrStderr(), progress.DetectTerminalCapabilities())
		deps.Observer = progress.NewObserver(display)
	}
	a.orch = pipeline.New(deps)

	logger.Debug("configuration loaded",
		zap.String("output_dir", cfg.OutputDir),
		zap.String("database_path", cfg.DatabasePath),
		zap.Int("max_retries", cfg.MaxRetries),
	)
	return a, nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() error {
	var err error
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			err = fmt.Errorf("closing store: %w", cerr)
		}
	}
	_ = a.logger.Sync()
	return err
}

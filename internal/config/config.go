package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PERSONAFORGE_"
	// DirName is the directory holding config files, under $HOME or the project.
	DirName = ".personaforge"
	// FileName is the config file name inside DirName.
	FileName = "config.json"
)

// Configuration represents the personaforge CLI configuration
type Configuration struct {
	OutputDir         string `koanf:"output_dir" json:"output_dir" validate:"required"`
	DatabasePath      string `koanf:"database_path" json:"database_path"` // empty disables deploy
	StateDir          string `koanf:"state_dir" json:"state_dir" validate:"required"`
	OpenAIModel       string `koanf:"openai_model" json:"openai_model" validate:"required"`
	ClaudeModel       string `koanf:"claude_model" json:"claude_model" validate:"required"`
	MaxRetries        int    `koanf:"max_retries" json:"max_retries" validate:"min=0,max=10"`
	HistoryMaxEntries int    `koanf:"history_max_entries" json:"history_max_entries" validate:"min=0"`
	LogLevel          string `koanf:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat         string `koanf:"log_format" json:"log_format" validate:"oneof=json console"`
	ShowProgress      bool   `koanf:"show_progress" json:"show_progress"`
}

// GlobalConfigPath returns ~/.personaforge/config.json.
func GlobalConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, FileName), nil
}

// LocalConfigPath returns the project config path relative to the working directory.
func LocalConfigPath() string {
	return filepath.Join(DirName, FileName)
}

// Load loads configuration from global, local, and environment sources
// Priority: Environment variables > Local config > Global config > Defaults
func Load(localConfigPath string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	if globalPath, err := GlobalConfigPath(); err == nil {
		if err := loadFile(k, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if localConfigPath != "" {
		if err := loadFile(k, localConfigPath); err != nil {
			return nil, fmt.Errorf("loading local config: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := ValidateConfigValues(&cfg, localConfigPath); err != nil {
		return nil, err
	}

	cfg.OutputDir = expandHomePath(cfg.OutputDir)
	cfg.DatabasePath = expandHomePath(cfg.DatabasePath)
	cfg.StateDir = expandHomePath(cfg.StateDir)

	return &cfg, nil
}

// loadFile merges a JSON config file into k. A missing file is skipped.
func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := ValidateJSONSyntax(path); err != nil {
		return err
	}
	return k.Load(file.Provider(path), json.Parser())
}

// envTransform converts environment variable names to config keys
// Example: PERSONAFORGE_MAX_RETRIES -> max_retries
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

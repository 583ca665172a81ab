package shared

import (
	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/config"
	apperrors "github.com/personaforge/personaforge/internal/errors"
)

// ConfigFlag is the persistent flag naming the local config file.
const ConfigFlag = "config"

// ConfigPath returns the --config value, falling back to the default local path.
func ConfigPath(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil || path == "" {
		return config.LocalConfigPath()
	}
	return path
}

// LoadConfig loads the effective configuration for cmd.
func LoadConfig(cmd *cobra.Command) (*config.Configuration, error) {
	path := ConfigPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, apperrors.ConfigParseError(path, err)
	}
	return cfg, nil
}

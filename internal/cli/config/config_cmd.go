package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/personaforge/personaforge/internal/cli/shared"
	cfgpkg "github.com/personaforge/personaforge/internal/config"
	apperrors "github.com/personaforge/personaforge/internal/errors"
)

// showOutput is what `config show` prints.
type showOutput struct {
	Sources sources               `json:"sources"`
	Config  *cfgpkg.Configuration `json:"config"`
}

type sources struct {
	Global string   `json:"global"`
	Local  string   `json:"local"`
	Loaded []string `json:"loaded"`
	Env    []string `json:"env,omitempty"`
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Long: `Print the configuration after merging defaults, the global file, the local
file, and PERSONAFORGE_* environment variables, together with which sources were found.`,
		Args: shared.NoArgs,
		RunE: runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig(cmd)
	if err != nil {
		return err
	}

	src := sources{Local: shared.ConfigPath(cmd), Loaded: []string{"defaults"}}
	if global, err := cfgpkg.GlobalConfigPath(); err == nil {
		src.Global = global
		if fileExists(global) {
			src.Loaded = append(src.Loaded, global)
		}
	}
	if fileExists(src.Local) {
		src.Loaded = append(src.Loaded, src.Local)
	}
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, cfgpkg.EnvPrefix) {
			src.Env = append(src.Env, key)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(showOutput{Sources: src, Config: cfg})
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the local config file (default
.personaforge/config.json) or, with --global, in ~/.personaforge/config.json.

The value is validated against the key's type before the file is written.`,
		Example: `  personaforge config set max_retries 5
  personaforge config set log_format json --global
  personaforge config set database_path ""`,
		Args: shared.ExactArgs(2),
		RunE: runConfigSet,
	}
	cmd.Flags().Bool("global", false, "Write to the global config file")
	return cmd
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	path, scope, err := targetPath(cmd)
	if err != nil {
		return err
	}
	if err := cfgpkg.SetConfigValue(path, key, value); err != nil {
		return apperrors.WrapWithMessage(err, apperrors.Argument, "setting config value",
			"Run 'personaforge config keys' to see valid keys and types")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s config (%s)\n", key, value, scope, path)
	return nil
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List all configuration keys with types and descriptions",
		Args:  shared.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE\tDEFAULT\tDESCRIPTION")
			defaults := cfgpkg.GetDefaults()
			for _, key := range cfgpkg.SortedKeys() {
				schema := cfgpkg.KnownKeys[key]
				typ := schema.Type.String()
				if len(schema.AllowedValues) > 0 {
					typ = strings.Join(schema.AllowedValues, "|")
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", key, typ, defaults[key], schema.Description)
			}
			return w.Flush()
		},
	}
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with the defaults",
		Args:  shared.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			path, scope, err := targetPath(cmd)
			if err != nil {
				return err
			}
			if err := cfgpkg.WriteDefaults(path, force); err != nil {
				return apperrors.WrapWithMessage(err, apperrors.Configuration, "writing config",
					"Pass --force to overwrite the existing file")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s config (%s)\n", scope, path)
			return nil
		},
	}
	cmd.Flags().Bool("global", false, "Write the global config file")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

// targetPath resolves --global against the local --config path.
func targetPath(cmd *cobra.Command) (path, scope string, err error) {
	global, _ := cmd.Flags().GetBool("global")
	if !global {
		return shared.ConfigPath(cmd), "local", nil
	}
	path, err = cfgpkg.GlobalConfigPath()
	if err != nil {
		return "", "", apperrors.Wrap(err, apperrors.Configuration)
	}
	return path, "global", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

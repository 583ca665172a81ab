package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

// addInputFlags registers the persona input flags shared by pipeline commands.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Persona definition file (.json, .yaml, .yml, or - for stdin)")
	cmd.Flags().String("name", "", "Persona name (overrides the file)")
	cmd.Flags().String("role", "", "Persona role (overrides the file)")
	cmd.Flags().String("description", "", "Persona description (overrides the file)")
}

// readInput builds the raw persona from --file and the field flags.
func readInput(cmd *cobra.Command) (persona.Raw, error) {
	path, _ := cmd.Flags().GetString("file")

	raw := persona.Raw{}
	if path != "" {
		var err error
		raw, err = decodeInputFile(cmd.InOrStdin(), path)
		if err != nil {
			return nil, apperrors.InvalidInputFile(path, err)
		}
	}

	for _, field := range []string{"name", "role", "description"} {
		if cmd.Flags().Changed(field) {
			v, _ := cmd.Flags().GetString(field)
			raw[field] = v
		}
	}

	if path == "" && !cmd.Flags().Changed("name") {
		return nil, apperrors.MissingPersonaInput()
	}
	return raw, nil
}

func decodeInputFile(stdin io.Reader, path string) (persona.Raw, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	raw := persona.Raw{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
	default:
		// YAML also accepts JSON documents, which covers stdin.
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding YAML: %w", err)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("top level must be a mapping")
	}
	return raw, nil
}

// personaName returns the raw name for history entries, or "".
func personaName(raw persona.Raw) string {
	name, _ := raw["name"].(string)
	return strings.TrimSpace(name)
}

package config

import "encoding/json"

// GetDefaults returns the default configuration values
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"output_dir":          "./output",
		"database_path":       "./output/personas.db",
		"state_dir":           "~/.personaforge/state",
		"openai_model":        "gpt-4o",
		"claude_model":        "claude-sonnet-4-20250514",
		"max_retries":         2,
		"history_max_entries": 500,
		"log_level":           "info",
		"log_format":          "console",
		"show_progress":       true,
	}
}

// DefaultConfigJSON renders the defaults as an indented JSON config file.
func DefaultConfigJSON() ([]byte, error) {
	data, err := json.MarshalIndent(GetDefaults(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

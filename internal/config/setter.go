package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomically writes content to a file atomically using a temporary file and rename.
// Creates parent directories if they don't exist.
func writeAtomically(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmpFile, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		// Clean up temp file on error
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	tmpPath = "" // Prevent cleanup since rename succeeded
	return nil
}

// SetConfigValue sets a configuration value in a JSON config file.
// Validates the key and value against the schema before writing.
// Creates the file if it doesn't exist. Unknown keys already in the file are preserved.
func SetConfigValue(filePath, key, value string) error {
	parsed, err := ValidateValue(key, value)
	if err != nil {
		return fmt.Errorf("validating value: %w", err)
	}
	doc, err := loadOrCreateJSON(filePath)
	if err != nil {
		return err
	}
	doc[key] = parsed.Parsed
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if err := writeAtomically(filePath, append(content, '\n')); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// WriteDefaults writes the default config to filePath unless it already exists.
func WriteDefaults(filePath string, force bool) error {
	if !force {
		if _, err := os.Stat(filePath); err == nil {
			return fmt.Errorf("config file already exists: %s", filePath)
		}
	}
	content, err := DefaultConfigJSON()
	if err != nil {
		return fmt.Errorf("rendering defaults: %w", err)
	}
	return writeAtomically(filePath, content)
}

// loadOrCreateJSON loads a JSON object file or returns an empty one.
func loadOrCreateJSON(filePath string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	doc := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := ValidateJSONSyntaxFromBytes(data, filePath); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return doc, nil
}

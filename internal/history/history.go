// Package history records pipeline runs so past assess, test, build, and
// deploy invocations can be listed from the CLI.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// HistoryFileName is the name of the history file.
	HistoryFileName = "history.yaml"
	// BackupSuffix is the suffix for backup files when corruption is detected.
	BackupSuffix = ".backup"
)

// Status constants for history entries.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	// StatusRejected marks a build or deploy refused because the spec failed validation.
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry is a single pipeline run.
type Entry struct {
	ID          string     `json:"id" yaml:"id"`
	Mode        string     `json:"mode" yaml:"mode"`
	Persona     string     `json:"persona,omitempty" yaml:"persona,omitempty"`
	Slug        string     `json:"slug,omitempty" yaml:"slug,omitempty"`
	Version     int        `json:"version,omitempty" yaml:"version,omitempty"`
	Grade       string     `json:"grade,omitempty" yaml:"grade,omitempty"`
	Status      string     `json:"status" yaml:"status"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	ExitCode    int        `json:"exit_code" yaml:"exit_code"`
	// Duration uses Go duration format (e.g., "1.5s").
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// File is the YAML document holding all entries, oldest first.
type File struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// DefaultStateDir returns ~/.personaforge/state.
func DefaultStateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".personaforge", "state"), nil
}

// Load loads the history file from the given state directory.
// Returns empty history if file doesn't exist.
// Handles corrupted files by backing them up and creating a fresh history.
func Load(stateDir string) (*File, error) {
	historyPath := filepath.Join(stateDir, HistoryFileName)

	data, err := os.ReadFile(historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Entries: []Entry{}}, nil
		}
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var history File
	if err := yaml.Unmarshal(data, &history); err != nil {
		if backupErr := backupCorruptedFile(historyPath); backupErr != nil {
			return nil, fmt.Errorf("backing up corrupted history file: %w", backupErr)
		}
		return &File{Entries: []Entry{}}, nil
	}

	if history.Entries == nil {
		history.Entries = []Entry{}
	}

	return &history, nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (f *File) Recent(limit int) []Entry {
	n := len(f.Entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(f.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.Entries[i])
	}
	return out
}

// backupCorruptedFile renames a corrupted file with a .backup suffix.
func backupCorruptedFile(path string) error {
	backupPath := path + BackupSuffix
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("renaming corrupted file to backup: %w", err)
	}
	return nil
}

// Save writes the history file to the given state directory using atomic writes.
// Creates parent directories if needed.
func Save(stateDir string, history *File) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	historyPath := filepath.Join(stateDir, HistoryFileName)
	tmp, err := os.CreateTemp(stateDir, HistoryFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp history file: %w", err)
	}

	if err := os.Rename(tmpPath, historyPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp history file: %w", err)
	}

	return nil
}

// Clear removes all entries from the history file.
func Clear(stateDir string) error {
	return Save(stateDir, &File{Entries: []Entry{}})
}

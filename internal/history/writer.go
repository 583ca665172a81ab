package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the final state of a run, filled in by UpdateComplete.
type Outcome struct {
	Status   string
	Slug     string
	Version  int
	Grade    string
	ExitCode int
	Err      error
}

// Writer appends and updates entries with pruning. Calls on one Writer are
// serialized; separate processes may still race on the file.
type Writer struct {
	StateDir   string
	MaxEntries int

	mu  sync.Mutex
	now func() time.Time
}

// NewWriter creates a new history writer. maxEntries <= 0 disables pruning.
func NewWriter(stateDir string, maxEntries int) *Writer {
	return &Writer{
		StateDir:   stateDir,
		MaxEntries: maxEntries,
		now:        time.Now,
	}
}

// WriteStart records a running entry and returns its id.
func (w *Writer) WriteStart(mode, persona string) (string, error) {
	id := uuid.NewString()
	entry := Entry{
		ID:        id,
		Mode:      mode,
		Persona:   persona,
		Status:    StatusRunning,
		StartedAt: w.now().UTC(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	history, err := Load(w.StateDir)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}
	history.Entries = append(history.Entries, entry)
	w.prune(history)
	if err := Save(w.StateDir, history); err != nil {
		return "", fmt.Errorf("writing start entry: %w", err)
	}
	return id, nil
}

// UpdateComplete finalizes the entry with the given id.
// Returns an error if the entry was pruned or never written.
func (w *Writer) UpdateComplete(id string, out Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	history, err := Load(w.StateDir)
	if err != nil {
		return fmt.Errorf("loading history for update: %w", err)
	}

	idx := -1
	for i := range history.Entries {
		if history.Entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("entry not found with ID: %s", id)
	}

	now := w.now().UTC()
	e := &history.Entries[idx]
	e.Status = out.Status
	e.Slug = out.Slug
	e.Version = out.Version
	e.Grade = out.Grade
	e.ExitCode = out.ExitCode
	e.CompletedAt = &now
	e.Duration = now.Sub(e.StartedAt).String()
	if out.Err != nil {
		e.Error = out.Err.Error()
	}

	if err := Save(w.StateDir, history); err != nil {
		return fmt.Errorf("saving updated history: %w", err)
	}
	return nil
}

func (w *Writer) prune(history *File) {
	if w.MaxEntries > 0 && len(history.Entries) > w.MaxEntries {
		excess := len(history.Entries) - w.MaxEntries
		history.Entries = history.Entries[excess:]
	}
}

package pipeline

import (
	"context"

	"github.com/personaforge/personaforge/internal/archive"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

// Snapshot is a stored version with its artifacts.
type Snapshot struct {
	Record    persona.Record      `json:"record"`
	SpecHash  string              `json:"spec_hash"`
	Artifacts persona.ArtifactSet `json:"artifacts"`
	Dir       string              `json:"dir"`
}

// GetLatest returns the highest version stored on disk for name. It never
// consults the relational store.
func (o *Orchestrator) GetLatest(ctx context.Context, name string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := o.archive.Latest(persona.Slugify(name))
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Record:    snap.Manifest.Record,
		SpecHash:  snap.Manifest.SpecHash,
		Artifacts: snap.Artifacts,
		Dir:       snap.Dir,
	}, nil
}

// ListVersions returns every version of name on disk in ascending order.
func (o *Orchestrator) ListVersions(ctx context.Context, name string) ([]persona.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.archive.Versions(persona.Slugify(name))
}

// ListPersonas summarizes every persona on disk.
func (o *Orchestrator) ListPersonas(ctx context.Context) ([]archive.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.archive.Slugs()
}

// Deployed lists relational records with status, deployed by default.
func (o *Orchestrator) Deployed(ctx context.Context, status persona.Status) ([]persona.Record, error) {
	if o.store == nil {
		return nil, &apperrors.PreconditionError{Op: "Deployed", Reason: "no relational store configured"}
	}
	if status == "" {
		status = persona.StatusDeployed
	}
	return o.store.ByStatus(ctx, status)
}

// Records lists relational records stored under name, the exact name as
// normalized rather than its slug. A non-empty status filters the rows.
func (o *Orchestrator) Records(ctx context.Context, name string, status persona.Status) ([]persona.Record, error) {
	if o.store == nil {
		return nil, &apperrors.PreconditionError{Op: "Records", Reason: "no relational store configured"}
	}
	all, err := o.store.ByName(ctx, persona.CleanName(name))
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	var out []persona.Record
	for _, r := range all {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

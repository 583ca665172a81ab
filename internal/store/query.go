package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

const personaColumns = `id, name, slug, version, role, description, status,
	confidence_score, confidence_grade, spec_valid, created_at, deployed_at, failure_reason`

// BySlug returns every stored version of slug in ascending version order.
func (s *Store) BySlug(ctx context.Context, slug string) ([]persona.Record, error) {
	return s.list(ctx, `SELECT `+personaColumns+` FROM personas WHERE slug = ? ORDER BY version`, slug)
}

// ByName returns every stored version with the exact name, ordered by slug then version.
func (s *Store) ByName(ctx context.Context, name string) ([]persona.Record, error) {
	return s.list(ctx, `SELECT `+personaColumns+` FROM personas WHERE name = ? ORDER BY slug, version`, name)
}

// ByStatus returns every record with status, ordered by slug then version.
func (s *Store) ByStatus(ctx context.Context, status persona.Status) ([]persona.Record, error) {
	return s.list(ctx, `SELECT `+personaColumns+` FROM personas WHERE status = ? ORDER BY slug, version`, string(status))
}

// Latest returns the highest stored version of slug.
func (s *Store) Latest(ctx context.Context, slug string) (persona.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE slug = ? ORDER BY version DESC LIMIT 1`, slug)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persona.Record{}, &apperrors.NotFoundError{Slug: slug}
	}
	return r, err
}

// Artifacts returns the artifacts stored for a persona row.
func (s *Store) Artifacts(ctx context.Context, personaID string) (persona.ArtifactSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artifact_type, content_json, content_text, created_at
		FROM persona_artifacts WHERE persona_id = ?`, personaID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	set := persona.ArtifactSet{}
	for rows.Next() {
		var (
			a           persona.Artifact
			typ         string
			contentJSON sql.NullString
			contentText sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&a.ID, &typ, &contentJSON, &contentText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		a.Type = persona.ArtifactType(typ)
		if contentJSON.Valid {
			a.JSON = json.RawMessage(contentJSON.String)
		}
		a.Text = contentText.String
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		set[a.Type] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}
	return set, nil
}

// CountArtifacts returns the number of artifact rows for a persona row.
func (s *Store) CountArtifacts(ctx context.Context, personaID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM persona_artifacts WHERE persona_id = ?`, personaID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}

// Delete removes a persona row; its artifacts go with it.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return s.writeError("", 0, fmt.Errorf("deleting persona: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &apperrors.NotFoundError{Slug: id}
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]persona.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying personas: %w", err)
	}
	defer rows.Close()

	out := []persona.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating personas: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (persona.Record, error) {
	var (
		r             persona.Record
		status        string
		createdAt     string
		deployedAt    sql.NullString
		failureReason sql.NullString
	)
	err := sc.Scan(
		&r.ID, &r.Name, &r.Slug, &r.Version, &r.Role, &r.Description, &status,
		&r.ConfidenceScore, &r.ConfidenceGrade, &r.SpecValid,
		&createdAt, &deployedAt, &failureReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning persona: %w", err)
	}

	if r.Status, err = persona.ParseStatus(status); err != nil {
		return r, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if deployedAt.Valid {
		t, err := parseTime(deployedAt.String)
		if err != nil {
			return r, err
		}
		r.DeployedAt = &t
	}
	r.FailureReason = failureReason.String
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// Package store persists persona records and their artifacts in SQLite.
//
// Transactions begin with BEGIN IMMEDIATE, so a writer takes the database
// write lock before it reads the current max version. Combined with the
// unique (slug, version) constraint this makes version assignment safe
// across processes sharing one database file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

const (
	driverName    = "sqlite"
	timeLayout    = time.RFC3339Nano
	busyTimeoutMS = 5000
)

// Store is a SQLite-backed record store. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// DSN builds the modernc connection string for path.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(driverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger.Named("store")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a write transaction holding the database write lock.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// WithTx runs fn in a transaction, committing if fn returns nil and rolling
// back otherwise. Failures to begin or commit are StorageWriteErrors.
//
// A COMMIT refused by a deferred constraint leaves SQLite's transaction
// open, so the transaction runs on a dedicated connection that is rolled
// back explicitly before it returns to the pool.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return s.writeError("", 0, fmt.Errorf("acquiring connection: %w", err))
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return s.writeError("", 0, fmt.Errorf("beginning transaction: %w", err))
	}

	if err := fn(&Tx{tx: tx, store: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		// Fails harmlessly when the driver already ended the transaction.
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return s.writeError("", 0, fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// MaxVersion returns the highest stored version of slug, or 0.
func (t *Tx) MaxVersion(ctx context.Context, slug string) (int, error) {
	return maxVersion(ctx, t.tx, slug)
}

// InsertRecord writes the persona row and every artifact row. The record
// must carry its final version; missing ids are generated.
func (t *Tx) InsertRecord(ctx context.Context, rec *persona.Record, artifacts []persona.Artifact) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := insertPersona(ctx, t.tx, rec); err != nil {
		return t.store.writeError(rec.Slug, rec.Version, err)
	}

	for i := range artifacts {
		a := &artifacts[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = rec.CreatedAt
		}
		if err := insertArtifact(ctx, t.tx, rec.ID, a); err != nil {
			return t.store.writeError(rec.Slug, rec.Version, err)
		}
	}
	return nil
}

// InsertRecord writes a lone persona row in its own transaction. It is used
// for failed records, which carry no artifacts.
func (s *Store) InsertRecord(ctx context.Context, rec *persona.Record) error {
	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.InsertRecord(ctx, rec, nil)
	})
	return apperrors.AttributeWrite(err, rec.Slug, rec.Version)
}

func maxVersion(ctx context.Context, q *sql.Tx, slug string) (int, error) {
	var v int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM personas WHERE slug = ?`, slug).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("reading max version: %w", err)
	}
	return v, nil
}

func insertPersona(ctx context.Context, tx *sql.Tx, r *persona.Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO personas (
			id, name, slug, version, role, description, status,
			confidence_score, confidence_grade, spec_valid,
			created_at, deployed_at, failure_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Slug, r.Version, r.Role, r.Description, string(r.Status),
		r.ConfidenceScore, r.ConfidenceGrade, r.SpecValid,
		formatTime(r.CreatedAt), nullTime(r.DeployedAt), nullString(r.FailureReason),
	)
	if err != nil {
		return fmt.Errorf("inserting persona: %w", err)
	}
	return nil
}

func insertArtifact(ctx context.Context, tx *sql.Tx, personaID string, a *persona.Artifact) error {
	var contentJSON, contentText sql.NullString
	if a.Type.Structured() {
		contentJSON = sql.NullString{String: string(a.JSON), Valid: true}
	} else {
		contentText = sql.NullString{String: a.Text, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO persona_artifacts (id, persona_id, artifact_type, content_json, content_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, personaID, string(a.Type), contentJSON, contentText, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting %s artifact: %w", a.Type, err)
	}
	return nil
}

func (s *Store) writeError(slug string, version int, err error) error {
	return &apperrors.StorageWriteError{Backend: apperrors.BackendRelational, Slug: slug, Version: version, Err: err}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

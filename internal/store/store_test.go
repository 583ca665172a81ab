package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

var created = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "personas.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(slug string, version int, status persona.Status) *persona.Record {
	return &persona.Record{
		Name:            "Support Bot",
		Slug:            slug,
		Version:         version,
		Role:            "Helpdesk",
		Description:     "Answers tickets.",
		Status:          status,
		ConfidenceScore: 0.8295,
		ConfidenceGrade: "B",
		SpecValid:       true,
		CreatedAt:       created,
	}
}

func artifacts() []persona.Artifact {
	return []persona.Artifact{
		{Type: persona.ArtifactSystemPrompt, Text: "You are Support Bot."},
		{Type: persona.ArtifactOpenAIConfig, JSON: json.RawMessage(`{"model":"gpt-4o"}`)},
		{Type: persona.ArtifactClaudeConfig, JSON: json.RawMessage(`{"model":"claude"}`)},
		{Type: persona.ArtifactTestSuite, JSON: json.RawMessage(`{"total_scenarios":6}`)},
	}
}

// failArtifactInserts installs a trigger that aborts inserts of typ.
func failArtifactInserts(t *testing.T, db *sql.DB, typ persona.ArtifactType) {
	t.Helper()
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TRIGGER fail_%[1]s BEFORE INSERT ON persona_artifacts
		WHEN NEW.artifact_type = '%[1]s'
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`, typ))
	require.NoError(t, err)
}

func insert(t *testing.T, s *Store, rec *persona.Record) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertRecord(context.Background(), rec, artifacts())
	}))
}

func storedMax(t *testing.T, s *Store, slug string) int {
	t.Helper()
	var v int
	require.NoError(t, s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		v, err = tx.MaxVersion(context.Background(), slug)
		return err
	}))
	return v
}

func TestDSN(t *testing.T) {
	t.Parallel()

	dsn := DSN("/tmp/x.db")
	assert.True(t, strings.HasPrefix(dsn, "file:/tmp/x.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys%281%29")
}

func TestInsertAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)
	deployed := created.Add(time.Minute)
	rec := record("support-bot", 1, persona.StatusDeployed)
	rec.DeployedAt = &deployed
	insert(t, s, rec)
	require.NotEmpty(t, rec.ID)

	got, err := s.Latest(ctx, "support-bot")
	require.NoError(t, err)
	assert.Equal(t, *rec, got)

	set, err := s.Artifacts(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, set.Complete())
	assert.Equal(t, "You are Support Bot.", set[persona.ArtifactSystemPrompt].Text)
	assert.JSONEq(t, `{"model":"gpt-4o"}`, string(set[persona.ArtifactOpenAIConfig].JSON))
	assert.Equal(t, created, set[persona.ArtifactTestSuite].CreatedAt)
	assert.NotEmpty(t, set[persona.ArtifactTestSuite].ID)
}

func TestMaxVersion(t *testing.T) {
	t.Parallel()

	s := openTest(t)

	assert.Zero(t, storedMax(t, s, "support-bot"))

	insert(t, s, record("support-bot", 1, persona.StatusDeployed))
	insert(t, s, record("support-bot", 2, persona.StatusDeployed))
	insert(t, s, record("other", 7, persona.StatusDeployed))

	assert.Equal(t, 2, storedMax(t, s, "support-bot"))
}

func TestUniqueSlugVersion(t *testing.T) {
	t.Parallel()

	s := openTest(t)
	insert(t, s, record("support-bot", 1, persona.StatusDeployed))

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		return tx.InsertRecord(context.Background(), record("support-bot", 1, persona.StatusDeployed), artifacts())
	})
	assert.ErrorIs(t, err, apperrors.ErrStorageWrite)
}

func TestAtomicity_ArtifactFailureRollsBackVersion(t *testing.T) {
	t.Parallel()

	tests := map[string]persona.ArtifactType{
		"first artifact fails": persona.ArtifactSystemPrompt,
		"last artifact fails":  persona.ArtifactTestSuite,
	}

	for name, failing := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := openTest(t)
			failArtifactInserts(t, s.db, failing)

			rec := record("support-bot", 1, persona.StatusDeployed)
			err := s.WithTx(ctx, func(tx *Tx) error {
				return tx.InsertRecord(ctx, rec, artifacts())
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "injected failure")
			var swe *apperrors.StorageWriteError
			require.ErrorAs(t, err, &swe)
			assert.Equal(t, apperrors.BackendRelational, swe.Backend)

			rows, err := s.BySlug(ctx, "support-bot")
			require.NoError(t, err)
			assert.Empty(t, rows, "no persona row survives")

			n, err := s.CountArtifacts(ctx, rec.ID)
			require.NoError(t, err)
			assert.Zero(t, n, "no orphaned artifacts")
		})
	}
}

func TestInsertRecord_Standalone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)
	rec := record("support-bot", 1, persona.StatusFailed)
	rec.FailureReason = "relational write failed"
	require.NoError(t, s.InsertRecord(ctx, rec))

	failed, err := s.ByStatus(ctx, persona.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "relational write failed", failed[0].FailureReason)
	assert.Nil(t, failed[0].DeployedAt)

	n, err := s.CountArtifacts(ctx, rec.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)
	insert(t, s, record("support-bot", 2, persona.StatusDeployed))
	insert(t, s, record("support-bot", 1, persona.StatusDeployed))
	failed := record("support-bot", 3, persona.StatusFailed)
	failed.FailureReason = "boom"
	require.NoError(t, s.InsertRecord(ctx, failed))

	all, err := s.BySlug(ctx, "support-bot")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{all[0].Version, all[1].Version, all[2].Version})

	named, err := s.ByName(ctx, "Support Bot")
	require.NoError(t, err)
	assert.Len(t, named, 3)

	deployed, err := s.ByStatus(ctx, persona.StatusDeployed)
	require.NoError(t, err)
	assert.Len(t, deployed, 2)

	_, err = s.Latest(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDelete_CascadesArtifacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)
	rec := record("support-bot", 1, persona.StatusDeployed)
	insert(t, s, rec)

	require.NoError(t, s.Delete(ctx, rec.ID))
	n, err := s.CountArtifacts(ctx, rec.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.Delete(ctx, rec.ID), apperrors.ErrNotFound)
}

func TestWithTx_ConcurrentWritersGetDistinctVersions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTest(t)

	const writers = 8
	var g errgroup.Group
	for range writers {
		g.Go(func() error {
			return s.WithTx(ctx, func(tx *Tx) error {
				v, err := tx.MaxVersion(ctx, "support-bot")
				if err != nil {
					return err
				}
				return tx.InsertRecord(ctx, record("support-bot", v+1, persona.StatusDeployed), artifacts())
			})
		})
	}
	require.NoError(t, g.Wait())

	rows, err := s.BySlug(ctx, "support-bot")
	require.NoError(t, err)
	require.Len(t, rows, writers)
	for i, r := range rows {
		assert.Equal(t, i+1, r.Version, fmt.Sprintf("row %d", i))
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "personas.db")
	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	insert(t, s, record("support-bot", 1, persona.StatusDeployed))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	assert.Equal(t, 1, storedMax(t, s, "support-bot"))
}

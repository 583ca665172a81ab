package versioning

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/personaforge/personaforge/internal/archive"
	"github.com/personaforge/personaforge/internal/bundle"
	"github.com/personaforge/personaforge/internal/confidence"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/generate"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/store"
	"github.com/personaforge/personaforge/internal/validation"
)

var now = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fixture struct {
	engine  *Engine
	archive *archive.Archive
	store   *store.Store
	dbPath  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(root, "personas.db")
	s, err := store.Open(context.Background(), dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	a := archive.New(root, nil)
	return &fixture{
		engine:  New(a, s, WithClock(clock)),
		archive: a,
		store:   s,
		dbPath:  dbPath,
	}
}

func newBundle(t *testing.T, name string, mode bundle.Mode) *bundle.Bundle {
	t.Helper()
	spec, err := persona.Normalize(persona.Raw{"name": name, "role": "Helpdesk"})
	require.NoError(t, err)
	c := validation.Check(spec)
	set, err := generate.New(generate.Models{OpenAI: "gpt-4o", Claude: "claude"}).All(c)
	require.NoError(t, err)
	b, err := bundle.NewPackager(clock).Package(mode, c, set, confidence.Score(c, set))
	require.NoError(t, err)
	return b
}

func TestBuild_AssignsSequentialVersions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := newBundle(t, "Support Bot", bundle.ModeBuild)

	for want := 1; want <= 3; want++ {
		out, err := f.engine.Build(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, want, out.Record.Version)
		assert.Equal(t, persona.StatusBuilt, out.Record.Status)
		assert.NotEmpty(t, out.Record.ID)
		for _, a := range out.Artifacts {
			assert.NotEmpty(t, a.ID)
		}
		assert.DirExists(t, f.archive.Dir("support-bot", want))
	}

	assert.Zero(t, in.Record.Version, "input bundle untouched")
	assert.Equal(t, persona.StatusDraft, in.Record.Status)

	rows, err := f.store.BySlug(context.Background(), "support-bot")
	require.NoError(t, err)
	assert.Empty(t, rows, "build never writes relational rows")
}

func TestBuild_WithoutStore(t *testing.T) {
	t.Parallel()

	a := archive.New(t.TempDir(), nil)
	e := New(a, nil)

	out, err := e.Build(context.Background(), newBundle(t, "Support Bot", bundle.ModeBuild))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Record.Version)

	_, err = e.Deploy(context.Background(), newBundle(t, "Support Bot", bundle.ModeDeploy))
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}

func TestModeMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.engine.Build(context.Background(), newBundle(t, "A", bundle.ModeDeploy))
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
	_, err = f.engine.Deploy(context.Background(), newBundle(t, "A", bundle.ModeBuild))
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}

func TestDeploy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	out, err := f.engine.Deploy(ctx, newBundle(t, "Support Bot", bundle.ModeDeploy))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Record.Version)
	assert.Equal(t, persona.StatusDeployed, out.Record.Status)
	require.NotNil(t, out.Record.DeployedAt)
	assert.Equal(t, now, *out.Record.DeployedAt)

	row, err := f.store.Latest(ctx, "support-bot")
	require.NoError(t, err)
	assert.Equal(t, out.Record, row)

	arts, err := f.store.Artifacts(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, arts.Complete())
	for typ, a := range out.Artifacts {
		assert.Equal(t, a.ID, arts[typ].ID)
	}

	snap, err := f.archive.Latest("support-bot")
	require.NoError(t, err)
	assert.Equal(t, persona.StatusDeployed, snap.Manifest.Record.Status)
	assert.Equal(t, out.Record.ID, snap.Manifest.Record.ID)
}

func TestBuildAndDeploy_ShareOneCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	b1, err := f.engine.Build(ctx, newBundle(t, "Support Bot", bundle.ModeBuild))
	require.NoError(t, err)
	d2, err := f.engine.Deploy(ctx, newBundle(t, "Support Bot", bundle.ModeDeploy))
	require.NoError(t, err)
	b3, err := f.engine.Build(ctx, newBundle(t, "Support Bot", bundle.ModeBuild))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, []int{b1.Record.Version, d2.Record.Version, b3.Record.Version})
}

func TestConcurrentCallers_GapFreeVersions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		modes []bundle.Mode
	}{
		"builds only":  {modes: []bundle.Mode{bundle.ModeBuild}},
		"deploys only": {modes: []bundle.Mode{bundle.ModeDeploy}},
		"mixed":        {modes: []bundle.Mode{bundle.ModeBuild, bundle.ModeDeploy}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			const callers = 12
			f := newFixture(t)
			bundles := map[bundle.Mode]*bundle.Bundle{}
			for _, m := range tt.modes {
				bundles[m] = newBundle(t, "Support Bot", m)
			}

			var (
				mu       sync.Mutex
				versions []int
			)
			g, ctx := errgroup.WithContext(context.Background())
			for i := range callers {
				mode := tt.modes[i%len(tt.modes)]
				g.Go(func() error {
					var (
						out *bundle.Bundle
						err error
					)
					if mode == bundle.ModeBuild {
						out, err = f.engine.Build(ctx, bundles[mode])
					} else {
						out, err = f.engine.Deploy(ctx, bundles[mode])
					}
					if err != nil {
						return err
					}
					mu.Lock()
					versions = append(versions, out.Record.Version)
					mu.Unlock()
					return nil
				})
			}
			require.NoError(t, g.Wait())

			slices.Sort(versions)
			want := make([]int, callers)
			for i := range want {
				want[i] = i + 1
			}
			assert.Equal(t, want, versions)

			disk, err := f.archive.Versions("support-bot")
			require.NoError(t, err)
			assert.Len(t, disk, callers)
		})
	}
}

func TestConcurrentCallers_DifferentSlugsIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	names := []string{"Alpha", "Beta", "Gamma", "Delta"}

	var g errgroup.Group
	for _, name := range names {
		b := newBundle(t, name, bundle.ModeDeploy)
		for range 3 {
			g.Go(func() error {
				_, err := f.engine.Deploy(ctx, b)
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	for _, name := range names {
		rows, err := f.store.BySlug(ctx, persona.Slugify(name))
		require.NoError(t, err)
		require.Len(t, rows, 3, name)
		assert.Equal(t, 3, rows[2].Version)
	}
}

func TestDeploy_RelationalFailureMarksFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	raw, err := sql.Open("sqlite", store.DSN(f.dbPath))
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`
		CREATE TRIGGER fail_test_suite BEFORE INSERT ON persona_artifacts
		WHEN NEW.artifact_type = 'test_suite'
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	require.NoError(t, err)

	out, err := f.engine.Deploy(ctx, newBundle(t, "Support Bot", bundle.ModeDeploy))
	require.ErrorIs(t, err, apperrors.ErrStorageWrite)
	assert.True(t, apperrors.IsRetryable(err))
	var swe *apperrors.StorageWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, apperrors.BackendRelational, swe.Backend)

	require.NotNil(t, out)
	assert.Equal(t, persona.StatusFailed, out.Record.Status)
	assert.Nil(t, out.Record.DeployedAt)
	assert.Contains(t, out.Record.FailureReason, "injected failure")

	// No deployed row is ever visible; the failed row has no artifacts.
	deployed, err := f.store.ByStatus(ctx, persona.StatusDeployed)
	require.NoError(t, err)
	assert.Empty(t, deployed)
	failed, err := f.store.ByStatus(ctx, persona.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Version)
	n, err := f.store.CountArtifacts(ctx, failed[0].ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	snap, err := f.archive.Load("support-bot", 1)
	require.NoError(t, err)
	assert.Equal(t, persona.StatusFailed, snap.Manifest.Record.Status)

	// A caller-side retry gets the next version.
	_, err = raw.Exec(`DROP TRIGGER fail_test_suite`)
	require.NoError(t, err)
	retry, err := f.engine.Deploy(ctx, newBundle(t, "Support Bot", bundle.ModeDeploy))
	require.NoError(t, err)
	assert.Equal(t, 2, retry.Record.Version)
	assert.Equal(t, persona.StatusDeployed, retry.Record.Status)
}

func TestDeploy_CommitFailureMarksFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	// Every deployed row drags in a dangling deferred reference, so the
	// inserts succeed and COMMIT is what fails.
	raw, err := sql.Open("sqlite", store.DSN(f.dbPath))
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`
		CREATE TABLE deploy_audit (
			persona_id TEXT REFERENCES personas(id) DEFERRABLE INITIALLY DEFERRED
		)`)
	require.NoError(t, err)
	_, err = raw.Exec(`
		CREATE TRIGGER dangling_audit AFTER INSERT ON personas
		WHEN NEW.status = 'deployed'
		BEGIN INSERT INTO deploy_audit (persona_id) VALUES ('missing'); END`)
	require.NoError(t, err)

	out, err := f.engine.Deploy(ctx, newBundle(t, "Support Bot", bundle.ModeDeploy))
	require.ErrorIs(t, err, apperrors.ErrStorageWrite)
	var swe *apperrors.StorageWriteError
	require.ErrorAs(t, err, &swe)
	assert.Equal(t, apperrors.BackendRelational, swe.Backend)
	assert.Equal(t, "support-bot", swe.Slug)
	assert.Equal(t, 1, swe.Version)
	assert.Contains(t, err.Error(), "committing transaction")

	require.NotNil(t, out)
	assert.Equal(t, persona.StatusFailed, out.Record.Status)
	assert.Nil(t, out.Record.DeployedAt)
	assert.Contains(t, out.Record.FailureReason, "relational write failed for support-bot v1")

	deployed, err := f.store.ByStatus(ctx, persona.StatusDeployed)
	require.NoError(t, err)
	assert.Empty(t, deployed)
	failed, err := f.store.ByStatus(ctx, persona.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Version)
	assert.Nil(t, failed[0].DeployedAt)

	snap, err := f.archive.Load("support-bot", 1)
	require.NoError(t, err)
	assert.Equal(t, persona.StatusFailed, snap.Manifest.Record.Status)
	assert.Nil(t, snap.Manifest.Record.DeployedAt)

	// The refused commit must not leave a transaction open on a pooled
	// connection: the next deploy goes through.
	_, err = raw.Exec(`DROP TRIGGER dangling_audit`)
	require.NoError(t, err)
	retry, err := f.engine.Deploy(ctx, newBundle(t, "Support Bot", bundle.ModeDeploy))
	require.NoError(t, err)
	assert.Equal(t, 2, retry.Record.Version)
	assert.Equal(t, persona.StatusDeployed, retry.Record.Status)
}

func TestMarkFailed_RefusesDeployedBundle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	built, err := f.engine.stamp(newBundle(t, "Support Bot", bundle.ModeDeploy), 1)
	require.NoError(t, err)
	deployed := built.Clone()
	require.NoError(t, deployed.Record.Transition(persona.StatusDeployed, now, ""))

	_, err = f.engine.markFailed(context.Background(), deployed, errors.New("commit refused"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marking support-bot v1 failed")

	failed, err := f.engine.markFailed(context.Background(), built, errors.New("commit refused"))
	require.NoError(t, err)
	assert.Equal(t, persona.StatusFailed, failed.Record.Status)
	assert.Equal(t, persona.StatusBuilt, built.Record.Status, "input bundle is not modified")
}

func TestBuild_DiskConflictIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	b := newBundle(t, "Support Bot", bundle.ModeBuild)
	first, err := f.engine.Build(context.Background(), b)
	require.NoError(t, err)

	// A publish for an existing version must not overwrite it.
	files, err := first.Render()
	require.NoError(t, err)
	err = f.archive.Publish("support-bot", 1, files)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestCancelledWhileWaitingHasNoSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	unlock, err := f.engine.locks.Lock(context.Background(), "support-bot")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.engine.Build(ctx, newBundle(t, "Support Bot", bundle.ModeBuild))
	assert.ErrorIs(t, err, context.Canceled)
	unlock()

	v, err := f.archive.MaxVersion("support-bot")
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestCancelledAfterEnteringStillPersists(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := f.engine.locked(ctx, "support-bot", func(inner context.Context) error {
		cancel()
		assert.NoError(t, inner.Err(), "section ignores caller cancellation")
		return nil
	})
	require.NoError(t, err)
}

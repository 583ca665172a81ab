// Package versioning assigns version numbers to packaged personas and
// persists them. For one slug, version assignment and the writes that
// follow happen inside a single critical section: an in-process mutex
// keyed by slug, plus a SQLite IMMEDIATE transaction when a store is
// configured. Versions for a slug therefore run 1, 2, 3, ... without gaps
// or duplicates.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/personaforge/personaforge/internal/archive"
	"github.com/personaforge/personaforge/internal/bundle"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/lock"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/store"
)

// Engine persists bundles. It is safe for concurrent use.
type Engine struct {
	archive *archive.Archive
	store   *store.Store
	locks   lock.Keyed
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for deployed_at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. The store may be nil, in which case Deploy fails
// with a PreconditionError and Build relies on the in-process lock alone.
func New(a *archive.Archive, s *store.Store, opts ...Option) *Engine {
	e := &Engine{archive: a, store: s, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("versioning")
	return e
}

// Build assigns the next version to b and publishes it to disk with status
// built. The input bundle is not modified.
func (e *Engine) Build(ctx context.Context, b *bundle.Bundle) (*bundle.Bundle, error) {
	if b.Mode != bundle.ModeBuild {
		return nil, &apperrors.PreconditionError{Op: "Build", Reason: fmt.Sprintf("bundle mode is %s", b.Mode)}
	}

	var out *bundle.Bundle
	err := e.critical(ctx, b.Record.Slug, func(ctx context.Context, tx *store.Tx) error {
		version, err := e.nextVersion(ctx, tx, b.Record.Slug)
		if err != nil {
			return err
		}
		out, err = e.stamp(b, version)
		if err != nil {
			return err
		}
		return e.publish(out)
	})
	if err != nil {
		if out != nil {
			err = apperrors.AttributeWrite(err, out.Record.Slug, out.Record.Version)
		}
		return nil, err
	}

	e.logger.Info("persona built",
		zap.String("slug", out.Record.Slug),
		zap.Int("version", out.Record.Version),
		zap.String("id", out.Record.ID),
	)
	return out, nil
}

// Deploy publishes b to disk with status built, then writes the record and
// its artifacts to the store in the same transaction that read the max
// version. On success the disk manifest is moved to deployed.
//
// If the relational write fails after the disk write succeeded, the
// transaction is rolled back, a failed record without artifacts is stored
// in its place, the manifest is marked failed, and Deploy returns the
// failed bundle together with a StorageWriteError.
func (e *Engine) Deploy(ctx context.Context, b *bundle.Bundle) (*bundle.Bundle, error) {
	if b.Mode != bundle.ModeDeploy {
		return nil, &apperrors.PreconditionError{Op: "Deploy", Reason: fmt.Sprintf("bundle mode is %s", b.Mode)}
	}
	if e.store == nil {
		return nil, &apperrors.PreconditionError{Op: "Deploy", Reason: "no relational store configured"}
	}

	var out *bundle.Bundle
	err := e.locked(ctx, b.Record.Slug, func(ctx context.Context) error {
		var deployed *bundle.Bundle
		err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			version, err := e.nextVersion(ctx, tx, b.Record.Slug)
			if err != nil {
				return err
			}
			out, err = e.stamp(b, version)
			if err != nil {
				return err
			}
			if err := e.publish(out); err != nil {
				out = nil
				return err
			}

			deployed = out.Clone()
			if err := deployed.Record.Transition(persona.StatusDeployed, e.now(), ""); err != nil {
				return err
			}
			return tx.InsertRecord(ctx, &deployed.Record, deployed.Artifacts.Ordered())
		})
		if err != nil {
			// out is the built snapshot here, or nil if nothing reached disk.
			if out == nil {
				return err
			}
			err = apperrors.AttributeWrite(err, out.Record.Slug, out.Record.Version)
			failed, mErr := e.markFailed(ctx, out, err)
			if mErr != nil {
				return errors.Join(err, mErr)
			}
			out = failed
			return err
		}
		out = deployed

		if mErr := e.archive.UpdateManifest(out.Manifest()); mErr != nil {
			e.logger.Error("deployed record committed but manifest not updated",
				zap.String("slug", out.Record.Slug),
				zap.Int("version", out.Record.Version),
				zap.Error(mErr),
			)
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	e.logger.Info("persona deployed",
		zap.String("slug", out.Record.Slug),
		zap.Int("version", out.Record.Version),
		zap.String("id", out.Record.ID),
	)
	return out, nil
}

// locked runs fn while holding the slug lock. Cancellation is honored only
// while waiting for the lock; once fn starts it runs to completion.
func (e *Engine) locked(ctx context.Context, slug string, fn func(context.Context) error) error {
	unlock, err := e.locks.Lock(ctx, slug)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", slug, err)
	}
	defer unlock()
	return fn(context.WithoutCancel(ctx))
}

// critical runs fn under the slug lock and, when a store exists, inside a
// write transaction.
func (e *Engine) critical(ctx context.Context, slug string, fn func(context.Context, *store.Tx) error) error {
	return e.locked(ctx, slug, func(ctx context.Context) error {
		if e.store == nil {
			return fn(ctx, nil)
		}
		return e.store.WithTx(ctx, func(tx *store.Tx) error {
			return fn(ctx, tx)
		})
	})
}

// nextVersion returns one past the highest version on disk or in the store.
func (e *Engine) nextVersion(ctx context.Context, tx *store.Tx, slug string) (int, error) {
	disk, err := e.archive.MaxVersion(slug)
	if err != nil {
		return 0, &apperrors.StorageWriteError{Backend: apperrors.BackendDisk, Slug: slug, Err: err}
	}
	rel := 0
	if tx != nil {
		if rel, err = tx.MaxVersion(ctx, slug); err != nil {
			return 0, &apperrors.StorageWriteError{Backend: apperrors.BackendRelational, Slug: slug, Err: err}
		}
	}
	return max(disk, rel) + 1, nil
}

// stamp copies b with identity assigned and status built.
func (e *Engine) stamp(b *bundle.Bundle, version int) (*bundle.Bundle, error) {
	out := b.Clone()
	out.Record.ID = uuid.NewString()
	out.Record.Version = version
	for t, a := range out.Artifacts {
		a.ID = uuid.NewString()
		a.CreatedAt = out.Record.CreatedAt
		out.Artifacts[t] = a
	}
	if err := out.Record.Transition(persona.StatusBuilt, out.Record.CreatedAt, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) publish(b *bundle.Bundle) error {
	files, err := b.Render()
	if err != nil {
		return &apperrors.StorageWriteError{Backend: apperrors.BackendDisk, Slug: b.Record.Slug, Version: b.Record.Version, Err: err}
	}
	return e.archive.Publish(b.Record.Slug, b.Record.Version, files)
}

// markFailed records a deploy whose relational write failed after its disk
// snapshot was published. b must still be built. The follow-up writes are
// best effort.
func (e *Engine) markFailed(ctx context.Context, b *bundle.Bundle, cause error) (*bundle.Bundle, error) {
	failed := b.Clone()
	if err := failed.Record.Transition(persona.StatusFailed, e.now(), cause.Error()); err != nil {
		return nil, fmt.Errorf("marking %s v%d failed: %w", failed.Record.Slug, failed.Record.Version, err)
	}

	log := e.logger.With(zap.String("slug", failed.Record.Slug), zap.Int("version", failed.Record.Version))
	log.Warn("deploy failed after disk write", zap.Error(cause))

	if err := e.store.InsertRecord(ctx, &failed.Record); err != nil {
		log.Error("storing failed record", zap.Error(err))
	}
	if err := e.archive.UpdateManifest(failed.Manifest()); err != nil {
		log.Error("marking manifest failed", zap.Error(err))
	}
	return failed, nil
}

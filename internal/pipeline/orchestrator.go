// Package pipeline sequences a persona run: normalize, validate, generate,
// score, package and persist. The mode decides which stages run. A spec
// that fails validation is a normal outcome, never an error.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/personaforge/personaforge/internal/archive"
	"github.com/personaforge/personaforge/internal/bundle"
	"github.com/personaforge/personaforge/internal/confidence"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/generate"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/store"
	"github.com/personaforge/personaforge/internal/validation"
	"github.com/personaforge/personaforge/internal/versioning"
)

// Orchestrator runs pipelines and answers lookups. It is safe for
// concurrent use; only the versioning engine touches shared state.
type Orchestrator struct {
	generator *generate.Generator
	packager  *bundle.Packager
	engine    *versioning.Engine
	archive   *archive.Archive
	store     *store.Store
	observer  Observer
	logger    *zap.Logger
}

// Deps are the collaborators of an Orchestrator. Store may be nil, which
// disables Deploy and Deployed.
type Deps struct {
	Generator *generate.Generator
	Packager  *bundle.Packager
	Engine    *versioning.Engine
	Archive   *archive.Archive
	Store     *store.Store
	Observer  Observer
	Logger    *zap.Logger
}

// New builds an Orchestrator from deps.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		generator: deps.Generator,
		packager:  deps.Packager,
		engine:    deps.Engine,
		archive:   deps.Archive,
		store:     deps.Store,
		observer:  deps.Observer,
		logger:    deps.Logger,
	}
	if o.packager == nil {
		o.packager = bundle.NewPackager(nil)
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("pipeline")
	return o
}

// WithObserver returns a shallow copy of o reporting to obs.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	c := *o
	c.observer = obs
	return &c
}

// AssessResult is the outcome of an assess run. Record is a draft preview
// and is nil when validation fails.
type AssessResult struct {
	Validation validation.Result `json:"validation"`
	Confidence confidence.Result `json:"confidence"`
	Record     *persona.Record   `json:"record,omitempty"`
}

// TestResult is the outcome of a test run. Suite is nil when validation fails.
type TestResult struct {
	Validation validation.Result   `json:"validation"`
	Suite      *generate.TestSuite `json:"test_suite,omitempty"`
}

// BuildResult is the outcome of a build or deploy run.
type BuildResult struct {
	Record     persona.Record      `json:"record"`
	Validation validation.Result   `json:"validation"`
	Confidence confidence.Result   `json:"confidence"`
	Artifacts  persona.ArtifactSet `json:"artifacts,omitempty"`
	Dir        string              `json:"dir,omitempty"`
}

// Assess scores a persona without persisting anything. Artifacts are
// generated in memory so the score reflects them.
func (o *Orchestrator) Assess(ctx context.Context, raw persona.Raw) (*AssessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	r := o.begin(bundle.ModeAssess)
	c, err := o.check(r, raw)
	if err != nil {
		return nil, err
	}
	if !c.Result.Valid {
		return &AssessResult{Validation: c.Result, Confidence: confidence.Invalid(c.Result)}, nil
	}

	b, err := o.assemble(r, c)
	if err != nil {
		return nil, err
	}
	o.finished(r, b.Record, start)
	rec := b.Record
	return &AssessResult{Validation: c.Result, Confidence: b.Confidence, Record: &rec}, nil
}

// GenerateTests produces only the test suite.
func (o *Orchestrator) GenerateTests(ctx context.Context, raw persona.Raw) (*TestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := o.begin(bundle.ModeTest)
	c, err := o.check(r, raw)
	if err != nil {
		return nil, err
	}
	if !c.Result.Valid {
		return &TestResult{Validation: c.Result}, nil
	}

	var suite generate.TestSuite
	err = r.step(StageGenerating, func() error {
		var err error
		suite, err = generate.Tests(c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &TestResult{Validation: c.Result, Suite: &suite}, nil
}

// Build runs the full pipeline and publishes a new version to disk.
func (o *Orchestrator) Build(ctx context.Context, raw persona.Raw) (*BuildResult, error) {
	return o.persist(ctx, bundle.ModeBuild, raw)
}

// Deploy runs the full pipeline and publishes a new version to disk and to
// the relational store.
func (o *Orchestrator) Deploy(ctx context.Context, raw persona.Raw) (*BuildResult, error) {
	if o.store == nil {
		return nil, &apperrors.PreconditionError{Op: "Deploy", Reason: "no relational store configured"}
	}
	return o.persist(ctx, bundle.ModeDeploy, raw)
}

func (o *Orchestrator) persist(ctx context.Context, mode bundle.Mode, raw persona.Raw) (*BuildResult, error) {
	start := time.Now()
	r := o.begin(mode)
	c, err := o.check(r, raw)
	if err != nil {
		return nil, err
	}
	if !c.Result.Valid {
		rec := o.packager.Rejected(c)
		o.logger.Info("persona rejected",
			zap.String("mode", string(mode)),
			zap.String("slug", rec.Slug),
			zap.Int("violations", len(c.Result.Violations)),
		)
		return &BuildResult{Record: rec, Validation: c.Result, Confidence: confidence.Invalid(c.Result)}, nil
	}

	b, err := o.assemble(r, c)
	if err != nil {
		return nil, err
	}

	// Nothing has been written yet; a cancelled caller leaves no trace.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *bundle.Bundle
	err = r.step(StagePersisting, func() error {
		var err error
		if mode == bundle.ModeDeploy {
			out, err = o.engine.Deploy(ctx, b)
		} else {
			out, err = o.engine.Build(ctx, b)
		}
		return err
	})
	if err != nil {
		if out == nil {
			return nil, err
		}
		return o.result(out), err
	}

	o.finished(r, out.Record, start)
	return o.result(out), nil
}

func (o *Orchestrator) result(b *bundle.Bundle) *BuildResult {
	return &BuildResult{
		Record:     b.Record,
		Validation: b.Validation,
		Confidence: b.Confidence,
		Artifacts:  b.Artifacts,
		Dir:        o.archive.Dir(b.Record.Slug, b.Record.Version),
	}
}

func (o *Orchestrator) begin(mode bundle.Mode) *run {
	return &run{mode: mode, plan: stagePlans[mode], observer: o.observer}
}

// check normalizes and validates raw input.
func (o *Orchestrator) check(r *run, raw persona.Raw) (validation.Checked, error) {
	var spec persona.Spec
	err := r.step(StageNormalizing, func() error {
		var err error
		spec, err = persona.Normalize(raw)
		return err
	})
	if err != nil {
		return validation.Checked{}, err
	}

	var c validation.Checked
	_ = r.step(StageValidating, func() error {
		c = validation.Check(spec)
		return nil
	})
	return c, nil
}

// assemble generates, scores and packages a valid spec.
func (o *Orchestrator) assemble(r *run, c validation.Checked) (*bundle.Bundle, error) {
	var set persona.ArtifactSet
	err := r.step(StageGenerating, func() error {
		var err error
		set, err = o.generator.All(c)
		return err
	})
	if err != nil {
		return nil, err
	}

	var conf confidence.Result
	_ = r.step(StageScoring, func() error {
		conf = confidence.Score(c, set)
		return nil
	})

	var b *bundle.Bundle
	err = r.step(StagePackaging, func() error {
		var err error
		b, err = o.packager.Package(r.mode, c, set, conf)
		return err
	})
	return b, err
}

func (o *Orchestrator) finished(r *run, rec persona.Record, start time.Time) {
	o.logger.Info("pipeline finished",
		zap.String("mode", string(r.mode)),
		zap.String("slug", rec.Slug),
		zap.Int("version", rec.Version),
		zap.String("status", string(rec.Status)),
		zap.String("grade", rec.ConfidenceGrade),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Package bundle assembles a scored persona into an in-memory delivery bundle
// and renders the files of its delivery directory. It performs no I/O.
package bundle

import (
	"fmt"
	"time"

	"github.com/personaforge/personaforge/internal/confidence"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/validation"
)

// Mode selects which pipeline stages run and where results persist.
type Mode string

const (
	ModeAssess Mode = "assess"
	ModeTest   Mode = "test"
	ModeBuild  Mode = "build"
	ModeDeploy Mode = "deploy"
)

// Modes lists every mode.
var Modes = []Mode{ModeAssess, ModeTest, ModeBuild, ModeDeploy}

// Persists reports whether the mode writes anything.
func (m Mode) Persists() bool {
	return m == ModeBuild || m == ModeDeploy
}

// ParseMode converts s to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Bundle is one packaged persona. The Record starts as a draft with no id
// and no version; only the versioning engine assigns those.
type Bundle struct {
	Mode       Mode
	Record     persona.Record
	Spec       persona.Spec
	SpecHash   string
	Validation validation.Result
	Confidence confidence.Result
	Artifacts  persona.ArtifactSet
}

// Clone returns a copy that shares no mutable state with b.
func (b *Bundle) Clone() *Bundle {
	c := *b
	c.Artifacts = make(persona.ArtifactSet, len(b.Artifacts))
	for t, a := range b.Artifacts {
		c.Artifacts[t] = a
	}
	if b.Record.DeployedAt != nil {
		at := *b.Record.DeployedAt
		c.Record.DeployedAt = &at
	}
	return &c
}

// Packager builds bundles. The clock only stamps CreatedAt.
type Packager struct {
	now func() time.Time
}

// NewPackager returns a Packager. A nil clock means time.Now.
func NewPackager(now func() time.Time) *Packager {
	if now == nil {
		now = time.Now
	}
	return &Packager{now: now}
}

// Package assembles a draft bundle. Build and deploy require all four
// artifact types; assess accepts any subset.
func (p *Packager) Package(mode Mode, c validation.Checked, artifacts persona.ArtifactSet, conf confidence.Result) (*Bundle, error) {
	if mode == ModeTest {
		return nil, &apperrors.PreconditionError{Op: "Package", Reason: "test mode produces no bundle"}
	}
	if mode.Persists() {
		if err := c.Require("Package"); err != nil {
			return nil, err
		}
		for _, t := range persona.ArtifactTypes {
			if a, ok := artifacts[t]; !ok || a.Empty() {
				return nil, &apperrors.PreconditionError{
					Op:     "Package",
					Reason: fmt.Sprintf("%s mode requires artifact %s", mode, t),
				}
			}
		}
	}

	s := c.Spec
	set := make(persona.ArtifactSet, len(artifacts))
	for t, a := range artifacts {
		set[t] = a
	}

	return &Bundle{
		Mode: mode,
		Record: persona.Record{
			Name:            s.Name,
			Slug:            s.Slug,
			Role:            s.Role,
			Description:     s.Description,
			Status:          persona.StatusDraft,
			ConfidenceScore: conf.Score,
			ConfidenceGrade: string(conf.Grade),
			SpecValid:       c.Result.Valid,
			CreatedAt:       p.now().UTC().Truncate(time.Second),
		},
		Spec:       s,
		SpecHash:   s.Hash(),
		Validation: c.Result,
		Confidence: conf,
		Artifacts:  set,
	}, nil
}

// Rejected builds the failed record returned when validation fails in build
// or deploy mode. It is never persisted, so it has no id and version 0.
func (p *Packager) Rejected(c validation.Checked) persona.Record {
	s := c.Spec
	r := persona.Record{
		Name:            s.Name,
		Slug:            s.Slug,
		Role:            s.Role,
		Description:     s.Description,
		Status:          persona.StatusDraft,
		ConfidenceScore: 0,
		ConfidenceGrade: string(confidence.GradeF),
		SpecValid:       false,
		CreatedAt:       p.now().UTC().Truncate(time.Second),
	}
	// draft -> failed is always legal.
	_ = r.Transition(persona.StatusFailed, r.CreatedAt, c.Result.FailureReason())
	return r
}

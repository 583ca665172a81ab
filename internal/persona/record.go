package persona

import (
	"encoding/json"
	"time"
)

// ArtifactType names one generated output document.
type ArtifactType string

const (
	ArtifactSystemPrompt ArtifactType = "system_prompt"
	ArtifactOpenAIConfig ArtifactType = "openai_config"
	ArtifactClaudeConfig ArtifactType = "claude_config"
	ArtifactTestSuite    ArtifactType = "test_suite"
)

// ArtifactTypes lists every artifact type in canonical order.
var ArtifactTypes = []ArtifactType{
	ArtifactSystemPrompt,
	ArtifactOpenAIConfig,
	ArtifactClaudeConfig,
	ArtifactTestSuite,
}

// Structured reports whether the artifact payload is JSON rather than plain text.
func (t ArtifactType) Structured() bool {
	return t != ArtifactSystemPrompt
}

// Artifact is one generated document. Exactly one of Text or JSON is set,
// according to Type.Structured().
type Artifact struct {
	ID        string          `json:"id,omitempty" yaml:"id,omitempty"`
	Type      ArtifactType    `json:"artifact_type" yaml:"artifact_type"`
	Text      string          `json:"content_text,omitempty" yaml:"content_text,omitempty"`
	JSON      json.RawMessage `json:"content_json,omitempty" yaml:"-"`
	CreatedAt time.Time       `json:"created_at,omitzero" yaml:"created_at,omitempty"`
}

// Bytes returns the payload as stored on disk.
func (a Artifact) Bytes() []byte {
	if a.Type.Structured() {
		return a.JSON
	}
	return []byte(a.Text)
}

// Empty reports whether the artifact has no payload.
func (a Artifact) Empty() bool {
	return len(a.Bytes()) == 0
}

// ArtifactSet holds at most one artifact per type.
type ArtifactSet map[ArtifactType]Artifact

// Ordered returns the artifacts in canonical type order.
func (s ArtifactSet) Ordered() []Artifact {
	out := make([]Artifact, 0, len(s))
	for _, t := range ArtifactTypes {
		if a, ok := s[t]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Complete reports whether every artifact type is present and non-empty.
func (s ArtifactSet) Complete() bool {
	for _, t := range ArtifactTypes {
		if a, ok := s[t]; !ok || a.Empty() {
			return false
		}
	}
	return true
}

// Record is one persisted persona version. Identity fields never change after
// creation; only Status, DeployedAt and FailureReason move forward.
type Record struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	Slug            string     `json:"slug" yaml:"slug"`
	Version         int        `json:"version" yaml:"version"`
	Role            string     `json:"role" yaml:"role"`
	Description     string     `json:"description" yaml:"description"`
	Status          Status     `json:"status" yaml:"status"`
	ConfidenceScore float64    `json:"confidence_score" yaml:"confidence_score"`
	ConfidenceGrade string     `json:"confidence_grade" yaml:"confidence_grade"`
	SpecValid       bool       `json:"spec_valid" yaml:"spec_valid"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	DeployedAt      *time.Time `json:"deployed_at,omitempty" yaml:"deployed_at,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
}

// Transition moves the record to next, stamping DeployedAt or FailureReason.
// Backward or sideways moves return an IllegalTransitionError.
func (r *Record) Transition(next Status, at time.Time, reason string) error {
	if !r.Status.CanTransition(next) {
		return &IllegalTransitionError{From: r.Status, To: next}
	}
	r.Status = next
	switch next {
	case StatusDeployed:
		t := at.UTC()
		r.DeployedAt = &t
	case StatusFailed:
		r.FailureReason = reason
	}
	return nil
}

package generate

import (
	"encoding/json"
	"fmt"

	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/validation"
)

// Models holds the opaque model identifiers stamped into provider configs.
type Models struct {
	OpenAI string
	Claude string
}

// Generator renders all artifacts for a validated spec with fixed models.
// It holds no mutable state and is safe for concurrent use.
type Generator struct {
	models Models
}

// New creates a Generator for the given model identifiers.
func New(models Models) *Generator {
	return &Generator{models: models}
}

// Model returns the configured model identifier for provider.
func (g *Generator) Model(provider Provider) string {
	if provider == ProviderClaude {
		return g.models.Claude
	}
	return g.models.OpenAI
}

// All renders the four artifacts. Identical specs and models yield
// byte-identical payloads.
func (g *Generator) All(c validation.Checked) (persona.ArtifactSet, error) {
	prompt, err := SystemPrompt(c)
	if err != nil {
		return nil, err
	}

	set := persona.ArtifactSet{
		persona.ArtifactSystemPrompt: {Type: persona.ArtifactSystemPrompt, Text: prompt},
	}

	for _, provider := range []Provider{ProviderOpenAI, ProviderClaude} {
		cfg, err := ProviderConfig(c, provider, g.Model(provider), prompt)
		if err != nil {
			return nil, err
		}
		a, err := StructuredArtifact(provider.ArtifactType(), cfg)
		if err != nil {
			return nil, err
		}
		set[a.Type] = a
	}

	suite, err := g.TestSuite(c)
	if err != nil {
		return nil, err
	}
	set[suite.Type] = suite
	return set, nil
}

// TestSuite renders only the test suite artifact.
func (g *Generator) TestSuite(c validation.Checked) (persona.Artifact, error) {
	suite, err := Tests(c)
	if err != nil {
		return persona.Artifact{}, err
	}
	return StructuredArtifact(persona.ArtifactTestSuite, suite)
}

// StructuredArtifact encodes v as the JSON payload of an artifact.
func StructuredArtifact(t persona.ArtifactType, v any) (persona.Artifact, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return persona.Artifact{}, fmt.Errorf("encoding %s: %w", t, err)
	}
	return persona.Artifact{Type: t, JSON: data}, nil
}

// DecodeTestSuite parses a test_suite artifact payload.
func DecodeTestSuite(a persona.Artifact) (TestSuite, error) {
	var ts TestSuite
	if a.Type != persona.ArtifactTestSuite {
		return ts, fmt.Errorf("artifact is %s, not %s", a.Type, persona.ArtifactTestSuite)
	}
	if err := json.Unmarshal(a.JSON, &ts); err != nil {
		return ts, fmt.Errorf("decoding test suite: %w", err)
	}
	return ts, nil
}

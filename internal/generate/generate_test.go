package generate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModels = Models{OpenAI: "gpt-4o", Claude: "claude-sonnet-4-20250514"}

func checked(t *testing.T, raw persona.Raw) validation.Checked {
	t.Helper()
	spec, err := persona.Normalize(raw)
	require.NoError(t, err)
	c := validation.Check(spec)
	require.True(t, c.Result.Valid, "violations: %v", c.Result.Messages())
	return c
}

func rebecka(t *testing.T) validation.Checked {
	return checked(t, persona.Raw{
		"name":                "Rebecka",
		"role":                "Customer Success Manager",
		"description":         "Warm CSM for onboarding.",
		"traits":              []any{"empathetic", "patient"},
		"communication_style": "warm and direct",
		"tone":                "friendly",
		"knowledge_domains":   []any{"onboarding", "SaaS"},
		"limitations":         []any{"no billing access"},
		"forbidden_topics":    []any{"competitor pricing"},
		"response_length":     "moderate",
		"max_response_tokens": 800,
	})
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	prompt, err := SystemPrompt(rebecka(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "You are Rebecka, a Customer Success Manager.\n"))
	for _, want := range []string{
		"## Personality",
		"Your core traits are: empathetic, patient.",
		"Maintain a friendly tone with semi-formal formality.",
		"## Expertise",
		"You are an expert-level specialist in: onboarding, SaaS.",
		"You cannot: no billing access.",
		"Keep responses moderate.",
		"NEVER discuss: competitor pricing.",
		"Keep responses under 800 tokens.",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.False(t, strings.HasSuffix(prompt, "\n"))
}

func TestSystemPrompt_OmitsEmptySections(t *testing.T) {
	t.Parallel()

	prompt, err := SystemPrompt(checked(t, persona.Raw{"name": "Daniel"}))
	require.NoError(t, err)

	assert.NotContains(t, prompt, "## Personality")
	assert.NotContains(t, prompt, "## Expertise")
	assert.NotContains(t, prompt, "NEVER discuss")
	assert.Contains(t, prompt, "## Rules")
}

func TestProviderConfig(t *testing.T) {
	t.Parallel()

	c := rebecka(t)

	raw, err := ProviderConfig(c, ProviderOpenAI, "gpt-4o", "PROMPT")
	require.NoError(t, err)
	oa := raw.(OpenAIConfig)
	assert.Equal(t, "gpt-4o", oa.Model)
	assert.Equal(t, 0.5, oa.Temperature)
	assert.Equal(t, 800, oa.MaxTokens, "moderate cap 1024 clipped to guardrail 800")
	assert.Equal(t, 0.9, oa.TopP)
	assert.Equal(t, 0.1, oa.FrequencyPenalty)
	assert.Equal(t, []Message{{Role: "system", Content: "PROMPT"}}, oa.Messages)
	assert.Equal(t, "rebecka", oa.Metadata.PersonaSlug)

	raw, err = ProviderConfig(c, ProviderClaude, "claude-x", "PROMPT")
	require.NoError(t, err)
	cl := raw.(ClaudeConfig)
	assert.Equal(t, "claude-x", cl.Model)
	assert.Equal(t, 40, cl.TopK)
	assert.Equal(t, "PROMPT", cl.System)
	assert.NotNil(t, cl.Messages)

	_, err = ProviderConfig(c, Provider("gemini"), "m", "p")
	assert.Error(t, err)
}

func TestProviderConfig_ProfessionalConcise(t *testing.T) {
	t.Parallel()

	c := checked(t, persona.Raw{"name": "Daniel"})
	raw, err := ProviderConfig(c, ProviderOpenAI, "m", "p")
	require.NoError(t, err)
	oa := raw.(OpenAIConfig)
	assert.Equal(t, 0.3, oa.Temperature)
	assert.Equal(t, 512, oa.MaxTokens)
	assert.Equal(t, 0.8, oa.TopP)
	assert.Equal(t, 0.3, oa.FrequencyPenalty)

	raw, err = ProviderConfig(c, ProviderClaude, "m", "p")
	require.NoError(t, err)
	assert.Equal(t, 20, raw.(ClaudeConfig).TopK)
}

func TestTests(t *testing.T) {
	t.Parallel()

	suite, err := Tests(rebecka(t))
	require.NoError(t, err)
	assert.Equal(t, FullCoverageScenarios, suite.TotalScenarios)
	assert.Len(t, suite.Scenarios, FullCoverageScenarios)
	assert.Equal(t, "TC-001", suite.Scenarios[0].ID)
	assert.Equal(t, "TC-008", suite.Scenarios[7].ID)
	assert.Contains(t, suite.Scenarios[5].ExpectedBehaviors, "Shows empathy or understanding")
	assert.Equal(t, []string{"greeting", "knowledge", "guardrails", "escalation", "fallback", "personality", "behavior", "identity"}, suite.CategoryNames())

	minimal, err := Tests(checked(t, persona.Raw{"name": "Daniel"}))
	require.NoError(t, err)
	// No domains, no forbidden topics; escalation has a default.
	assert.Equal(t, 6, minimal.TotalScenarios)
	assert.NotContains(t, minimal.Categories, "knowledge")
	assert.NotContains(t, minimal.Categories, "guardrails")
	assert.Contains(t, minimal.Scenarios[3].ExpectedBehaviors, "Stays professional")
}

func TestGenerator_All(t *testing.T) {
	t.Parallel()

	set, err := New(testModels).All(rebecka(t))
	require.NoError(t, err)
	require.True(t, set.Complete())

	var oa OpenAIConfig
	require.NoError(t, json.Unmarshal(set[persona.ArtifactOpenAIConfig].JSON, &oa))
	assert.Equal(t, testModels.OpenAI, oa.Model)
	assert.Equal(t, set[persona.ArtifactSystemPrompt].Text, oa.Messages[0].Content)

	var cl ClaudeConfig
	require.NoError(t, json.Unmarshal(set[persona.ArtifactClaudeConfig].JSON, &cl))
	assert.Equal(t, testModels.Claude, cl.Model)

	suite, err := DecodeTestSuite(set[persona.ArtifactTestSuite])
	require.NoError(t, err)
	assert.Equal(t, FullCoverageScenarios, suite.TotalScenarios)

	_, err = DecodeTestSuite(set[persona.ArtifactSystemPrompt])
	assert.Error(t, err)
}

func TestGenerator_Deterministic(t *testing.T) {
	t.Parallel()

	g := New(testModels)
	first, err := g.All(rebecka(t))
	require.NoError(t, err)
	second, err := g.All(rebecka(t))
	require.NoError(t, err)

	for _, typ := range persona.ArtifactTypes {
		if diff := cmp.Diff(string(first[typ].Bytes()), string(second[typ].Bytes())); diff != "" {
			t.Errorf("%s not byte-identical (-first +second):\n%s", typ, diff)
		}
	}
}

func TestGenerators_RejectInvalidSpec(t *testing.T) {
	t.Parallel()

	invalid := validation.Check(persona.Spec{Name: "x"})
	require.False(t, invalid.Result.Valid)

	_, err := SystemPrompt(invalid)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)

	_, err = ProviderConfig(invalid, ProviderOpenAI, "m", "p")
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)

	_, err = Tests(invalid)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)

	set, err := New(testModels).All(invalid)
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
	assert.Nil(t, set)
}

package validation

import (
	"strings"
	"testing"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec(t *testing.T) persona.Spec {
	t.Helper()
	spec, err := persona.Normalize(persona.Raw{
		"name":                "Rebecka",
		"role":                "Customer Success Manager",
		"description":         "Warm CSM for onboarding.",
		"traits":              []any{"empathetic", "professional"},
		"communication_style": "warm and direct",
		"tone":                "friendly",
		"knowledge_domains":   []any{"onboarding", "SaaS"},
		"limitations":         []any{"no billing access"},
		"forbidden_topics":    []any{"pricing"},
		"max_response_tokens": 800,
		"author":              "brian",
	})
	require.NoError(t, err)
	return spec
}

func TestValidate_ValidSpec(t *testing.T) {
	t.Parallel()

	res := Validate(validSpec(t))

	assert.True(t, res.Valid)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, len(RuleIDs()), res.ChecksRun)
	assert.Equal(t, res.ChecksRun, res.ChecksPassed)
	assert.Zero(t, res.ChecksFailed())
	assert.Empty(t, res.FailureReason())
}

func TestValidate_WarningsDoNotInvalidate(t *testing.T) {
	t.Parallel()

	spec, err := persona.Normalize(persona.Raw{"name": "Minimal"})
	require.NoError(t, err)

	res := Validate(spec)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "PT-001", res.Warnings[0].RuleID)
	assert.Equal(t, "KD-001", res.Warnings[1].RuleID)
	assert.Equal(t, SeverityWarning, res.Warnings[0].Severity)
	assert.Equal(t, res.ChecksRun, res.ChecksPassed)
}

func TestValidate_Rules(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate   func(s *persona.Spec)
		wantRule string
	}{
		"bad spec version":     {mutate: func(s *persona.Spec) { s.SpecVersion = "one" }, wantRule: "PS-001"},
		"name too long":        {mutate: func(s *persona.Spec) { s.Name = strings.Repeat("a", MaxNameLength+1) }, wantRule: "PS-003"},
		"name with braces":     {mutate: func(s *persona.Spec) { s.Name = "Bot {x}" }, wantRule: "PS-004"},
		"name with control":    {mutate: func(s *persona.Spec) { s.Name = "Bot\x07" }, wantRule: "PS-004"},
		"slug not kebab":       {mutate: func(s *persona.Spec) { s.Slug = "Not_Kebab" }, wantRule: "PS-005"},
		"slug too long":        {mutate: func(s *persona.Spec) { s.Slug = strings.Repeat("a", MaxSlugLength+1) }, wantRule: "PS-005"},
		"role too long":        {mutate: func(s *persona.Spec) { s.Role = strings.Repeat("r", MaxRoleLength+1) }, wantRule: "PS-006"},
		"description too long": {mutate: func(s *persona.Spec) { s.Description = strings.Repeat("d", MaxDescriptionLength+1) }, wantRule: "PS-007"},
		"unknown tone":         {mutate: func(s *persona.Spec) { s.Personality.Tone = "grumpy" }, wantRule: "PT-002"},
		"unknown formality":    {mutate: func(s *persona.Spec) { s.Personality.Formality = "black-tie" }, wantRule: "PT-003"},
		"no style":             {mutate: func(s *persona.Spec) { s.Personality.CommunicationStyle = "" }, wantRule: "PT-004"},
		"unknown expertise":    {mutate: func(s *persona.Spec) { s.Knowledge.ExpertiseLevel = "guru" }, wantRule: "KD-002"},
		"no greeting":          {mutate: func(s *persona.Spec) { s.Behavior.Greeting = "" }, wantRule: "BH-001"},
		"no fallback":          {mutate: func(s *persona.Spec) { s.Behavior.Fallback = "" }, wantRule: "BH-002"},
		"no escalation":        {mutate: func(s *persona.Spec) { s.Behavior.EscalationTrigger = "" }, wantRule: "BH-003"},
		"unknown length":       {mutate: func(s *persona.Spec) { s.Behavior.ResponseLength = "epic" }, wantRule: "BH-004"},
		"unknown pii":          {mutate: func(s *persona.Spec) { s.Guardrails.PIIHandling = "sell" }, wantRule: "GR-001"},
		"zero tokens":          {mutate: func(s *persona.Spec) { s.Guardrails.MaxResponseTokens = 0 }, wantRule: "GR-002"},
		"too many tokens":      {mutate: func(s *persona.Spec) { s.Guardrails.MaxResponseTokens = MaxResponseTokens + 1 }, wantRule: "GR-002"},
		"long list item":       {mutate: func(s *persona.Spec) { s.Metadata.Notes = []string{strings.Repeat("n", MaxListItemLength+1)} }, wantRule: "GR-003"},
		"no author":            {mutate: func(s *persona.Spec) { s.Metadata.Author = "" }, wantRule: "MD-001"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			spec := validSpec(t)
			tc.mutate(&spec)

			res := Validate(spec)
			require.False(t, res.Valid)
			require.Len(t, res.Violations, 1, "violations: %v", res.Messages())
			assert.Equal(t, tc.wantRule, res.Violations[0].RuleID)
			assert.Equal(t, SeverityError, res.Violations[0].Severity)
			assert.Equal(t, res.ChecksRun-1, res.ChecksPassed)
		})
	}
}

func TestValidate_StableOrdering(t *testing.T) {
	t.Parallel()

	res := Validate(persona.Spec{SpecVersion: "bad"})
	require.False(t, res.Valid)
	assert.GreaterOrEqual(t, len(res.Violations), 10)

	// Violations follow checklist order.
	order := map[string]int{}
	for i, id := range RuleIDs() {
		order[id] = i
	}
	for i := 1; i < len(res.Violations); i++ {
		assert.Less(t, order[res.Violations[i-1].RuleID], order[res.Violations[i].RuleID])
	}

	again := Validate(persona.Spec{SpecVersion: "bad"})
	assert.Equal(t, res, again)
	assert.Contains(t, res.FailureReason(), "PS-001: spec_version must be a valid semver string")
}

func TestChecked_Require(t *testing.T) {
	t.Parallel()

	ok := Check(validSpec(t))
	assert.NoError(t, ok.Require("SystemPrompt"))

	bad := Check(persona.Spec{})
	err := bad.Require("SystemPrompt")
	assert.ErrorIs(t, err, apperrors.ErrPrecondition)
}

package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/personaforge/personaforge/internal/persona"
)

// Length bounds enforced by the checklist.
const (
	MaxNameLength        = 100
	MaxSlugLength        = 64
	MaxRoleLength        = 120
	MaxDescriptionLength = 2000
	MaxListItemLength    = 200
	MinResponseTokens    = 1
	MaxResponseTokens    = 16384
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	// validate is safe for concurrent use and caches nothing per call.
	validate = validator.New()
)

// rule is one entry of the checklist.
type rule struct {
	id      string
	path    string
	warning bool
	check   func(s *persona.Spec) (ok bool, message string)
}

// rules is evaluated top to bottom; the order fixes violation ordering.
var rules = []rule{
	// PS: persona identity
	{id: "PS-001", path: "spec_version", check: func(s *persona.Spec) (bool, string) {
		return field(s.SpecVersion, "required,semver"), "spec_version must be a valid semver string"
	}},
	{id: "PS-002", path: "name", check: func(s *persona.Spec) (bool, string) {
		return field(s.Name, "required"), "persona.name is required"
	}},
	{id: "PS-003", path: "name", check: func(s *persona.Spec) (bool, string) {
		return field(s.Name, fmt.Sprintf("max=%d", MaxNameLength)),
			fmt.Sprintf("persona.name must be at most %d characters", MaxNameLength)
	}},
	{id: "PS-004", path: "name", check: func(s *persona.Spec) (bool, string) {
		return field(s.Name, "excludesall=<>{}") && !strings.ContainsFunc(s.Name, unicode.IsControl),
			"persona.name must not contain control characters or any of <>{}"
	}},
	{id: "PS-005", path: "slug", check: func(s *persona.Spec) (bool, string) {
		return field(s.Slug, fmt.Sprintf("required,max=%d", MaxSlugLength)) && slugPattern.MatchString(s.Slug),
			fmt.Sprintf("persona.slug must be kebab-case and at most %d characters", MaxSlugLength)
	}},
	{id: "PS-006", path: "role", check: func(s *persona.Spec) (bool, string) {
		return field(s.Role, fmt.Sprintf("required,max=%d", MaxRoleLength)),
			fmt.Sprintf("persona.role is required and must be at most %d characters", MaxRoleLength)
	}},
	{id: "PS-007", path: "description", check: func(s *persona.Spec) (bool, string) {
		return field(s.Description, fmt.Sprintf("required,max=%d", MaxDescriptionLength)),
			fmt.Sprintf("persona.description is required and must be at most %d characters", MaxDescriptionLength)
	}},

	// PT: personality
	{id: "PT-001", path: "personality.traits", warning: true, check: func(s *persona.Spec) (bool, string) {
		return field(s.Personality.Traits, "min=1"), "personality.traits is empty; persona may lack character definition"
	}},
	{id: "PT-002", path: "personality.tone", check: func(s *persona.Spec) (bool, string) {
		return oneOf(s.Personality.Tone, persona.Tones), "personality.tone must be one of " + listing(persona.Tones)
	}},
	{id: "PT-003", path: "personality.formality", check: func(s *persona.Spec) (bool, string) {
		return oneOf(s.Personality.Formality, persona.Formalities), "personality.formality must be one of " + listing(persona.Formalities)
	}},
	{id: "PT-004", path: "personality.communication_style", check: func(s *persona.Spec) (bool, string) {
		return field(s.Personality.CommunicationStyle, "required"), "personality.communication_style is required"
	}},

	// KD: knowledge
	{id: "KD-001", path: "knowledge.domains", warning: true, check: func(s *persona.Spec) (bool, string) {
		return field(s.Knowledge.Domains, "min=1"), "knowledge.domains is empty; persona has no domain expertise defined"
	}},
	{id: "KD-002", path: "knowledge.expertise_level", check: func(s *persona.Spec) (bool, string) {
		return oneOf(s.Knowledge.ExpertiseLevel, persona.ExpertiseLevels), "knowledge.expertise_level must be one of " + listing(persona.ExpertiseLevels)
	}},

	// BH: behavior
	{id: "BH-001", path: "behavior.greeting", check: func(s *persona.Spec) (bool, string) {
		return field(s.Behavior.Greeting, "required"), "behavior.greeting is required"
	}},
	{id: "BH-002", path: "behavior.fallback", check: func(s *persona.Spec) (bool, string) {
		return field(s.Behavior.Fallback, "required"), "behavior.fallback is required"
	}},
	{id: "BH-003", path: "behavior.escalation_trigger", check: func(s *persona.Spec) (bool, string) {
		return field(s.Behavior.EscalationTrigger, "required"), "behavior.escalation_trigger is required"
	}},
	{id: "BH-004", path: "behavior.response_length", check: func(s *persona.Spec) (bool, string) {
		return oneOf(s.Behavior.ResponseLength, persona.ResponseLengths), "behavior.response_length must be one of " + listing(persona.ResponseLengths)
	}},

	// GR: guardrails
	{id: "GR-001", path: "guardrails.pii_handling", check: func(s *persona.Spec) (bool, string) {
		return oneOf(s.Guardrails.PIIHandling, persona.PIIPolicies), "guardrails.pii_handling must be one of " + listing(persona.PIIPolicies)
	}},
	{id: "GR-002", path: "guardrails.max_response_tokens", check: func(s *persona.Spec) (bool, string) {
		return field(s.Guardrails.MaxResponseTokens, fmt.Sprintf("min=%d,max=%d", MinResponseTokens, MaxResponseTokens)),
			fmt.Sprintf("guardrails.max_response_tokens must be an integer %d-%d", MinResponseTokens, MaxResponseTokens)
	}},
	{id: "GR-003", path: "lists", check: func(s *persona.Spec) (bool, string) {
		tag := fmt.Sprintf("dive,max=%d", MaxListItemLength)
		for _, list := range [][]string{
			s.Personality.Traits, s.Knowledge.Domains, s.Knowledge.Limitations,
			s.Guardrails.ForbiddenTopics, s.Metadata.Notes,
		} {
			if !field(list, tag) {
				return false, fmt.Sprintf("list items must be at most %d characters", MaxListItemLength)
			}
		}
		return true, ""
	}},

	// MD: metadata
	{id: "MD-001", path: "metadata.author", check: func(s *persona.Spec) (bool, string) {
		return field(s.Metadata.Author, "required"), "metadata.author is required"
	}},
}

// RuleIDs returns the checklist rule IDs in evaluation order.
func RuleIDs() []string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.id
	}
	return ids
}

// Validate runs every rule against spec in a fixed order. It never fails:
// an invalid spec is reported through Result.Valid and Result.Violations.
func Validate(spec persona.Spec) Result {
	res := Result{
		Violations: []Violation{},
		Warnings:   []Violation{},
	}

	for _, r := range rules {
		res.ChecksRun++
		ok, msg := r.check(&spec)
		if ok {
			res.ChecksPassed++
			continue
		}

		v := Violation{RuleID: r.id, Path: r.path, Message: msg, Severity: SeverityError}
		if r.warning {
			// Warnings count as passed checks.
			v.Severity = SeverityWarning
			res.Warnings = append(res.Warnings, v)
			res.ChecksPassed++
			continue
		}
		res.Violations = append(res.Violations, v)
	}

	res.Valid = len(res.Violations) == 0
	return res
}

// Check validates spec and pairs it with its verdict.
func Check(spec persona.Spec) Checked {
	return Checked{Spec: spec, Result: Validate(spec)}
}

func field(value any, tag string) bool {
	return validate.Var(value, tag) == nil
}

func oneOf(value string, allowed []string) bool {
	return slices.Contains(allowed, value)
}

func listing(values []string) string {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return "[" + strings.Join(sorted, ", ") + "]"
}

// Package confidence scores a validated persona and its generated artifacts.
//
// The score is a weighted sum of five sub-scores, each a ratio in [0, 1]:
//
//	validation    0.25  checks passed without warnings / checks run
//	completeness  0.30  populated fields / 13 tracked fields
//	test_coverage 0.15  scenarios / 8
//	guardrails    0.20  safety checks passed / 5
//	artifacts     0.10  artifact types present and non-empty / 4
//
// An invalid spec always scores 0.0 with grade F.
package confidence

import (
	"fmt"
	"math"
	"slices"

	"github.com/personaforge/personaforge/internal/generate"
	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/validation"
)

// Weights of each sub-score. They sum to 1.
const (
	WeightValidation   = 0.25
	WeightCompleteness = 0.30
	WeightTestCoverage = 0.15
	WeightGuardrails   = 0.20
	WeightArtifacts    = 0.10
)

// Grade is a letter band derived from the score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// bands are checked top to bottom; the first lower bound met wins.
var bands = []struct {
	min   float64
	grade Grade
}{
	{0.90, GradeA},
	{0.80, GradeB},
	{0.65, GradeC},
	{0.50, GradeD},
}

// GradeFor maps a score to its band.
func GradeFor(score float64) Grade {
	for _, b := range bands {
		if score >= b.min {
			return b.grade
		}
	}
	return GradeF
}

// Flag severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Flag is an advisory raised while scoring.
type Flag struct {
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

// Component is one weighted sub-score.
type Component struct {
	Weight        float64 `json:"weight" yaml:"weight"`
	RawScore      float64 `json:"raw_score" yaml:"raw_score"`
	WeightedScore float64 `json:"weighted_score" yaml:"weighted_score"`
	Passed        int     `json:"passed" yaml:"passed"`
	Total         int     `json:"total" yaml:"total"`
}

// Breakdown lists every sub-score in fixed order.
type Breakdown struct {
	Validation   Component `json:"validation" yaml:"validation"`
	Completeness Component `json:"completeness" yaml:"completeness"`
	TestCoverage Component `json:"test_coverage" yaml:"test_coverage"`
	Guardrails   Component `json:"guardrails" yaml:"guardrails"`
	Artifacts    Component `json:"artifacts" yaml:"artifacts"`
}

// Result is the confidence verdict for one build.
type Result struct {
	Score     float64    `json:"score" yaml:"score"`
	Grade     Grade      `json:"grade" yaml:"grade"`
	SpecValid bool       `json:"spec_valid" yaml:"spec_valid"`
	Breakdown *Breakdown `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
	Flags     []Flag     `json:"flags" yaml:"flags"`
}

// HighSeverityFlags returns only the flags with high severity.
func (r Result) HighSeverityFlags() []Flag {
	var out []Flag
	for _, f := range r.Flags {
		if f.Severity == SeverityHigh {
			out = append(out, f)
		}
	}
	return out
}

// Invalid is the fixed result for a spec that failed validation.
func Invalid(v validation.Result) Result {
	return Result{
		Score: 0,
		Grade: GradeF,
		Flags: []Flag{{
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Validation failed with %d error(s)", len(v.Violations)),
		}},
	}
}

// Score computes the confidence of a checked spec and its artifacts. It is a
// pure function: identical inputs give identical results.
func Score(c validation.Checked, artifacts persona.ArtifactSet) Result {
	if !c.Result.Valid {
		return Invalid(c.Result)
	}

	s := c.Spec
	var flags []Flag
	flag := func(severity, format string, args ...any) {
		flags = append(flags, Flag{Severity: severity, Message: fmt.Sprintf(format, args...)})
	}

	v := c.Result
	clean := v.ChecksPassed - len(v.Warnings)
	if len(v.Warnings) > 0 {
		flag(SeverityLow, "Validation has %d warning(s)", len(v.Warnings))
	}
	validationC := component(WeightValidation, clean, v.ChecksRun)

	// Identity gaps weigh more than missing behavioral detail.
	fields := []struct {
		path     string
		present  bool
		severity string
	}{
		{"persona.name", s.Name != "", SeverityMedium},
		{"persona.role", s.Role != "", SeverityMedium},
		{"persona.description", s.Description != "", SeverityLow},
		{"personality.traits", len(s.Personality.Traits) > 0, SeverityLow},
		{"personality.tone", s.Personality.Tone != "", SeverityLow},
		{"personality.communication_style", s.Personality.CommunicationStyle != "", SeverityLow},
		{"knowledge.domains", len(s.Knowledge.Domains) > 0, SeverityLow},
		{"knowledge.expertise_level", s.Knowledge.ExpertiseLevel != "", SeverityLow},
		{"behavior.greeting", s.Behavior.Greeting != "", SeverityLow},
		{"behavior.fallback", s.Behavior.Fallback != "", SeverityLow},
		{"behavior.escalation_trigger", s.Behavior.EscalationTrigger != "", SeverityLow},
		{"guardrails.forbidden_topics", len(s.Guardrails.ForbiddenTopics) > 0, SeverityLow},
		{"guardrails.pii_handling", s.Guardrails.PIIHandling != "", SeverityLow},
	}
	present := 0
	for _, f := range fields {
		if f.present {
			present++
			continue
		}
		flag(f.severity, "%s is missing or empty", f.path)
	}
	completenessC := component(WeightCompleteness, present, len(fields))

	scenarios := 0
	if a, ok := artifacts[persona.ArtifactTestSuite]; ok {
		if suite, err := generate.DecodeTestSuite(a); err == nil {
			scenarios = suite.TotalScenarios
		}
	}
	if scenarios < 5 {
		flag(SeverityMedium, "Only %d test scenarios generated (expected 5-8)", scenarios)
	}
	coverageC := component(WeightTestCoverage, min(scenarios, generate.FullCoverageScenarios), generate.FullCoverageScenarios)

	g := s.Guardrails
	guards := []bool{
		len(g.ForbiddenTopics) > 0,
		slices.Contains(persona.PIIPolicies, g.PIIHandling),
		g.MaxResponseTokens >= validation.MinResponseTokens && g.MaxResponseTokens <= validation.MaxResponseTokens,
		s.Behavior.EscalationTrigger != "",
		s.Behavior.Fallback != "",
	}
	guardrailsC := component(WeightGuardrails, count(guards), len(guards))
	if guardrailsC.RawScore < 0.6 {
		flag(SeverityHigh, "Weak guardrails: fewer than 60%% of safety checks pass")
	}

	built := 0
	for _, t := range persona.ArtifactTypes {
		if a, ok := artifacts[t]; ok && !a.Empty() {
			built++
			continue
		}
		flag(SeverityMedium, "%s artifact is missing", t)
	}
	artifactsC := component(WeightArtifacts, built, len(persona.ArtifactTypes))

	b := &Breakdown{
		Validation:   validationC,
		Completeness: completenessC,
		TestCoverage: coverageC,
		Guardrails:   guardrailsC,
		Artifacts:    artifactsC,
	}

	total := 0.0
	for _, part := range []Component{validationC, completenessC, coverageC, guardrailsC, artifactsC} {
		total += part.Weight * float64(part.Passed) / float64(part.Total)
	}
	score := round4(math.Max(0, math.Min(total, 1)))

	if flags == nil {
		flags = []Flag{}
	}
	return Result{
		Score:     score,
		Grade:     GradeFor(score),
		SpecValid: true,
		Breakdown: b,
		Flags:     flags,
	}
}

func component(weight float64, passed, total int) Component {
	raw := 0.0
	if total > 0 {
		raw = float64(passed) / float64(total)
	}
	return Component{
		Weight:        weight,
		RawScore:      round4(raw),
		WeightedScore: round4(raw * weight),
		Passed:        passed,
		Total:         total,
	}
}

func count(checks []bool) int {
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	return n
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

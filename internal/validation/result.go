// Package validation checks a normalized persona spec against a fixed, ordered
// checklist of structural and semantic rules. A spec that fails is a normal
// result, never an error.
package validation

import (
	"fmt"
	"strings"

	apperrors "github.com/personaforge/personaforge/internal/errors"
	"github.com/personaforge/personaforge/internal/persona"
)

// Severity distinguishes rule failures that invalidate a spec from advisories.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is a single failed rule.
type Violation struct {
	RuleID   string   `json:"rule_id" yaml:"rule_id"`
	Severity Severity `json:"severity" yaml:"severity"`
	Path     string   `json:"path" yaml:"path"`
	Message  string   `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.RuleID, v.Message)
}

// Result is the validation verdict. Violations is empty iff Valid.
type Result struct {
	Valid        bool        `json:"valid" yaml:"valid"`
	Violations   []Violation `json:"violations" yaml:"violations"`
	Warnings     []Violation `json:"warnings" yaml:"warnings"`
	ChecksRun    int         `json:"checks_run" yaml:"checks_run"`
	ChecksPassed int         `json:"checks_passed" yaml:"checks_passed"`
}

// ChecksFailed returns the number of rules that produced an error.
func (r Result) ChecksFailed() int {
	return r.ChecksRun - r.ChecksPassed
}

// Messages returns violation messages in rule order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Error()
	}
	return out
}

// FailureReason joins the violation messages for a failed record.
func (r Result) FailureReason() string {
	return strings.Join(r.Messages(), "; ")
}

// Checked pairs a spec with the verdict produced for it. Generators accept
// only a Checked, and refuse one whose Result is not valid.
type Checked struct {
	Spec   persona.Spec
	Result Result
}

// Require returns a PreconditionError unless the spec passed validation.
func (c Checked) Require(op string) error {
	if !c.Result.Valid {
		return &apperrors.PreconditionError{
			Op:     op,
			Reason: fmt.Sprintf("spec %q failed validation with %d violation(s)", c.Spec.Slug, len(c.Result.Violations)),
		}
	}
	return nil
}

// Package generate renders the artifacts of a validated persona: the system
// prompt, provider-specific API configs, and a scenario test suite. Every
// generator is template-driven and deterministic; none performs I/O.
package generate

import (
	"fmt"
	"strings"

	"github.com/personaforge/personaforge/internal/validation"
)

// SystemPrompt renders the platform-agnostic instruction text for a persona.
func SystemPrompt(c validation.Checked) (string, error) {
	if err := c.Require("SystemPrompt"); err != nil {
		return "", err
	}
	return renderPrompt(c), nil
}

func renderPrompt(c validation.Checked) string {
	s := c.Spec
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("You are %s, a %s.", s.Name, s.Role)
	if s.Description != "" {
		line("%s", s.Description)
	}
	line("")

	if p := s.Personality; len(p.Traits) > 0 {
		line("## Personality")
		line("Your core traits are: %s.", strings.Join(p.Traits, ", "))
		if p.CommunicationStyle != "" {
			line("Your communication style is %s.", p.CommunicationStyle)
		}
		line("Maintain a %s tone with %s formality.", p.Tone, p.Formality)
		line("")
	}

	if k := s.Knowledge; len(k.Domains) > 0 {
		line("## Expertise")
		line("You are an %s-level specialist in: %s.", k.ExpertiseLevel, strings.Join(k.Domains, ", "))
		if len(k.Limitations) > 0 {
			line("You cannot: %s.", strings.Join(k.Limitations, "; "))
		}
		line("")
	}

	bh := s.Behavior
	line("## Behavior")
	line("Keep responses %s.", bh.ResponseLength)
	if bh.Greeting != "" {
		line("When greeting users, say: %q", bh.Greeting)
	}
	if bh.Fallback != "" {
		line("When you don't know the answer, say: %q", bh.Fallback)
	}
	if bh.EscalationTrigger != "" {
		line("Escalate to a human when: %s.", bh.EscalationTrigger)
	}
	line("")

	g := s.Guardrails
	line("## Rules")
	if len(g.ForbiddenTopics) > 0 {
		line("NEVER discuss: %s.", strings.Join(g.ForbiddenTopics, ", "))
	}
	line("PII handling: %s.", g.PIIHandling)
	line("Keep responses under %d tokens.", g.MaxResponseTokens)
	b.WriteString("Always stay in character. Never reveal that you are an AI unless directly asked.")

	return b.String()
}

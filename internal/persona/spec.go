// Package persona defines the canonical persona model: the normalized Spec,
// its slug, the artifact types generated from it, the persisted Record, and the
// forward-only status state machine.
package persona

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SpecVersion is the schema version stamped on every normalized spec.
const SpecVersion = "1.0.0"

// Spec is the canonical persona specification produced by Normalize.
type Spec struct {
	SpecVersion string      `json:"spec_version" yaml:"spec_version"`
	Name        string      `json:"name" yaml:"name"`
	Slug        string      `json:"slug" yaml:"slug"`
	Role        string      `json:"role" yaml:"role"`
	Description string      `json:"description" yaml:"description"`
	Personality Personality `json:"personality" yaml:"personality"`
	Knowledge   Knowledge   `json:"knowledge" yaml:"knowledge"`
	Behavior    Behavior    `json:"behavior" yaml:"behavior"`
	Guardrails  Guardrails  `json:"guardrails" yaml:"guardrails"`
	Metadata    Metadata    `json:"metadata" yaml:"metadata"`
}

// Personality describes character and voice.
type Personality struct {
	Traits             []string `json:"traits" yaml:"traits"`
	CommunicationStyle string   `json:"communication_style" yaml:"communication_style"`
	Tone               string   `json:"tone" yaml:"tone"`
	Formality          string   `json:"formality" yaml:"formality"`
}

// Knowledge describes domain expertise and its limits.
type Knowledge struct {
	Domains        []string `json:"domains" yaml:"domains"`
	ExpertiseLevel string   `json:"expertise_level" yaml:"expertise_level"`
	Limitations    []string `json:"limitations" yaml:"limitations"`
}

// Behavior describes conversational defaults.
type Behavior struct {
	Greeting          string `json:"greeting" yaml:"greeting"`
	Fallback          string `json:"fallback" yaml:"fallback"`
	EscalationTrigger string `json:"escalation_trigger" yaml:"escalation_trigger"`
	ResponseLength    string `json:"response_length" yaml:"response_length"`
}

// Guardrails describes safety constraints.
type Guardrails struct {
	ForbiddenTopics   []string `json:"forbidden_topics" yaml:"forbidden_topics"`
	PIIHandling       string   `json:"pii_handling" yaml:"pii_handling"`
	MaxResponseTokens int      `json:"max_response_tokens" yaml:"max_response_tokens"`
}

// Metadata carries authorship information. It holds no timestamps so that the
// spec stays a pure function of the raw input.
type Metadata struct {
	Author string   `json:"author" yaml:"author"`
	Notes  []string `json:"notes" yaml:"notes"`
}

// Allowed values for enumerated fields, in display order.
var (
	Tones           = []string{"friendly", "professional", "casual", "formal", "empathetic", "authoritative", "playful", "neutral"}
	Formalities     = []string{"formal", "semi-formal", "casual"}
	ResponseLengths = []string{"concise", "moderate", "detailed"}
	ExpertiseLevels = []string{"beginner", "intermediate", "expert"}
	PIIPolicies     = []string{"never store", "anonymize", "encrypt"}
)

// Hash returns the hex sha256 of the spec's JSON encoding. Equal specs hash equally.
func (s Spec) Hash() string {
	data, err := json.Marshal(s)
	if err != nil {
		// Spec contains only strings, ints and string slices.
		panic("persona: marshal spec: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

package persona

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	apperrors "github.com/personaforge/personaforge/internal/errors"
)

// Defaults applied by Normalize when a field is absent.
const (
	DefaultRole               = "AI Assistant"
	DefaultCommunicationStyle = "clear and helpful"
	DefaultTone               = "professional"
	DefaultFormality          = "semi-formal"
	DefaultExpertiseLevel     = "expert"
	DefaultResponseLength     = "concise"
	DefaultFallback           = "I'm not sure about that. Let me connect you with someone who can help."
	DefaultEscalationTrigger  = "Request to speak with a human"
	DefaultPIIHandling        = "never store"
	DefaultMaxResponseTokens  = 1024
	DefaultAuthor             = "system"
)

// Raw is an untyped persona definition as decoded from JSON or YAML.
type Raw map[string]any

// Normalize coerces raw input into a canonical Spec. Key order never matters.
// It fails with a MalformedInputError when name is missing or blank, or when a
// present field has the wrong type. Unknown enum values fall back to defaults.
func Normalize(raw Raw) (Spec, error) {
	x := extractor{raw: raw}

	name := CleanName(x.str("name", ""))
	if x.err != nil {
		return Spec{}, x.err
	}
	if name == "" {
		return Spec{}, &apperrors.MalformedInputError{Field: "name", Reason: "is required and must not be blank"}
	}

	domains := x.list("knowledge_domains")
	if _, ok := raw["knowledge_domains"]; !ok {
		domains = x.list("domains")
	}

	spec := Spec{
		SpecVersion: SpecVersion,
		Name:        name,
		Slug:        Slugify(name),
		Role:        x.str("role", DefaultRole),
		Description: x.str("description", name+" is an AI assistant."),
		Personality: Personality{
			Traits:             x.list("traits"),
			CommunicationStyle: x.str("communication_style", DefaultCommunicationStyle),
			Tone:               x.enum("tone", Tones, DefaultTone),
			Formality:          x.enum("formality", Formalities, DefaultFormality),
		},
		Knowledge: Knowledge{
			Domains:        domains,
			ExpertiseLevel: x.enum("expertise_level", ExpertiseLevels, DefaultExpertiseLevel),
			Limitations:    x.list("limitations"),
		},
		Behavior: Behavior{
			Greeting:          x.str("greeting", fmt.Sprintf("Hi! I'm %s. How can I help you today?", name)),
			Fallback:          x.str("fallback", DefaultFallback),
			EscalationTrigger: x.str("escalation_trigger", DefaultEscalationTrigger),
			ResponseLength:    x.enum("response_length", ResponseLengths, DefaultResponseLength),
		},
		Guardrails: Guardrails{
			ForbiddenTopics:   x.list("forbidden_topics"),
			PIIHandling:       x.enum("pii_handling", PIIPolicies, DefaultPIIHandling),
			MaxResponseTokens: x.integer("max_response_tokens", DefaultMaxResponseTokens),
		},
		Metadata: Metadata{
			Author: x.str("author", DefaultAuthor),
			Notes:  x.list("notes"),
		},
	}
	if x.err != nil {
		return Spec{}, x.err
	}
	return spec, nil
}

// extractor pulls typed fields out of a Raw map, recording the first type error.
type extractor struct {
	raw Raw
	err error
}

func (x *extractor) fail(field, reason string) {
	if x.err == nil {
		x.err = &apperrors.MalformedInputError{Field: field, Reason: reason}
	}
}

// str returns the trimmed string at key, or def when absent, null or blank.
func (x *extractor) str(key, def string) string {
	v, ok := x.raw[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		x.fail(key, fmt.Sprintf("must be a string, got %T", v))
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// enum returns the lower-cased value at key if it is allowed, otherwise def.
func (x *extractor) enum(key string, allowed []string, def string) string {
	s := strings.ToLower(x.str(key, def))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}

// list accepts a list of strings or a comma-separated string. Blank items are dropped.
// The result is never nil.
func (x *extractor) list(key string) []string {
	out := []string{}
	v, ok := x.raw[key]
	if !ok || v == nil {
		return out
	}

	switch val := v.(type) {
	case string:
		for _, part := range strings.Split(val, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		for _, item := range val {
			if p := strings.TrimSpace(item); p != "" {
				out = append(out, p)
			}
		}
	case []any:
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				x.fail(fmt.Sprintf("%s[%d]", key, i), fmt.Sprintf("must be a string, got %T", item))
				return []string{}
			}
			if p := strings.TrimSpace(s); p != "" {
				out = append(out, p)
			}
		}
	default:
		x.fail(key, fmt.Sprintf("must be a list of strings or a comma-separated string, got %T", v))
	}
	return out
}

// integer accepts Go integers, integral floats and json.Number.
func (x *extractor) integer(key string, def int) int {
	v, ok := x.raw[key]
	if !ok || v == nil {
		return def
	}

	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case uint64:
		if n > math.MaxInt32 {
			x.fail(key, "is out of range")
			return def
		}
		return int(n)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			x.fail(key, "must be a whole number")
			return def
		}
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			x.fail(key, "must be a whole number")
			return def
		}
		return int(i)
	default:
		x.fail(key, fmt.Sprintf("must be an integer, got %T", v))
		return def
	}
}

// CleanName trims s and collapses its internal whitespace, the form in
// which names are stored.
func CleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

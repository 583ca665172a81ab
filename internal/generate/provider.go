package generate

import (
	"fmt"

	"github.com/personaforge/personaforge/internal/persona"
	"github.com/personaforge/personaforge/internal/validation"
)

// Provider selects the API dialect of a generated config.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderClaude Provider = "claude"
)

// ArtifactType returns the artifact type produced for the provider.
func (p Provider) ArtifactType() persona.ArtifactType {
	if p == ProviderClaude {
		return persona.ArtifactClaudeConfig
	}
	return persona.ArtifactOpenAIConfig
}

// toneTemperature maps tone to sampling temperature.
var toneTemperature = map[string]float64{
	"professional":  0.3,
	"formal":        0.2,
	"authoritative": 0.2,
	"neutral":       0.4,
	"friendly":      0.5,
	"empathetic":    0.5,
	"casual":        0.7,
	"playful":       0.8,
}

// lengthTokens maps response length to a max_tokens ceiling.
var lengthTokens = map[string]int{
	"concise":  512,
	"moderate": 1024,
	"detailed": 2048,
}

const (
	defaultTemperature = 0.4
	defaultLengthCap   = 1024
)

// ConfigMetadata identifies the persona a provider config was built for.
type ConfigMetadata struct {
	PersonaName    string `json:"persona_name"`
	PersonaSlug    string `json:"persona_slug"`
	PersonaRole    string `json:"persona_role"`
	Tone           string `json:"tone"`
	ResponseLength string `json:"response_length"`
}

// Message is a chat message in a provider request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIConfig is a Chat Completions request template.
type OpenAIConfig struct {
	Model            string         `json:"model"`
	Messages         []Message      `json:"messages"`
	Temperature      float64        `json:"temperature"`
	MaxTokens        int            `json:"max_tokens"`
	TopP             float64        `json:"top_p"`
	FrequencyPenalty float64        `json:"frequency_penalty"`
	PresencePenalty  float64        `json:"presence_penalty"`
	Metadata         ConfigMetadata `json:"metadata"`
}

// ClaudeConfig is a Messages API request template.
type ClaudeConfig struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	TopK        int            `json:"top_k"`
	System      string         `json:"system"`
	Messages    []Message      `json:"messages"`
	Metadata    ConfigMetadata `json:"metadata"`
}

// ProviderConfig builds the request template for provider. model is passed
// through verbatim from configuration; systemPrompt is embedded as-is.
func ProviderConfig(c validation.Checked, provider Provider, model, systemPrompt string) (any, error) {
	if err := c.Require("ProviderConfig"); err != nil {
		return nil, err
	}

	s := c.Spec
	tone := s.Personality.Tone
	length := s.Behavior.ResponseLength

	temperature, ok := toneTemperature[tone]
	if !ok {
		temperature = defaultTemperature
	}
	lengthCap, ok := lengthTokens[length]
	if !ok {
		lengthCap = defaultLengthCap
	}
	maxTokens := min(lengthCap, s.Guardrails.MaxResponseTokens)
	creative := tone == "casual" || tone == "playful" || tone == "friendly"

	meta := ConfigMetadata{
		PersonaName:    s.Name,
		PersonaSlug:    s.Slug,
		PersonaRole:    s.Role,
		Tone:           tone,
		ResponseLength: length,
	}

	switch provider {
	case ProviderOpenAI:
		topP, frequency := 0.8, 0.1
		if creative {
			topP = 0.9
		}
		if length == "concise" {
			frequency = 0.3
		}
		return OpenAIConfig{
			Model:            model,
			Messages:         []Message{{Role: "system", Content: systemPrompt}},
			Temperature:      temperature,
			MaxTokens:        maxTokens,
			TopP:             topP,
			FrequencyPenalty: frequency,
			PresencePenalty:  0.1,
			Metadata:         meta,
		}, nil
	case ProviderClaude:
		topK := 20
		if creative {
			topK = 40
		}
		return ClaudeConfig{
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopK:        topK,
			System:      systemPrompt,
			Messages:    []Message{},
			Metadata:    meta,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

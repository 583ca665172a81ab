package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/personaforge/personaforge/internal/generate"
	"github.com/personaforge/personaforge/internal/persona"
)

// Delivery directory file names.
const (
	ManifestFile         = "manifest.yaml"
	SpecFile             = "persona_spec.json"
	ValidationReportFile = "validation_report.json"
	ConfidenceFile       = "confidence.json"
	SummaryFile          = "delivery_summary.md"
)

var artifactFiles = map[persona.ArtifactType]string{
	persona.ArtifactSystemPrompt: "system_prompt.txt",
	persona.ArtifactOpenAIConfig: "openai_config.json",
	persona.ArtifactClaudeConfig: "claude_config.json",
	persona.ArtifactTestSuite:    "test_suite.json",
}

// ArtifactFile returns the file name an artifact is stored under.
func ArtifactFile(t persona.ArtifactType) string {
	return artifactFiles[t]
}

const promptPreviewLength = 500

// File is one rendered file of a delivery directory.
type File struct {
	Name string
	Data []byte
}

// Manifest indexes a delivery directory. It is the disk form of the record.
type Manifest struct {
	Record    persona.Record  `yaml:"record"`
	Mode      Mode            `yaml:"mode"`
	SpecHash  string          `yaml:"spec_hash"`
	Artifacts []ManifestEntry `yaml:"artifacts"`
	Files     []string        `yaml:"files"`
}

// ManifestEntry maps an artifact type to its file.
type ManifestEntry struct {
	Type persona.ArtifactType `yaml:"type"`
	ID   string               `yaml:"id,omitempty"`
	File string               `yaml:"file"`
}

// Manifest returns the manifest describing b.
func (b *Bundle) Manifest() Manifest {
	m := Manifest{
		Record:   b.Record,
		Mode:     b.Mode,
		SpecHash: b.SpecHash,
		Files:    []string{ManifestFile, SpecFile, ValidationReportFile, ConfidenceFile},
	}
	for _, a := range b.Artifacts.Ordered() {
		name := ArtifactFile(a.Type)
		m.Artifacts = append(m.Artifacts, ManifestEntry{Type: a.Type, ID: a.ID, File: name})
		m.Files = append(m.Files, name)
	}
	m.Files = append(m.Files, SummaryFile)
	return m
}

// EncodeManifest serializes a manifest as YAML.
func EncodeManifest(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses a manifest.yaml payload.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}

// Render produces every file of the delivery directory in a fixed order.
// The record must already carry its version.
func (b *Bundle) Render() ([]File, error) {
	manifest, err := EncodeManifest(b.Manifest())
	if err != nil {
		return nil, err
	}

	files := []File{{Name: ManifestFile, Data: manifest}}
	for _, doc := range []struct {
		name string
		v    any
	}{
		{SpecFile, b.Spec},
		{ValidationReportFile, b.Validation},
		{ConfidenceFile, b.Confidence},
	} {
		data, err := json.MarshalIndent(doc.v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", doc.name, err)
		}
		files = append(files, File{Name: doc.name, Data: data})
	}

	for _, a := range b.Artifacts.Ordered() {
		files = append(files, File{Name: ArtifactFile(a.Type), Data: a.Bytes()})
	}

	files = append(files, File{Name: SummaryFile, Data: []byte(b.summary(files))})
	return files, nil
}

func (b *Bundle) summary(files []File) string {
	r := b.Record
	var sb strings.Builder
	w := func(format string, args ...any) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}

	w("# Persona Delivery Summary: %s", r.Name)
	w("")
	w("**Slug:** %s", r.Slug)
	w("**Version:** v%d", r.Version)
	w("**Status:** %s", r.Status)
	w("**Role:** %s", r.Role)
	w("**Tone:** %s", b.Spec.Personality.Tone)
	w("**Date:** %s", r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	w("")
	w("## Confidence")
	w("- Score: %.4f", b.Confidence.Score)
	w("- Grade: %s", b.Confidence.Grade)
	w("")
	w("## Validation")
	w("- Valid: %t", b.Validation.Valid)
	w("- Errors: %d", len(b.Validation.Violations))
	w("- Warnings: %d", len(b.Validation.Warnings))

	if a, ok := b.Artifacts[persona.ArtifactTestSuite]; ok {
		if suite, err := generate.DecodeTestSuite(a); err == nil {
			w("")
			w("## Test Coverage")
			w("- Scenarios: %d", suite.TotalScenarios)
			w("- Categories: %s", strings.Join(suite.CategoryNames(), ", "))
		}
	}

	w("")
	w("## Artifacts")
	for _, f := range files {
		w("- %s", f.Name)
	}
	w("- %s", SummaryFile)

	if prompt, ok := b.Artifacts[persona.ArtifactSystemPrompt]; ok {
		preview := prompt.Text
		if runes := []rune(preview); len(runes) > promptPreviewLength {
			preview = string(runes[:promptPreviewLength]) + "..."
		}
		w("")
		w("## System Prompt Preview")
		w("```")
		w("%s", preview)
		w("```")
	}
	return sb.String()
}

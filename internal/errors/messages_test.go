// Tests for user-facing message helpers and domain error mapping.
package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestMissingPersonaInput(t *testing.T) {
	err := MissingPersonaInput()

	if err.Category != Argument {
		t.Errorf("Expected Argument category, got %v", err.Category)
	}
	if err.Usage == "" {
		t.Error("Expected non-empty usage")
	}
	if len(err.Remediation) == 0 {
		t.Error("Expected remediation steps")
	}
}

func TestInvalidInputFile(t *testing.T) {
	err := InvalidInputFile("/tmp/persona.json", &testError{})

	if err.Category != Argument {
		t.Errorf("Expected Argument category, got %v", err.Category)
	}
	if !strings.Contains(err.Message, "/tmp/persona.json") {
		t.Error("Expected message to contain path")
	}
}

func TestPersonaNotFound(t *testing.T) {
	err := PersonaNotFound("Support Bot")

	if err.Category != Prerequisite {
		t.Errorf("Expected Prerequisite category, got %v", err.Category)
	}
	if !strings.Contains(err.Remediation[0], `"Support Bot"`) {
		t.Errorf("Expected quoted name in remediation, got %q", err.Remediation[0])
	}
}

func TestConfigFileNotFound(t *testing.T) {
	err := ConfigFileNotFound("/path/to/config")

	if err.Category != Configuration {
		t.Errorf("Expected Configuration category, got %v", err.Category)
	}
	if !strings.Contains(err.Message, "/path/to/config") {
		t.Error("Expected message to contain path")
	}
}

func TestConfigParseError(t *testing.T) {
	err := ConfigParseError("/path/to/config", &testError{})

	if err.Category != Configuration {
		t.Errorf("Expected Configuration category, got %v", err.Category)
	}
	if len(err.Remediation) == 0 {
		t.Error("Expected remediation steps")
	}
}

func TestInvalidFlagCombination(t *testing.T) {
	err := InvalidFlagCombination("--file --name", "choose one input source")

	if err.Category != Argument {
		t.Errorf("Expected Argument category, got %v", err.Category)
	}
	if !strings.Contains(err.Message, "--file --name") {
		t.Error("Expected message to contain flags")
	}
}

func TestStoreUnavailable(t *testing.T) {
	err := StoreUnavailable("/data/personas.db", &testError{})

	if err.Category != Prerequisite {
		t.Errorf("Expected Prerequisite category, got %v", err.Category)
	}
}

func TestStoreNotConfigured(t *testing.T) {
	err := StoreNotConfigured("deploy")

	if err.Category != Prerequisite {
		t.Errorf("Expected Prerequisite category, got %v", err.Category)
	}
	if !strings.Contains(err.Message, "deploy requires a persona database") {
		t.Errorf("Unexpected message: %s", err.Message)
	}
}

func TestFromDomain(t *testing.T) {
	tests := map[string]struct {
		err          error
		wantCategory ErrorCategory
		wantNil      bool
	}{
		"nil": {
			err:     nil,
			wantNil: true,
		},
		"malformed input": {
			err:          &MalformedInputError{Field: "name", Reason: "is required"},
			wantCategory: Argument,
		},
		"not found": {
			err:          fmt.Errorf("latest: %w", &NotFoundError{Slug: "support-bot"}),
			wantCategory: Prerequisite,
		},
		"storage write": {
			err:          &StorageWriteError{Backend: BackendRelational, Slug: "a", Version: 1, Err: &testError{}},
			wantCategory: Runtime,
		},
		"version conflict": {
			err:          &VersionConflictError{Slug: "a", Version: 3},
			wantCategory: Runtime,
		},
		"precondition": {
			err:          &PreconditionError{Op: "generate", Reason: "spec invalid"},
			wantCategory: Runtime,
		},
		"already a CLIError": {
			err:          NewConfigError("bad"),
			wantCategory: Configuration,
		},
		"plain error": {
			err:          &testError{},
			wantCategory: Runtime,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := FromDomain(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Errorf("Expected nil, got %v", got)
				}
				return
			}
			if got.Category != tc.wantCategory {
				t.Errorf("Expected %v, got %v", tc.wantCategory, got.Category)
			}
		})
	}
}

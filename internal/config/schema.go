package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ConfigValueType defines the expected type for a configuration value.
type ConfigValueType int

const (
	TypeBool ConfigValueType = iota
	TypeInt
	TypeString
	TypeEnum
)

// String returns the string representation of ConfigValueType.
func (t ConfigValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ConfigKeySchema defines a known configuration key with its expected type and validation rules.
type ConfigKeySchema struct {
	Path          string          // Key name as written in config.json
	Type          ConfigValueType // Expected value type for validation
	AllowedValues []string        // Valid values for enum types (empty for non-enums)
	Min, Max      *int            // Inclusive bounds for int types (nil means unbounded)
	Description   string          // Human-readable description for help text
}

func bound(n int) *int { return &n }

// KnownKeys is the registry of all known configuration keys with their schemas.
var KnownKeys = map[string]ConfigKeySchema{
	"output_dir": {
		Path:        "output_dir",
		Type:        TypeString,
		Description: "Root directory for versioned persona bundles",
	},
	"database_path": {
		Path:        "database_path",
		Type:        TypeString,
		Description: "SQLite database file for deployed personas (empty disables deploy)",
	},
	"state_dir": {
		Path:        "state_dir",
		Type:        TypeString,
		Description: "Directory for run history",
	},
	"openai_model": {
		Path:        "openai_model",
		Type:        TypeString,
		Description: "Model name written into the OpenAI provider config",
	},
	"claude_model": {
		Path:        "claude_model",
		Type:        TypeString,
		Description: "Model name written into the Claude provider config",
	},
	"max_retries": {
		Path:        "max_retries",
		Type:        TypeInt,
		Min:         bound(0),
		Max:         bound(10),
		Description: "Retries after a retryable storage failure",
	},
	"history_max_entries": {
		Path:        "history_max_entries",
		Type:        TypeInt,
		Min:         bound(0),
		Description: "Maximum number of run history entries to retain (0 keeps all)",
	},
	"log_level": {
		Path:          "log_level",
		Type:          TypeEnum,
		AllowedValues: []string{"debug", "info", "warn", "error"},
		Description:   "Minimum log level",
	},
	"log_format": {
		Path:          "log_format",
		Type:          TypeEnum,
		AllowedValues: []string{"json", "console"},
		Description:   "Log encoding",
	},
	"show_progress": {
		Path:        "show_progress",
		Type:        TypeBool,
		Description: "Show stage progress on stderr",
	},
}

// SortedKeys returns the known key names in lexical order.
func SortedKeys() []string {
	keys := make([]string, 0, len(KnownKeys))
	for k := range KnownKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ErrUnknownKey is returned when trying to access an unknown configuration key.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return "unknown configuration key: " + e.Key
}

// GetKeySchema returns the schema for a known configuration key.
// Returns ErrUnknownKey if the key is not in the registry.
func GetKeySchema(path string) (ConfigKeySchema, error) {
	schema, ok := KnownKeys[path]
	if !ok {
		return ConfigKeySchema{}, ErrUnknownKey{Key: path}
	}
	return schema, nil
}

// ParsedValue represents a configuration value after type inference and validation.
type ParsedValue struct {
	Raw    string      // Original string input from user
	Parsed interface{} // Value converted to correct type
	Type   ConfigValueType
}

// ValidateValue validates a value against the schema for a given key.
// Returns the parsed value or an error with details about what's wrong.
func ValidateValue(key, value string) (ParsedValue, error) {
	schema, err := GetKeySchema(key)
	if err != nil {
		return ParsedValue{}, err
	}
	return validateAgainstSchema(schema, value)
}

// validateAgainstSchema validates a value against a specific schema.
func validateAgainstSchema(schema ConfigKeySchema, value string) (ParsedValue, error) {
	switch schema.Type {
	case TypeBool:
		return parseBoolValue(value)
	case TypeInt:
		return parseIntValue(schema, value)
	case TypeEnum:
		return parseEnumValue(schema, value)
	case TypeString:
		return ParsedValue{Raw: value, Parsed: value, Type: TypeString}, nil
	default:
		return ParsedValue{}, fmt.Errorf("unsupported type: %v", schema.Type)
	}
}

// parseBoolValue parses and validates a boolean value.
func parseBoolValue(value string) (ParsedValue, error) {
	switch strings.ToLower(value) {
	case "true":
		return ParsedValue{Raw: value, Parsed: true, Type: TypeBool}, nil
	case "false":
		return ParsedValue{Raw: value, Parsed: false, Type: TypeBool}, nil
	default:
		return ParsedValue{}, fmt.Errorf("invalid boolean: %q (expected true or false)", value)
	}
}

// parseIntValue parses an integer and checks it against the schema bounds.
func parseIntValue(schema ConfigKeySchema, value string) (ParsedValue, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid integer: %q", value)
	}
	if schema.Min != nil && n < *schema.Min {
		return ParsedValue{}, fmt.Errorf("%s must be at least %d, got %d", schema.Path, *schema.Min, n)
	}
	if schema.Max != nil && n > *schema.Max {
		return ParsedValue{}, fmt.Errorf("%s must be at most %d, got %d", schema.Path, *schema.Max, n)
	}
	return ParsedValue{Raw: value, Parsed: n, Type: TypeInt}, nil
}

// parseEnumValue validates a value against allowed enum options.
func parseEnumValue(schema ConfigKeySchema, value string) (ParsedValue, error) {
	if slices.Contains(schema.AllowedValues, value) {
		return ParsedValue{Raw: value, Parsed: value, Type: TypeEnum}, nil
	}
	return ParsedValue{}, fmt.Errorf(
		"invalid value: %q (valid options: %s)",
		value,
		strings.Join(schema.AllowedValues, ", "),
	)
}

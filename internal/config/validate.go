package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error with context
type ValidationError struct {
	FilePath string
	Line     int
	Column   int
	Message  string
	Field    string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s': %s", e.FilePath, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// ValidateJSONSyntax checks if the JSON config file has valid syntax.
// Returns nil if valid, or a ValidationError with line/column information if invalid.
func ValidateJSONSyntax(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Missing file is not an error - will use defaults
		}
		if os.IsPermission(err) {
			return &ValidationError{
				FilePath: filePath,
				Message:  "permission denied",
			}
		}
		return &ValidationError{
			FilePath: filePath,
			Message:  err.Error(),
		}
	}
	return ValidateJSONSyntaxFromBytes(data, filePath)
}

// ValidateJSONSyntaxFromBytes checks if JSON data has valid syntax and is an object.
func ValidateJSONSyntaxFromBytes(data []byte, filePath string) error {
	// Empty data is valid - will use defaults
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var doc map[string]json.RawMessage
	err := json.Unmarshal(data, &doc)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, column := lineColumn(data, syntaxErr.Offset)
		return &ValidationError{
			FilePath: filePath,
			Line:     line,
			Column:   column,
			Message:  syntaxErr.Error(),
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{
			FilePath: filePath,
			Message:  "config must be a JSON object",
		}
	}

	return &ValidationError{
		FilePath: filePath,
		Message:  err.Error(),
	}
}

var structValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
	})
	return v
}()

// ValidateConfigValues validates configuration values against expected types and constraints.
// Returns nil if valid, or a ValidationError naming the first offending key.
func ValidateConfigValues(cfg *Configuration, filePath string) error {
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fe := verrs[0]
	return &ValidationError{
		FilePath: filePath,
		Field:    fe.Field(),
		Message:  describeTag(fe),
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int64) (line, column int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	prefix := data[:offset]
	line = bytes.Count(prefix, []byte("\n")) + 1
	column = int(offset) - 1 - bytes.LastIndexByte(prefix, '\n')
	if column < 1 {
		column = 1
	}
	return line, column
}

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// MissingPersonaInput is returned when a command receives no persona definition.
func MissingPersonaInput() *CLIError {
	return NewArgumentErrorWithUsage(
		"no persona input provided",
		"personaforge build --file persona.json | --name <name> [--role <role>] [--description <text>]",
		"Pass a JSON or YAML file with --file (use '-' for stdin)",
		"Or pass at least --name for a minimal persona",
	)
}

// InvalidInputFile is returned when a persona input file cannot be decoded.
func InvalidInputFile(path string, err error) *CLIError {
	return &CLIError{
		Category: Argument,
		Message:  fmt.Sprintf("cannot read persona input %s: %v", path, err),
		Remediation: []string{
			"Check that the file is a JSON or YAML mapping at the top level",
			"Use .yaml/.yml extensions for YAML input",
		},
		cause: err,
	}
}

// PersonaNotFound is returned when latest/versions finds nothing for a name.
func PersonaNotFound(name string) *CLIError {
	return NewPrerequisiteError(
		fmt.Sprintf("no versions stored for persona %q", name),
		"Build it first: personaforge build --name "+quote(name),
		"List known personas with: personaforge list",
	)
}

// ConfigFileNotFound is returned when an explicitly requested config file is missing.
func ConfigFileNotFound(path string) *CLIError {
	return NewConfigError(
		fmt.Sprintf("config file not found: %s", path),
		"Create the file or omit --config to use defaults",
	)
}

// ConfigParseError is returned when a config file cannot be parsed or validated.
func ConfigParseError(path string, err error) *CLIError {
	return &CLIError{
		Category: Configuration,
		Message:  fmt.Sprintf("failed to load config %s: %v", path, err),
		Remediation: []string{
			"Check the file is valid JSON",
			"Run 'personaforge config show' to see effective values",
		},
		cause: err,
	}
}

// InvalidFlagCombination is returned for mutually exclusive flags.
func InvalidFlagCombination(flags, reason string) *CLIError {
	return NewArgumentError(fmt.Sprintf("invalid flag combination %s: %s", flags, reason))
}

// StoreUnavailable is returned when the relational store cannot be opened.
func StoreUnavailable(path string, err error) *CLIError {
	return &CLIError{
		Category: Prerequisite,
		Message:  fmt.Sprintf("cannot open persona database %s: %v", path, err),
		Remediation: []string{
			"Check that the parent directory exists and is writable",
			"Override the location with PERSONAFORGE_DATABASE_PATH",
		},
		cause: err,
	}
}

// StoreNotConfigured is returned when a command needs the relational store
// but database_path is empty.
func StoreNotConfigured(command string) *CLIError {
	return NewPrerequisiteError(
		fmt.Sprintf("%s requires a persona database, but database_path is empty", command),
		"Set one with: personaforge config set database_path ./output/personas.db",
		"Or export PERSONAFORGE_DATABASE_PATH",
	)
}

// FromDomain maps a pipeline error to a CLIError with remediation.
// Errors that are already CLIErrors are returned as-is.
func FromDomain(err error) *CLIError {
	if err == nil {
		return nil
	}
	if cliErr := AsCLIError(err); cliErr != nil {
		return cliErr
	}

	var (
		malformed *MalformedInputError
		notFound  *NotFoundError
		conflict  *VersionConflictError
		storage   *StorageWriteError
		precond   *PreconditionError
	)
	switch {
	case errors.As(err, &malformed):
		return Wrap(err, Argument, fmt.Sprintf("Provide a valid value for %q", malformed.Field))
	case errors.As(err, &notFound):
		e := PersonaNotFound(notFound.Slug)
		e.cause = err
		return e
	case errors.As(err, &conflict):
		return Wrap(err, Runtime,
			"This indicates concurrent writers outside personaforge; do not retry blindly",
			"Inspect the output directory for "+conflict.Slug)
	case errors.As(err, &storage):
		return Wrap(err, Runtime,
			"Re-run the command; storage errors are safe to retry",
			"Check free disk space and permissions on the output directory")
	case errors.As(err, &precond):
		return Wrap(err, Runtime, "Please report this as a bug")
	default:
		return Wrap(err, Runtime)
	}
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t'\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

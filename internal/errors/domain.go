package errors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the domain error types.
var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrPrecondition    = errors.New("precondition violated")
	ErrVersionConflict = errors.New("version conflict")
	ErrStorageWrite    = errors.New("storage write failed")
	ErrNotFound        = errors.New("persona not found")
)

// MalformedInputError reports raw input that cannot be normalized.
// No partial state exists when it is returned.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Reason)
}

// Is matches ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// PreconditionError reports internal misuse, such as generating artifacts
// from a spec that did not pass validation. It is a programming error.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed in %s: %s", e.Op, e.Reason)
}

// Is matches ErrPrecondition.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// VersionConflictError means a version already existed when the engine tried
// to claim it. Seeing one indicates a broken critical section; it is never retried.
type VersionConflictError struct {
	Slug    string
	Version int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: %s v%d already exists", e.Slug, e.Version)
}

// Is matches ErrVersionConflict.
func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// Storage backends named in StorageWriteError.
const (
	BackendDisk       = "disk"
	BackendRelational = "relational"
)

// StorageWriteError wraps a disk or relational write failure. Callers may retry.
type StorageWriteError struct {
	Backend string
	Slug    string
	Version int
	Err     error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("%s write failed for %s v%d: %v", e.Backend, e.Slug, e.Version, e.Err)
}

// Unwrap returns the underlying I/O or driver error.
func (e *StorageWriteError) Unwrap() error { return e.Err }

// AttributeWrite names the record of a StorageWriteError in err that was
// raised without one, such as a failed BEGIN or COMMIT. Other errors pass
// through unchanged.
func AttributeWrite(err error, slug string, version int) error {
	var swe *StorageWriteError
	if errors.As(err, &swe) && swe.Slug == "" {
		swe.Slug = slug
		swe.Version = version
	}
	return err
}

// Is matches ErrStorageWrite.
func (e *StorageWriteError) Is(target error) bool { return target == ErrStorageWrite }

// NotFoundError reports a lookup for a persona with no stored versions, or
// for a specific Version when it is non-zero.
type NotFoundError struct {
	Slug    string
	Version int
}

func (e *NotFoundError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("persona %q version %d not found", e.Slug, e.Version)
	}
	return fmt.Sprintf("persona %q not found", e.Slug)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageWrite) && !errors.Is(err, ErrVersionConflict)
}

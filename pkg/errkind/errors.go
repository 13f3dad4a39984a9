// Package errkind defines the error categories the tool reports and the
// process exit code each one maps to.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies an error for exit-code mapping and summary output.
type Kind int

const (
	// Internal is an invariant violation inside the tool itself.
	Internal Kind = iota
	// InvalidInput covers malformed upgrades JSON and bad CLI combinations.
	InvalidInput
	// RegistryUnavailable means retries against a registry were exhausted.
	RegistryUnavailable
	// MalformedBundle means a bundle's annotations and referrers disagree.
	MalformedBundle
	// UpgradeEndpointNotFound means an upgrade's old or new digest is not in
	// the repository's tag history.
	UpgradeEndpointNotFound
	// PipelineFileUnreadable means a pipeline file could not be read.
	PipelineFileUnreadable
	// PipelineFileUnparseable means a pipeline file is not valid YAML.
	PipelineFileUnparseable
	// MigrationFailed means a migration script exited non-zero or timed out.
	MigrationFailed
	// YAMLSurgeryConflict means a semantic edit precondition was violated.
	YAMLSurgeryConflict
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case RegistryUnavailable:
		return "RegistryUnavailable"
	case MalformedBundle:
		return "MalformedBundle"
	case UpgradeEndpointNotFound:
		return "UpgradeEndpointNotFound"
	case PipelineFileUnreadable:
		return "PipelineFileUnreadable"
	case PipelineFileUnparseable:
		return "PipelineFileUnparseable"
	case MigrationFailed:
		return "MigrationFailed"
	case YAMLSurgeryConflict:
		return "YAMLSurgeryConflict"
	default:
		return "Internal"
	}
}

// ExitCode returns the process exit code for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case InvalidInput, PipelineFileUnreadable, PipelineFileUnparseable:
		return 1
	case RegistryUnavailable, MalformedBundle, UpgradeEndpointNotFound:
		return 2
	case MigrationFailed:
		return 3
	case YAMLSurgeryConflict:
		return 1
	default:
		return 4
	}
}

// Error is an error tagged with a Kind. It wraps an underlying cause when
// there is one.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ExitCodeOf returns the exit code for err, 0 for nil.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

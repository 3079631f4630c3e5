// Package errs defines the error taxonomy shared across music-tools
// components, so callers can distinguish per-file failures (recovered
// locally) from per-operation failures (surfaced to the caller).
package errs

import "fmt"

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindUser       Kind = "user_error"
	KindFile       Kind = "file_error"
	KindStore      Kind = "store_error"
	KindIntegrity  Kind = "integrity_error"
	KindValidation Kind = "validation_error"
)

// Error is the common wrapper: every surfaced error carries a stable
// Kind plus a human-readable message, with the original cause kept
// internal via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

// User wraps a bad-path / bad-argument error. Never retried.
func User(msg string, cause error) *Error { return newErr(KindUser, msg, cause) }

// File wraps a per-file error (UnsupportedFormat, CorruptFile, IoError,
// per-file timeout). Logged and counted; the caller's scan continues.
func File(msg string, cause error) *Error { return newErr(KindFile, msg, cause) }

// Store wraps a transaction/constraint/IO failure on the persistence
// layer. Transient failures are retried by the store itself before
// this is returned.
func Store(msg string, cause error) *Error { return newErr(KindStore, msg, cause) }

// Integrity wraps a fatal, never-retried condition: schema mismatch
// with no forward migration, corrupt store at open, or a deletion
// session already active.
func Integrity(msg string, cause error) *Error { return newErr(KindIntegrity, msg, cause) }

// Validation wraps a DeletionGroup that produced Error-level
// ValidationResults. The engine never mutates state when this occurs.
func Validation(msg string) *Error { return newErr(KindValidation, msg, nil) }

// Sentinel per-file classification errors returned by the Audio
// Metadata Reader (spec §4.1).
var (
	ErrUnsupportedFormat = fmt.Errorf("unsupported audio format")
	ErrCorruptFile       = fmt.Errorf("corrupt audio file")
)

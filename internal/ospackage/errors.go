package ospackage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInconsistentTransaction is returned when a solver transaction names a
// package that is not in the catalog it was computed from.
var ErrInconsistentTransaction = errors.New("transaction entry not present in catalog")

// NetworkError is a transient transport failure: connection reset, timeout,
// 5xx or 429 responses.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: transient HTTP status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient marks the error as retryable.
func (e *NetworkError) Transient() bool { return true }

// PermanentHTTPError is a non-retryable 4xx response.
type PermanentHTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *PermanentHTTPError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// DecompressionError means the payload could not be decoded by its codec.
type DecompressionError struct {
	Source string
	Format string
	Err    error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompressing %s (%s): %v", e.Source, e.Format, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// UnsupportedCompressionError means the detected format has no registered handler.
type UnsupportedCompressionError struct {
	Source string
	Format string
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("unsupported compression %q for %s", e.Format, e.Source)
}

// CodecUnavailableError means an optional codec was requested but this
// build does not include it.
type CodecUnavailableError struct {
	Source string
	Format string
}

func (e *CodecUnavailableError) Error() string {
	return fmt.Sprintf("optional codec %q unavailable in this build (needed for %s)", e.Format, e.Source)
}

// MalformedMetadataError reports repository metadata that lacks required
// attributes or cannot be parsed.
type MalformedMetadataError struct {
	Source string
	Line   int // 0 when not line oriented
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed metadata %s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed metadata %s: %s", e.Source, e.Reason)
}

// IntegrityError is a checksum mismatch on a fetched file.
type IntegrityError struct {
	Source   string
	Expected Checksum
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s:%s",
		e.Source, e.Expected, e.Expected.Algorithm, e.Actual)
}

// MissingProviderError means a requested root has no catalog entry at all.
type MissingProviderError struct {
	Names []string
}

func (e *MissingProviderError) Error() string {
	return fmt.Sprintf("requested package(s) not found in any repository: %s", strings.Join(e.Names, ", "))
}

// UnresolvedDependencyError means a dependency expression matched nothing
// in the catalog. On the DEB side this includes dependencies on virtual
// packages, which are not resolved through Provides.
type UnresolvedDependencyError struct {
	Ecosystem  Ecosystem
	Dependency string
	RequiredBy string
	Details    []string
}

func (e *UnresolvedDependencyError) Error() string {
	msg := fmt.Sprintf("%s: nothing provides %s needed by %s", e.Ecosystem, e.Dependency, e.RequiredBy)
	if len(e.Details) > 1 {
		msg += fmt.Sprintf(" (and %d more unresolved)", len(e.Details)-1)
	}
	return msg
}

// UnsatisfiableError carries the solver's explanation of why no consistent
// install set exists.
type UnsatisfiableError struct {
	Ecosystem   Ecosystem
	Explanation string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("%s dependency solve failed: %s", e.Ecosystem, e.Explanation)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

// IsResolutionError reports whether err belongs to the pre-download
// resolution stage.
func IsResolutionError(err error) bool {
	var (
		missing *MissingProviderError
		unres   *UnresolvedDependencyError
		unsat   *UnsatisfiableError
	)
	return errors.As(err, &missing) || errors.As(err, &unres) || errors.As(err, &unsat)
}

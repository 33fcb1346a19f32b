package condacore

import (
	"errors"
	"strings"
)

// Error is the condacore error domain type.
//
// Errors coming from condacore components should be able to be inspected
// as ([errors.As]) an *Error at some point in the error chain.
//
// Implementers of condacore components should create an Error at the
// system boundary (network request, disk I/O, subprocess invocation) and
// intermediate layers should not wrap in another Error except to add
// additional [ErrorKind] information. That is to say, use [fmt.Errorf]
// with a "%w" verb in preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

// Assert this implements all the cool features.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrParse,
		ErrChannel,
		ErrPackagesNotFound,
		ErrUnsatisfiable,
		ErrPrefix,
		ErrTransaction,
		ErrLink,
		ErrCorruptedEnvironment,
		ErrIntegrity,
		ErrInternal:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	switch kind {
	case ErrRetryable:
		return errors.Is(e, ErrChannel)
	default:
	}
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents classes of errors to be checked against, per §7 of
// the specification.
//
// If an error is unsure which kind to use, ErrInternal should be used.
type ErrorKind string

// Defined error kinds.
var (
	// ErrParse is a malformed MatchSpec, URL, or version string.
	ErrParse = ErrorKind("parse")
	// ErrChannel is an unreachable channel, bad repodata, or
	// authentication failure. Recovered locally by retry; surfaced after
	// remote_max_retries is exhausted.
	ErrChannel = ErrorKind("channel")
	// ErrPackagesNotFound means one or more requested specs have no
	// candidate in any channel for the target subdir. Fatal for the
	// request.
	ErrPackagesNotFound = ErrorKind("packages not found")
	// ErrUnsatisfiable means candidates exist but no assignment
	// satisfies all constraints. Fatal; carries structured conflict
	// chains.
	ErrUnsatisfiable = ErrorKind("unsatisfiable")
	// ErrPrefix means the prefix does not exist, is not a conda
	// environment, is not writable, or is locked.
	ErrPrefix = ErrorKind("prefix")
	// ErrTransaction means the verification stage detected a problem
	// (disk, permission, path conflict). Fatal; no filesystem mutation
	// has occurred.
	ErrTransaction = ErrorKind("transaction")
	// ErrLink is a mid-execution link failure; triggers rollback.
	ErrLink = ErrorKind("link")
	// ErrCorruptedEnvironment means rollback itself failed, leaving an
	// incomplete prefix state.
	ErrCorruptedEnvironment = ErrorKind("corrupted environment")
	// ErrIntegrity is a cached or downloaded package checksum mismatch.
	ErrIntegrity = ErrorKind("integrity")
	// ErrInternal is a non-specific internal error.
	ErrInternal = ErrorKind("internal")

	// ErrRetryable should only be used for an [Is] comparison. It's true
	// for errors that a caller may reasonably retry (currently, ErrChannel).
	ErrRetryable = ErrorKind("retryable")
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}

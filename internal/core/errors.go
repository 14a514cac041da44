package core

// errors.go defines the batch-level error taxonomy of the import pipeline.
//
// Row-level problems are FieldError values and never appear here. Only
// structural decode failures, session misuse and commit failures are errors
// of the whole operation.

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors. Match with errors.Is.
var (
	ErrUnknownSchema     = errors.New("unknown record schema")
	ErrSessionNotFound   = errors.New("import session not found")
	ErrInvalidTransition = errors.New("invalid import session transition")
	ErrCommitInFlight    = errors.New("commit already in progress for this import session")
	ErrCollectionBusy    = errors.New("another import is committing to this collection")
	ErrNothingToCommit   = errors.New("import session has no valid rows to commit")
	ErrTooManySessions   = errors.New("too many open import sessions")
	ErrTooManyCommits    = errors.New("too many concurrent commits, please try again later")
	ErrFileTooLarge      = errors.New("file too large")
)

// DecodeReason classifies a structural decode failure.
type DecodeReason string

const (
	// MalformedHeader covers an empty header line, blank header names and
	// duplicate header names.
	MalformedHeader DecodeReason = "malformed header"
	// MalformedInput covers text the delimited reader cannot tokenize.
	MalformedInput DecodeReason = "malformed input"
)

// DecodeError is a fatal problem with the structure of the uploaded text.
// No partial classification is produced when decoding fails.
type DecodeError struct {
	Reason DecodeReason
	Line   int    // 1-based source line, 0 if unknown
	Detail string // What exactly was wrong
}

func (e *DecodeError) Error() string {
	msg := "decode: " + string(e.Reason)
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches any DecodeError with the same reason, so callers can write
// errors.Is(err, &DecodeError{Reason: MalformedHeader}).
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func malformedHeader(line int, format string, args ...any) error {
	return errors.WithHint(
		&DecodeError{Reason: MalformedHeader, Line: line, Detail: fmt.Sprintf(format, args...)},
		"The first line must list unique, non-empty column names",
	)
}

// CommitError reports that the commit executor rejected a confirmed batch.
// The session returns to the classified state so the operator can retry.
type CommitError struct {
	SessionID string
	Attempt   int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit import %s (attempt %d): %v", e.SessionID, e.Attempt, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same batch could succeed.
// Context cancellation and deadlines are treated as transient.
func (e *CommitError) Retryable() bool {
	var permanent interface{ Permanent() bool }
	if errors.As(e.Err, &permanent) && permanent.Permanent() {
		return false
	}
	return true
}

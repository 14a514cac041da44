// Package store persists committed import batches and reads them back for
// export.
//
// Postgres is the production backend. Memory keeps everything in process and
// backs tests and DATABASE_URL-less development runs.
package store

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrAlreadyCommitted is returned when a session's batch has been stored
// before. Retrying can not succeed.
var ErrAlreadyCommitted = errors.New("import session already committed")

// BatchSummary is one row of commit history.
type BatchSummary struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Schema      string    `json:"schema"`
	Collection  string    `json:"collection"`
	Records     int       `json:"records"`
	Attempt     int       `json:"attempt"`
	CommittedAt time.Time `json:"committedAt"`
}

// permanentError marks failures that a retry of the same batch can not fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Permanent() bool { return true }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

package core

import (
	"time"

	"github.com/cockroachdb/errors"
)

// State is the lifecycle stage of an import session.
//
//	Idle -> Decoding -> Classified -> Confirming -> Committed
//	                 \-> Idle (decode failure)    \-> Classified (commit failure)
//	                    Classified -> Cancelled
//
// Decoding and Confirming are transient. Classified is the only state in
// which the operator may act.
type State string

const (
	StateIdle       State = "idle"
	StateDecoding   State = "decoding"
	StateClassified State = "classified"
	StateConfirming State = "confirming"
	StateCommitted  State = "committed"
	StateCancelled  State = "cancelled"
)

// transitions lists every legal state change. Anything else is rejected.
var transitions = map[State][]State{
	StateIdle:       {StateDecoding},
	StateDecoding:   {StateClassified, StateIdle},
	StateClassified: {StateConfirming, StateCancelled},
	StateConfirming: {StateCommitted, StateClassified},
}

// CanTransition reports whether from -> to is a legal session transition.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled
}

// ImportSession is the unit of work for one upload. It is owned by the
// Coordinator; callers only ever see Preview snapshots.
type ImportSession struct {
	ID        string
	Schema    RecordSchema
	FileName  string
	State     State
	Result    ClassificationResult
	CreatedAt time.Time
	UpdatedAt time.Time
	Attempts  int   // Commit attempts so far
	LastError error // Most recent commit failure, nil after success
}

func (s *ImportSession) transition(to State, at time.Time) error {
	if !CanTransition(s.State, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", s.State, to)
	}
	s.State = to
	s.UpdatedAt = at
	return nil
}

// Preview is a read-only snapshot of a session for the preview presenter.
type Preview struct {
	SessionID string
	Schema    RecordSchema
	FileName  string
	State     State
	Counts    Counts
	Result    ClassificationResult
	CreatedAt time.Time
	Attempts  int
	LastError string       // Technical text of the last commit failure
	Failure   *UserMessage // Operator-facing form of LastError
}

func (s *ImportSession) preview() *Preview {
	p := &Preview{
		SessionID: s.ID,
		Schema:    s.Schema.clone(),
		FileName:  s.FileName,
		State:     s.State,
		Counts:    s.Result.Counts(),
		Result:    s.Result.clone(),
		CreatedAt: s.CreatedAt,
		Attempts:  s.Attempts,
	}
	if s.LastError != nil {
		p.LastError = s.LastError.Error()
		msg := MapError(s.LastError)
		p.Failure = &msg
	}
	return p
}

// CommitBatch is what the commit executor receives: an immutable copy of the
// valid records of one session, and nothing from the invalid set.
type CommitBatch struct {
	ID         string
	SessionID  string
	Schema     string
	Collection string
	Records    []Record
	Attempt    int
}

// CommitReceipt reports a successful commit.
type CommitReceipt struct {
	BatchID     string        `json:"batchId"`
	SessionID   string        `json:"sessionId"`
	Schema      string        `json:"schema"`
	Collection  string        `json:"collection"`
	Committed   int           `json:"committed"`
	Skipped     int           `json:"skipped"` // Invalid rows left out of the batch
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	CommittedAt time.Time     `json:"committedAt"`
}

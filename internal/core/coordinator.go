package core

// coordinator.go drives import sessions through preview and confirmation.
//
// The flow for one upload:
//
//  1. Open decodes and classifies the file synchronously. The session is
//     only retained once it reaches StateClassified.
//  2. The presenter reads Preview snapshots; nothing is written yet.
//  3. Confirm hands a copy of the valid records to the CommitExecutor.
//     Success ends the session; failure returns it to StateClassified with
//     the same classification so the operator can retry or cancel.
//  4. Cancel discards a classified session without side effects.
//
// At most one commit is in flight per session, and per target collection.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// CommitExecutor persists a confirmed batch. It is the only collaborator
// that ever sees records, and it only ever sees valid ones.
type CommitExecutor interface {
	Commit(ctx context.Context, batch CommitBatch) error
}

// CoordinatorConfig holds session limits. Zero values disable the limit
// they control.
type CoordinatorConfig struct {
	MaxFileSize   int64         // Maximum upload size in bytes
	MaxSessions   int           // Maximum open sessions across all schemas
	SessionTTL    time.Duration // Idle time after which a classified session is swept
	CommitTimeout time.Duration // Deadline for a single executor call
}

// Coordinator owns every open ImportSession.
type Coordinator struct {
	executor CommitExecutor
	limiter  *CommitLimiter
	cfg      CoordinatorConfig
	clock    func() time.Time

	mu         sync.Mutex
	sessions   map[string]*ImportSession
	committing map[string]string // collection -> session id
}

// NewCoordinator creates a coordinator that commits through executor.
// A nil limiter permits unbounded concurrent commits across sessions.
func NewCoordinator(executor CommitExecutor, limiter *CommitLimiter, cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		executor:   executor,
		limiter:    limiter,
		cfg:        cfg,
		clock:      time.Now,
		sessions:   make(map[string]*ImportSession),
		committing: make(map[string]string),
	}
}

// Open starts a fresh session for one uploaded file: decode, classify, and
// hold the result for preview. A DecodeError aborts the session and nothing
// is retained.
func (c *Coordinator) Open(ctx context.Context, schemaName, fileName string, content []byte) (*Preview, error) {
	schema, ok := Lookup(schemaName)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSchema, "%q", schemaName)
	}

	if c.cfg.MaxFileSize > 0 && int64(len(content)) > c.cfg.MaxFileSize {
		return nil, errors.WithHintf(
			errors.Wrapf(ErrFileTooLarge, "%d bytes exceeds %d", len(content), c.cfg.MaxFileSize),
			"Split the file into smaller batches",
		)
	}

	if err := c.checkCapacity(); err != nil {
		return nil, err
	}

	started := c.clock()
	session := &ImportSession{
		ID:        uuid.New().String(),
		Schema:    schema,
		FileName:  fileName,
		State:     StateIdle,
		CreatedAt: started,
		UpdatedAt: started,
	}
	logger := slog.Default().With("session_id", session.ID, "schema", schema.Name, "file", fileName)

	if err := session.transition(StateDecoding, started); err != nil {
		return nil, err
	}

	rows, err := DecodeBytes(content)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = session.transition(StateIdle, c.clock())
		logger.WarnContext(ctx, "import decode failed", "error", err)
		return nil, err
	}

	session.Result = Classify(schema, rows)
	if err := session.transition(StateClassified, c.clock()); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if err := c.checkCapacityLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.sessions[session.ID] = session
	preview := session.preview()
	c.mu.Unlock()

	counts := preview.Counts
	logger.InfoContext(ctx, "import ready for preview",
		"total", counts.Total,
		"valid", counts.Valid,
		"invalid", counts.Invalid,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return preview, nil
}

func (c *Coordinator) checkCapacity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkCapacityLocked()
}

func (c *Coordinator) checkCapacityLocked() error {
	if c.cfg.MaxSessions > 0 && len(c.sessions) >= c.cfg.MaxSessions {
		return errors.WithHint(ErrTooManySessions, "Confirm or cancel an open import first")
	}
	return nil
}

// Preview returns a read-only snapshot of an open session.
func (c *Coordinator) Preview(id string) (*Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	return session.preview(), nil
}

// Sessions returns snapshots of all open sessions, oldest first.
func (c *Coordinator) Sessions() []*Preview {
	c.mu.Lock()
	previews := make([]*Preview, 0, len(c.sessions))
	for _, s := range c.sessions {
		previews = append(previews, s.preview())
	}
	c.mu.Unlock()

	sort.Slice(previews, func(i, j int) bool {
		if !previews[i].CreatedAt.Equal(previews[j].CreatedAt) {
			return previews[i].CreatedAt.Before(previews[j].CreatedAt)
		}
		return previews[i].SessionID < previews[j].SessionID
	})
	return previews
}

// Confirm commits the valid records of a classified session. On executor
// failure it returns a *CommitError and the session stays open, classified
// and unchanged.
func (c *Coordinator) Confirm(ctx context.Context, id string) (*CommitReceipt, error) {
	batch, err := c.beginCommit(id)
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With(
		"session_id", id,
		"schema", batch.Schema,
		"batch_id", batch.ID,
		"attempt", batch.Attempt,
	)

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			c.abortCommit(id, batch.Collection)
			logger.WarnContext(ctx, "commit slot unavailable", "error", err)
			return nil, err
		}
		defer c.limiter.Release()
	}

	started := c.clock()
	logger.InfoContext(ctx, "commit started", "records", len(batch.Records))

	commitErr := c.execute(ctx, batch)
	receipt, err := c.finishCommit(id, batch, commitErr, started)
	if err != nil {
		logger.ErrorContext(ctx, "commit failed", "error", commitErr)
		return nil, err
	}

	logger.InfoContext(ctx, "commit completed",
		"committed", receipt.Committed,
		"skipped", receipt.Skipped,
		"duration_ms", receipt.Duration.Milliseconds(),
	)
	return receipt, nil
}

// beginCommit moves the session to StateConfirming and snapshots the batch.
func (c *Coordinator) beginCommit(id string) (CommitBatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[id]
	if !ok {
		return CommitBatch{}, errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	if session.State == StateConfirming {
		return CommitBatch{}, ErrCommitInFlight
	}
	if session.State != StateClassified {
		return CommitBatch{}, errors.Wrapf(ErrInvalidTransition, "%s -> %s", session.State, StateConfirming)
	}
	if len(session.Result.ValidRows) == 0 {
		return CommitBatch{}, errors.WithHint(ErrNothingToCommit, "Fix the invalid rows and upload the file again")
	}

	collection := session.Schema.Target()
	if owner, busy := c.committing[collection]; busy && owner != id {
		return CommitBatch{}, errors.Wrapf(ErrCollectionBusy, "%s", collection)
	}

	if err := session.transition(StateConfirming, c.clock()); err != nil {
		return CommitBatch{}, err
	}
	c.committing[collection] = id
	session.Attempts++

	return CommitBatch{
		ID:         uuid.New().String(),
		SessionID:  id,
		Schema:     session.Schema.Name,
		Collection: collection,
		Records:    cloneRecords(session.Result.ValidRows),
		Attempt:    session.Attempts,
	}, nil
}

// abortCommit returns a session to StateClassified when the commit never
// reached the executor. The attempt is not counted.
func (c *Coordinator) abortCommit(id, collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.committing, collection)
	if session, ok := c.sessions[id]; ok {
		session.Attempts--
		_ = session.transition(StateClassified, c.clock())
	}
}

// execute calls the executor with the configured deadline. A panicking
// executor is reported as a commit failure.
func (c *Coordinator) execute(ctx context.Context, batch CommitBatch) (err error) {
	if c.cfg.CommitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CommitTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("commit executor panic: %v", r)
		}
	}()

	return c.executor.Commit(ctx, batch)
}

func (c *Coordinator) finishCommit(id string, batch CommitBatch, commitErr error, started time.Time) (*CommitReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.committing, batch.Collection)

	session, ok := c.sessions[id]
	if !ok {
		// Only Confirm removes a confirming session, so this is a bug
		return nil, errors.AssertionFailedf("session %s vanished during commit", id)
	}

	finished := c.clock()
	if commitErr != nil {
		cerr := &CommitError{SessionID: id, Attempt: batch.Attempt, Err: commitErr}
		session.LastError = cerr
		if err := session.transition(StateClassified, finished); err != nil {
			return nil, err
		}
		return nil, cerr
	}

	if err := session.transition(StateCommitted, finished); err != nil {
		return nil, err
	}
	session.LastError = nil
	delete(c.sessions, id)

	return &CommitReceipt{
		BatchID:     batch.ID,
		SessionID:   id,
		Schema:      batch.Schema,
		Collection:  batch.Collection,
		Committed:   len(batch.Records),
		Skipped:     len(session.Result.InvalidRows),
		Attempts:    session.Attempts,
		Duration:    finished.Sub(started),
		CommittedAt: finished,
	}, nil
}

// Cancel discards a classified session. A session with a commit in flight
// can not be cancelled; its outcome must be awaited.
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[id]
	if !ok {
		return errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	if session.State == StateConfirming {
		return ErrCommitInFlight
	}
	if err := session.transition(StateCancelled, c.clock()); err != nil {
		return err
	}
	delete(c.sessions, id)

	slog.InfoContext(ctx, "import cancelled",
		"session_id", id,
		"schema", session.Schema.Name,
		"discarded_rows", session.Result.Total,
	)
	return nil
}

// Sweep cancels classified sessions idle for longer than SessionTTL and
// returns how many were removed. Confirming sessions are never swept.
func (c *Coordinator) Sweep(at time.Time) int {
	if c.cfg.SessionTTL <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, session := range c.sessions {
		if session.State != StateClassified || at.Sub(session.UpdatedAt) < c.cfg.SessionTTL {
			continue
		}
		if err := session.transition(StateCancelled, at); err != nil {
			continue
		}
		delete(c.sessions, id)
		removed++
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (c *Coordinator) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || c.cfg.SessionTTL <= 0 {
		return
	}

	slog.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", c.cfg.SessionTTL.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := c.Sweep(c.clock()); n > 0 {
				slog.Info("expired import sessions swept", "count", n)
			}
		}
	}
}

// LimiterStatus reports commit slot usage, or a zero status without a limiter.
func (c *Coordinator) LimiterStatus() CommitLimiterStatus {
	if c.limiter == nil {
		return CommitLimiterStatus{}
	}
	return c.limiter.Status()
}

// WaitForCommits blocks until in-flight commits return, for graceful shutdown.
func (c *Coordinator) WaitForCommits(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.WaitForDrain(ctx)
}

// String identifies the coordinator in logs.
func (c *Coordinator) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Coordinator{sessions: %d, committing: %d}", len(c.sessions), len(c.committing))
}

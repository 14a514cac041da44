package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/recordimport/internal/core"
)

// Memory is an in-process store with the same commit semantics as Postgres:
// a batch is stored whole or not at all, and a session is stored once.
type Memory struct {
	mu       sync.Mutex
	batches  []BatchSummary
	records  map[string][]memoryRecord // collection -> records
	sessions map[string]bool
	now      func() time.Time

	// FailWith, when set, is called before each commit; a non-nil result
	// aborts the commit with that error.
	FailWith func(batch core.CommitBatch) error
}

type memoryRecord struct {
	schema  string
	index   int
	payload []byte
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string][]memoryRecord),
		sessions: make(map[string]bool),
		now:      time.Now,
	}
}

// Commit stores a batch.
func (m *Memory) Commit(ctx context.Context, batch core.CommitBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailWith != nil {
		if err := m.FailWith(batch); err != nil {
			return err
		}
	}

	encoded := make([]memoryRecord, 0, len(batch.Records))
	for _, rec := range batch.Records {
		payload, err := encodePayload(rec)
		if err != nil {
			return permanent(err)
		}
		encoded = append(encoded, memoryRecord{schema: batch.Schema, index: rec.Index, payload: payload})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[batch.SessionID] {
		return permanent(errors.Wrapf(ErrAlreadyCommitted, "session %s", batch.SessionID))
	}
	m.sessions[batch.SessionID] = true
	m.records[batch.Collection] = append(m.records[batch.Collection], encoded...)
	m.batches = append(m.batches, BatchSummary{
		ID:          batch.ID,
		SessionID:   batch.SessionID,
		Schema:      batch.Schema,
		Collection:  batch.Collection,
		Records:     len(batch.Records),
		Attempt:     batch.Attempt,
		CommittedAt: m.now(),
	})
	return nil
}

// ListRecords returns the stored records of a schema in commit order.
func (m *Memory) ListRecords(ctx context.Context, schema core.RecordSchema) ([]core.Record, error) {
	m.mu.Lock()
	stored := append([]memoryRecord(nil), m.records[schema.Target()]...)
	m.mu.Unlock()

	var records []storedRecord
	for _, r := range stored {
		if r.schema != schema.Name {
			continue
		}
		payload, err := decodePayload(r.payload)
		if err != nil {
			return nil, err
		}
		records = append(records, storedRecord{Index: r.index, Fields: payload})
	}
	return rebuildRecords(schema, records)
}

// RecentBatches lists the latest commits, newest first.
func (m *Memory) RecentBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	m.mu.Lock()
	out := append([]BatchSummary(nil), m.batches...)
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CommittedAt.After(out[j].CommittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

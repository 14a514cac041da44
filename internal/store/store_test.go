package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/recordimport/internal/core"
)

func widgetSchema() core.RecordSchema {
	return core.RecordSchema{
		Name:       "widget",
		Collection: "widgets",
		Fields: []core.FieldSpec{
			{Name: "code", Kind: core.KindString, Required: true},
			{Name: "price", Kind: core.KindNumber},
			{Name: "state", Kind: core.KindEnum, EnumValues: []string{"new", "used"}},
		},
	}
}

func widgetRecords(t *testing.T, csv string) []core.Record {
	t.Helper()
	rows, err := core.DecodeBytes([]byte(csv))
	require.NoError(t, err)
	result := core.Classify(widgetSchema(), rows)
	require.Empty(t, result.InvalidRows)
	return result.ValidRows
}

func widgetBatch(t *testing.T, session string, csv string) core.CommitBatch {
	t.Helper()
	return core.CommitBatch{
		ID:         "6f1d3f0e-8d2c-4f55-9a57-0c7d1f3b2a10",
		SessionID:  session,
		Schema:     "widget",
		Collection: "widgets",
		Records:    widgetRecords(t, csv),
		Attempt:    1,
	}
}

func TestPayload_RoundTrip(t *testing.T) {
	recs := widgetRecords(t, "code,price,state\nA-1,\"$1,200.00\",NEW\nB-2,,\n")

	for _, rec := range recs {
		data, err := encodePayload(rec)
		require.NoError(t, err)

		payload, err := decodePayload(data)
		require.NoError(t, err)
		assert.Equal(t, rec.Map(), payload)
	}

	data, err := encodePayload(recs[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"B-2","price":null,"state":null}`, string(data))
}

func TestDecodePayload_Invalid(t *testing.T) {
	_, err := decodePayload([]byte("{not json"))
	assert.Error(t, err)
}

func TestRebuildRecords(t *testing.T) {
	recs := widgetRecords(t, "code,price,state\nA-1,10,used\nB-2,,new\n")

	stored := make([]storedRecord, 0, len(recs))
	for _, rec := range recs {
		stored = append(stored, storedRecord{Index: rec.Index, Fields: rec.Map()})
	}
	bad := "not a number"
	stored = append(stored, storedRecord{Index: 2, Fields: map[string]*string{"code": nil, "price": &bad}})

	got, err := rebuildRecords(widgetSchema(), stored)
	require.NoError(t, err)
	require.Len(t, got, 2, "payload failing validation is skipped")
	for i := range recs {
		assert.True(t, recs[i].Equal(got[i]), "record %d: %v != %v", i, got[i].Map(), recs[i].Map())
		assert.Equal(t, recs[i].Index, got[i].Index)
	}
}

func TestRebuildRecords_KeepsAllAbsentRecordAndIndex(t *testing.T) {
	schema := core.RecordSchema{
		Name: "tag",
		Fields: []core.FieldSpec{
			{Name: "label", Kind: core.KindString},
			{Name: "weight", Kind: core.KindNumber},
		},
	}
	label := "red"
	stored := []storedRecord{
		{Index: 4, Fields: map[string]*string{"label": &label, "weight": nil}},
		{Index: 7, Fields: map[string]*string{"label": nil, "weight": nil}},
		{Index: 9, Fields: map[string]*string{}},
	}

	got, err := rebuildRecords(schema, stored)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{4, 7, 9}, []int{got[0].Index, got[1].Index, got[2].Index})
	assert.Equal(t, map[string]*string{"label": nil, "weight": nil}, got[1].Map())
	assert.Equal(t, "red", got[0].String("label"))
}

func TestRebuildRecords_Empty(t *testing.T) {
	got, err := rebuildRecords(widgetSchema(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_CommitAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	batch := widgetBatch(t, "s-1", "code,price,state\nA-1,10,used\nB-2,,new\n")
	require.NoError(t, m.Commit(ctx, batch))

	got, err := m.ListRecords(ctx, widgetSchema())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A-1", got[0].String("code"))
	assert.Equal(t, "new", got[1].String("state"))
	assert.Equal(t, batch.Records[1].Index, got[1].Index, "source index survives storage")

	batches, err := m.RecentBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].Records)
	assert.Equal(t, "widgets", batches[0].Collection)
}

func TestMemory_SessionStoredOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	batch := widgetBatch(t, "s-1", "code\nA-1\n")

	require.NoError(t, m.Commit(ctx, batch))
	err := m.Commit(ctx, batch)

	require.ErrorIs(t, err, ErrAlreadyCommitted)
	commitErr := &core.CommitError{SessionID: "s-1", Attempt: 2, Err: err}
	assert.False(t, commitErr.Retryable())

	got, _ := m.ListRecords(ctx, widgetSchema())
	assert.Len(t, got, 1, "duplicate commit must not add records")
}

func TestMemory_FailWith(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.FailWith = func(core.CommitBatch) error { return errors.New("connection refused") }

	err := m.Commit(ctx, widgetBatch(t, "s-1", "code\nA-1\n"))
	require.Error(t, err)

	got, _ := m.ListRecords(ctx, widgetSchema())
	assert.Empty(t, got)

	// The session was not recorded, so a later attempt can succeed
	m.FailWith = nil
	assert.NoError(t, m.Commit(ctx, widgetBatch(t, "s-1", "code\nA-1\n")))
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemory().Commit(ctx, widgetBatch(t, "s-1", "code\nA-1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_ListRecordsFiltersSchema(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Commit(ctx, widgetBatch(t, "s-1", "code\nA-1\n")))

	other := widgetSchema()
	other.Name = "gadget"
	got, err := m.ListRecords(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, got, "records of another schema in the same collection")
}

func TestMemory_RecentBatchesOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, s := range []string{"s-1", "s-2", "s-3"} {
		require.NoError(t, m.Commit(ctx, widgetBatch(t, s, "code\nA-1\n")))
	}

	got, err := m.RecentBatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s-3", got[0].SessionID)
	assert.Equal(t, "s-2", got[1].SessionID)
}

func TestClassifyPgError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
		committed bool
	}{
		{
			name:      "session already stored",
			err:       &pgconn.PgError{Code: "23505", ConstraintName: "import_batches_session_id_key"},
			permanent: true,
			committed: true,
		},
		{
			name:      "other unique violation",
			err:       &pgconn.PgError{Code: "23505", ConstraintName: "imported_records_pkey"},
			permanent: true,
		},
		{
			name:      "not null violation",
			err:       &pgconn.PgError{Code: "23502"},
			permanent: true,
		},
		{
			name: "serialization failure",
			err:  &pgconn.PgError{Code: "40001"},
		},
		{
			name: "network",
			err:  errors.New("connection reset by peer"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyPgError(tt.err, "insert batch")
			require.Error(t, err)

			commitErr := &core.CommitError{SessionID: "s", Attempt: 1, Err: err}
			assert.Equal(t, !tt.permanent, commitErr.Retryable())
			assert.Equal(t, tt.committed, errors.Is(err, ErrAlreadyCommitted))
			assert.Contains(t, err.Error(), "insert batch")
		})
	}
}

func TestCopyRows(t *testing.T) {
	batch := widgetBatch(t, "s-1", "code,price\nA-1,10\nB-2,\n")
	batchID := core.ToPgUUID(batch.ID)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	rows, err := copyRows(batch, batchID, at)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for i, row := range rows {
		require.Len(t, row, len(recordColumns))
		assert.Equal(t, batchID, row[1])
		assert.Equal(t, "widgets", row[2])
		assert.Equal(t, "widget", row[3])
		assert.Equal(t, batch.Records[i].Index, row[4])
		assert.Equal(t, at, row[6])
	}
	assert.NotEqual(t, rows[0][0], rows[1][0], "record ids are unique")
	assert.JSONEq(t, `{"code":"B-2","price":null,"state":null}`, string(rows[1][5].([]byte)))
}

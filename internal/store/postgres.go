package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/recordimport/internal/core"
)

// Schema is applied by Migrate. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS import_batches (
	id           uuid PRIMARY KEY,
	session_id   uuid NOT NULL UNIQUE,
	record_type  text NOT NULL,
	collection   text NOT NULL,
	record_count integer NOT NULL,
	attempt      integer NOT NULL,
	committed_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS imported_records (
	id          uuid PRIMARY KEY,
	batch_id    uuid NOT NULL REFERENCES import_batches (id) ON DELETE CASCADE,
	collection  text NOT NULL,
	record_type text NOT NULL,
	row_index   integer NOT NULL,
	payload     jsonb NOT NULL,
	imported_at timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS imported_records_collection_idx
	ON imported_records (collection, record_type, imported_at, row_index);
`

var recordColumns = []string{"id", "batch_id", "collection", "record_type", "row_index", "payload", "imported_at"}

// Postgres commits batches transactionally: either every record of a batch
// is stored, or none is.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// Ping checks connectivity for the health check.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Commit stores one confirmed batch.
func (p *Postgres) Commit(ctx context.Context, batch core.CommitBatch) error {
	batchID := core.ToPgUUID(batch.ID)
	sessionID := core.ToPgUUID(batch.SessionID)
	if !batchID.Valid || !sessionID.Valid {
		return permanent(errors.Newf("batch %q or session %q is not a uuid", batch.ID, batch.SessionID))
	}

	at := p.now()
	rows, err := copyRows(batch, batchID, at)
	if err != nil {
		return permanent(err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO import_batches (id, session_id, record_type, collection, record_count, attempt, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batchID, sessionID, batch.Schema, batch.Collection, len(batch.Records), batch.Attempt, at,
	)
	if err != nil {
		return classifyPgError(err, "insert batch")
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"imported_records"}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return classifyPgError(err, "copy records")
	}
	if int(n) != len(rows) {
		return errors.Newf("copy records: wrote %d of %d", n, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}

	slog.DebugContext(ctx, "batch stored",
		"batch_id", batch.ID,
		"collection", batch.Collection,
		"records", n,
	)
	return nil
}

func copyRows(batch core.CommitBatch, batchID pgtype.UUID, at time.Time) ([][]any, error) {
	rows := make([][]any, 0, len(batch.Records))
	for _, rec := range batch.Records {
		payload, err := encodePayload(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{
			pgtype.UUID{Bytes: uuid.New(), Valid: true},
			batchID,
			batch.Collection,
			batch.Schema,
			rec.Index,
			payload,
			at,
		})
	}
	return rows, nil
}

// classifyPgError marks integrity violations as permanent. A unique
// violation on import_batches means the session was stored by an earlier
// attempt whose acknowledgement was lost.
func classifyPgError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == "import_batches_session_id_key" {
			return permanent(errors.Wrap(ErrAlreadyCommitted, op))
		}
		// Class 23: integrity constraint violation
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return permanent(errors.Wrap(err, op))
		}
	}
	return errors.Wrap(err, op)
}

// ListRecords returns the stored records of a schema in commit order.
func (p *Postgres) ListRecords(ctx context.Context, schema core.RecordSchema) ([]core.Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT row_index, payload FROM imported_records
		WHERE collection = $1 AND record_type = $2
		ORDER BY imported_at, batch_id, row_index`,
		schema.Target(), schema.Name,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query records")
	}
	defer rows.Close()

	var stored []storedRecord
	for rows.Next() {
		var (
			index int
			data  []byte
		)
		if err := rows.Scan(&index, &data); err != nil {
			return nil, errors.Wrap(err, "scan record")
		}
		payload, err := decodePayload(data)
		if err != nil {
			return nil, err
		}
		stored = append(stored, storedRecord{Index: index, Fields: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate records")
	}

	return rebuildRecords(schema, stored)
}

// RecentBatches lists the latest commits, newest first.
func (p *Postgres) RecentBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, record_type, collection, record_count, attempt, committed_at
		FROM import_batches
		ORDER BY committed_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query batches")
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var (
			id, session pgtype.UUID
			b           BatchSummary
		)
		if err := rows.Scan(&id, &session, &b.Schema, &b.Collection, &b.Records, &b.Attempt, &b.CommittedAt); err != nil {
			return nil, errors.Wrap(err, "scan batch")
		}
		b.ID = core.PgUUIDToString(id)
		b.SessionID = core.PgUUIDToString(session)
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "iterate batches")
}

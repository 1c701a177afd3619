// Package eventstore persists pipeline events in a SQLite outbox table.
package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_outbox (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	type            TEXT NOT NULL,
	source          TEXT NOT NULL,
	version         TEXT NOT NULL,
	tenant_id       TEXT NOT NULL,
	workflow_id     TEXT NOT NULL,
	run_id          TEXT NOT NULL,
	payload         TEXT NOT NULL,
	emitted_at      TEXT NOT NULL,
	published_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_event_outbox_workflow ON event_outbox(workflow_id, seq);
CREATE INDEX IF NOT EXISTS idx_event_outbox_unpublished ON event_outbox(published_at, seq);
`

// Store is an events.EventSink backed by SQLite.
// Appending an envelope whose idempotency key is already stored is a no-op.
type Store struct {
	db *sql.DB
}

var _ events.EventSink = (*Store)(nil)

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append implements events.EventSink.
func (s *Store) Append(ctx context.Context, env events.Envelope) error {
	key := env.IdempotencyKey
	if key == "" {
		key = env.ID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_outbox
		 (id, idempotency_key, type, source, version, tenant_id, workflow_id, run_id, payload, emitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(idempotency_key) DO NOTHING`,
		env.ID, key, env.Type, env.Source, env.Version, env.TenantID,
		env.WorkflowID, env.RunID, string(env.Payload), env.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", env.Type, err)
	}
	return nil
}

// Record is a stored envelope with its outbox position.
type Record struct {
	Seq         int64
	Envelope    events.Envelope
	PublishedAt *time.Time
}

// ListByWorkflow returns the events of a workflow in append order.
func (s *Store) ListByWorkflow(ctx context.Context, workflowID string) ([]Record, error) {
	return s.query(ctx,
		`SELECT seq, id, idempotency_key, type, source, version, tenant_id, workflow_id, run_id, payload, emitted_at, published_at
		 FROM event_outbox WHERE workflow_id = ? ORDER BY seq`, workflowID)
}

// Unpublished returns up to limit events not yet marked published, oldest first.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx,
		`SELECT seq, id, idempotency_key, type, source, version, tenant_id, workflow_id, run_id, payload, emitted_at, published_at
		 FROM event_outbox WHERE published_at IS NULL ORDER BY seq LIMIT ?`, limit)
}

// MarkPublished stamps the given outbox positions as published.
func (s *Store) MarkPublished(ctx context.Context, seqs ...int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE event_outbox SET published_at = ? WHERE seq = ? AND published_at IS NULL`, now, seq); err != nil {
			return fmt.Errorf("mark published %d: %w", seq, err)
		}
	}
	return tx.Commit()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			payload   string
			emitted   string
			published sql.NullString
		)
		env := &rec.Envelope
		if err := rows.Scan(&rec.Seq, &env.ID, &env.IdempotencyKey, &env.Type, &env.Source, &env.Version,
			&env.TenantID, &env.WorkflowID, &env.RunID, &payload, &emitted, &published); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		env.Payload = []byte(payload)
		if env.Timestamp, err = time.Parse(time.RFC3339Nano, emitted); err != nil {
			return nil, fmt.Errorf("parse emitted_at: %w", err)
		}
		if published.Valid {
			ts, err := time.Parse(time.RFC3339Nano, published.String)
			if err != nil {
				return nil, fmt.Errorf("parse published_at: %w", err)
			}
			rec.PublishedAt = &ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

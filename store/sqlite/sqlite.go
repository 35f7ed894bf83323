/*
Package sqlite provides a SQLite-backed implementation of generic.LogStore.

PURPOSE:
  Durable, ordered, append-only storage of events. The same schema works
  on PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the events table
  - No DELETE statements on the events table
  - Corrections are new events

KEY TABLE:
  events: seq (insertion order), id, type, entity_id, payload_json,
          occurred_at (epoch ms), idempotency_key

INDEXES:
  - idempotency_key UNIQUE: makes the Guard's check-then-append atomic.
    Two concurrent retries cannot both insert; the loser gets
    generic.ErrDuplicateIdempotencyKey.
  - idx_events_entity_time: per-entity replay (hot path for commands)
  - idx_events_type_time: per-family replay (hot path for queries)

CONCURRENCY:
  Writes are serialized by sync.RWMutex and SQLite's single writer.
  SQLITE_BUSY / SQLITE_LOCKED surface as generic.ErrConcurrentModification,
  which the Guard retries.

WAL MODE:
  Opened with WAL so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/tally.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/tally/generic"
)

// Store implements generic.LogStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Events (append-only log)
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		occurred_at INTEGER NOT NULL,
		idempotency_key TEXT UNIQUE,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_entity_time
		ON events(entity_id, occurred_at, seq);
	CREATE INDEX IF NOT EXISTS idx_events_type_time
		ON events(type, occurred_at, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOG STORE (generic.LogStore interface)
// =============================================================================

// Append adds an event to the log.
func (s *Store) Append(ctx context.Context, evt generic.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendEvent(ctx, s.db, evt)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) appendEvent(ctx context.Context, db execer, evt generic.Event) error {
	id := evt.ID
	if id == "" {
		id = generic.NewEventID()
	}
	payload := string(evt.Payload)
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}

	query := `
		INSERT INTO events
		(id, type, entity_id, payload_json, occurred_at, idempotency_key, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		id,
		evt.Type,
		evt.EntityID,
		payload,
		evt.OccurredAt.UnixMilli(),
		nullString(evt.IdempotencyKey),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// AppendBatch adds multiple events atomically.
func (s *Store) AppendBatch(ctx context.Context, events []generic.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, evt := range events {
		if evt.IdempotencyKey != "" {
			if keys[evt.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[evt.IdempotencyKey] = true
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, evt := range events {
		if err := s.appendEvent(ctx, tx, evt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit events: %w", err))
	}
	return nil
}

// Scan returns events matching the filter, ordered by (occurred_at, seq).
func (s *Store) Scan(ctx context.Context, filter generic.Filter) ([]generic.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if len(filter.EntityIDs) > 0 {
		where = append(where, "entity_id IN ("+placeholders(len(filter.EntityIDs))+")")
		for _, id := range filter.EntityIDs {
			args = append(args, string(id))
		}
	}
	if len(filter.Types) > 0 {
		where = append(where, "type IN ("+placeholders(len(filter.Types))+")")
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if !filter.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if !filter.Until.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, filter.Until.UnixMilli())
	}

	query := selectEvents
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at ASC, seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryEvents(ctx, query, args...)
}

// FindByIdempotencyKey returns the event recorded under key.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (generic.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, err := s.queryEvents(ctx, selectEvents+" WHERE idempotency_key = ?", key)
	if err != nil {
		return generic.Event{}, false, err
	}
	if len(events) == 0 {
		return generic.Event{}, false, nil
	}
	return events[0], true, nil
}

const selectEvents = `
	SELECT seq, id, type, entity_id, payload_json, occurred_at, idempotency_key
	FROM events`

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]generic.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []generic.Event
	for rows.Next() {
		var (
			evt        generic.Event
			payload    string
			occurredAt int64
			key        sql.NullString
		)
		if err := rows.Scan(&evt.Seq, &evt.ID, &evt.Type, &evt.EntityID, &payload, &occurredAt, &key); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		evt.Payload = []byte(payload)
		evt.OccurredAt = time.UnixMilli(occurredAt).UTC()
		evt.IdempotencyKey = key.String
		events = append(events, evt)
	}
	return events, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// mapError translates driver errors into engine sentinels.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return fmt.Errorf("failed to append event: %w", err)
	}
	switch {
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "events.idempotency_key"):
		return generic.ErrDuplicateIdempotencyKey
	case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", generic.ErrConcurrentModification, err)
	default:
		return fmt.Errorf("failed to append event: %w", err)
	}
}

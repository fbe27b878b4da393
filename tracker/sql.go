package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lestrrat-go/backoff/v2"
	_ "modernc.org/sqlite"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// Supported SQL dialects.
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

var schemas = map[string][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			event_id TEXT NOT NULL UNIQUE,
			type_name TEXT NOT NULL,
			timestamp REAL NOT NULL,
			intent_name TEXT,
			action_name TEXT,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_conversation_id ON events (conversation_id)`,
	},
	DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			conversation_id VARCHAR(255) NOT NULL,
			event_id VARCHAR(64) NOT NULL,
			type_name VARCHAR(255) NOT NULL,
			timestamp DOUBLE NOT NULL,
			intent_name VARCHAR(255),
			action_name VARCHAR(255),
			data LONGTEXT NOT NULL,
			UNIQUE KEY uq_events_event_id (event_id),
			KEY idx_events_conversation_id (conversation_id)
		)`,
	},
}

// SQLOptions configures a SQLStore.
type SQLOptions struct {
	// ConnectAttempts bounds how often the initial ping is retried while the
	// database comes up. Zero means a single attempt.
	ConnectAttempts int
	// ConnectInterval is the minimum wait between connection attempts.
	ConnectInterval time.Duration
	Logger          logging.Logger
}

// SQLStore persists events in a relational "events" table. Each row carries
// the full event as JSON plus denormalized columns for querying.
type SQLStore struct {
	db      *sql.DB
	dialect string
	logger  logging.Logger
}

var (
	_ core.TrackerStore     = (*SQLStore)(nil)
	_ core.SessionLoader    = (*SQLStore)(nil)
	_ core.ExistenceChecker = (*SQLStore)(nil)
)

// OpenSQLStore opens the database, waits for it to become reachable and
// creates the schema if missing.
func OpenSQLStore(ctx context.Context, dialect, dsn string, optFns ...func(o *SQLOptions)) (*SQLStore, error) {
	opts := SQLOptions{
		ConnectAttempts: 1,
		ConnectInterval: time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	if dialect == DialectSQLite && !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", dialect, err)
	}

	if err := ping(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, dialect: dialect, logger: opts.Logger}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// NewSQLStore wraps an already opened database. The schema is created if
// missing.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	s := &SQLStore{db: db, dialect: dialect, logger: logging.NoOpLogger{}}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func ping(ctx context.Context, db *sql.DB, opts SQLOptions) error {
	attempts := max(opts.ConnectAttempts, 1)
	policy := backoff.Exponential(
		backoff.WithMinInterval(opts.ConnectInterval),
		backoff.WithMaxInterval(30*time.Second),
		backoff.WithJitterFactor(0.05),
	)

	var lastErr error
	b := policy.Start(ctx)
	for attempt := 1; backoff.Continue(b); attempt++ {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return nil
		}
		opts.Logger.Warn("tracker store not reachable yet", "attempt", attempt, "error", lastErr)
		if attempt >= attempts {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}

	return fmt.Errorf("%w: connect: %w", core.ErrStoreUnavailable, lastErr)
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemas[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: schema exec failed: %w", core.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// Load returns every event of the conversation in insertion order.
func (s *SQLStore) Load(ctx context.Context, conversationID string) ([]core.Event, error) {
	return s.query(ctx, `SELECT data FROM events WHERE conversation_id = ? ORDER BY id`, conversationID)
}

// LoadSession returns the events of the conversation's latest session, i.e.
// from the last SessionStarted event onwards. Conversations without a session
// start yield all events.
func (s *SQLStore) LoadSession(ctx context.Context, conversationID string) ([]core.Event, error) {
	var from int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM events WHERE conversation_id = ? AND type_name = ?`,
		conversationID, string(core.EventSessionStarted),
	).Scan(&from)
	if err != nil {
		return nil, fmt.Errorf("%w: load session: %w", core.ErrStoreUnavailable, err)
	}
	return s.query(ctx, `SELECT data FROM events WHERE conversation_id = ? AND id >= ? ORDER BY id`, conversationID, from)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]core.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	events := []core.Event{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", core.ErrStoreUnavailable, err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("corrupt event row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load: %w", core.ErrStoreUnavailable, err)
	}

	return events, nil
}

// Append inserts the events in one transaction. A batch whose first event id
// is already present was committed before and is skipped.
func (s *SQLStore) Append(ctx context.Context, conversationID string, events []core.Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", core.ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var n int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE event_id = ?`, events[0].ID).Scan(&n); err != nil {
		return fmt.Errorf("%w: dedup check: %w", core.ErrStoreUnavailable, err)
	}
	if n > 0 {
		s.logger.Debug("skipping already persisted batch", "conversation_id", conversationID, "event_id", events[0].ID)
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(conversation_id, event_id, type_name, timestamp, intent_name, action_name, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", core.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = core.NewID()
		}
		data, mErr := json.Marshal(ev)
		if mErr != nil {
			err = mErr
			return fmt.Errorf("encode event %s: %w", ev.ID, mErr)
		}
		if _, err = stmt.ExecContext(ctx,
			conversationID, ev.ID, string(ev.Type), ev.UnixSeconds(),
			nullable(ev.Intent()), nullable(actionName(ev)), string(data),
		); err != nil {
			return fmt.Errorf("%w: insert: %w", core.ErrStoreUnavailable, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStoreUnavailable, err)
	}

	return nil
}

// Exists reports whether the conversation has at least one event.
func (s *SQLStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT 1 FROM events WHERE conversation_id = ? LIMIT 1) AS found`,
		conversationID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: exists: %w", core.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Keys returns all conversation ids with at least one event.
func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT conversation_id FROM events ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %w", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: keys: %w", core.ErrStoreUnavailable, err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

func actionName(ev core.Event) string {
	if ev.Type == core.EventActionExecuted {
		return ev.Name
	}
	return ""
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

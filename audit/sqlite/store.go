package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/audit"
	"github.com/ebogdum/dslockd/metrics"
)

const defaultListLimit = 100

// SQLiteStore implements the audit.Store interface on an embedded SQLite
// database. This is the default store for single-node deployments.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the audit database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS audit_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    datastore TEXT NOT NULL,
    session_id INTEGER NOT NULL,
    username TEXT NOT NULL,
    action TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_datastore ON audit_events(datastore);
CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at);
`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return nil
}

// Record appends an event to the trail.
func (s *SQLiteStore) Record(ctx context.Context, ev *audit.Event) error {
	metrics.AuditDBQueriesTotal.WithLabelValues("record").Inc()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (datastore, session_id, username, action, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Datastore, ev.SessionID, ev.Username, ev.Action, ev.Detail, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read audit event id: %w", err)
	}
	ev.ID = id
	ev.CreatedAt = now
	return nil
}

// List returns events matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, f audit.Filter) ([]*audit.Event, error) {
	metrics.AuditDBQueriesTotal.WithLabelValues("list").Inc()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, datastore, session_id, username, action, detail, created_at
		FROM audit_events
		WHERE (? = '' OR datastore = ?)
		  AND (? = 0 OR session_id = ?)
		ORDER BY id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query,
		f.Datastore, f.Datastore, f.SessionID, f.SessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var ev audit.Event
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.Datastore, &ev.SessionID, &ev.Username,
			&ev.Action, &ev.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp %q: %w", createdAt, err)
		}
		ev.CreatedAt = ts
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}

// Cleanup removes events older than the given time.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	metrics.AuditDBQueriesTotal.WithLabelValues("cleanup").Inc()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE created_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit events: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned audit events: %w", err)
	}
	return int(count), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

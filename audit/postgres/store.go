package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/audit"
	"github.com/ebogdum/dslockd/metrics"
)

const defaultListLimit = 100

// PostgresStore implements the audit.Store interface using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL audit store.
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// Record appends an event to the trail.
func (s *PostgresStore) Record(ctx context.Context, ev *audit.Event) error {
	metrics.AuditDBQueriesTotal.WithLabelValues("record").Inc()

	err := s.db.QueryRowContext(ctx, _SQL_RECORD_EVENT,
		ev.Datastore, ev.SessionID, ev.Username, ev.Action, ev.Detail).
		Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (s *PostgresStore) List(ctx context.Context, f audit.Filter) ([]*audit.Event, error) {
	metrics.AuditDBQueriesTotal.WithLabelValues("list").Inc()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, _SQL_LIST_EVENTS, f.Datastore, f.SessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var ev audit.Event
		if err := rows.Scan(&ev.ID, &ev.Datastore, &ev.SessionID, &ev.Username,
			&ev.Action, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}

// Cleanup removes events older than the given time.
func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	metrics.AuditDBQueriesTotal.WithLabelValues("cleanup").Inc()

	res, err := s.db.ExecContext(ctx, _SQL_CLEANUP_EVENTS, olderThan)
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

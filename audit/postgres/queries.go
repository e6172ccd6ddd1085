package postgres

// SQL query constants for audit trail operations

const (
	// _SQL_RECORD_EVENT appends a new audit event
	_SQL_RECORD_EVENT = `
		INSERT INTO audit_events
		(datastore, session_id, username, action, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	// _SQL_LIST_EVENTS lists events newest first with optional filters
	_SQL_LIST_EVENTS = `
		SELECT id, datastore, session_id, username, action, detail, created_at
		FROM audit_events
		WHERE ($1 = '' OR datastore = $1)
		  AND ($2 = 0 OR session_id = $2)
		ORDER BY id DESC
		LIMIT $3`

	// _SQL_CLEANUP_EVENTS removes events past the retention period
	_SQL_CLEANUP_EVENTS = `
		DELETE FROM audit_events
		WHERE created_at < $1`
)

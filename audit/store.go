// Package audit defines the lock-operation audit trail. Every lock
// transition the daemon performs, including refusals and forced releases, is
// recorded as an immutable event so operators can answer "who held the
// candidate lock last night" after the fact.
package audit

import (
	"context"
	"errors"
	"time"
)

// Common audit errors
var (
	ErrNotFound = errors.New("audit event not found")
)

// Actions recorded in the audit trail.
const (
	ActionLock         = "lock"
	ActionUnlock       = "unlock"
	ActionLockDenied   = "lock-denied"
	ActionUnlockDenied = "unlock-denied"
	ActionForceRelease = "force-release"
)

// Event is one recorded lock transition.
type Event struct {
	ID        int64     `json:"id"`
	Datastore string    `json:"datastore"`
	SessionID uint32    `json:"session_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"` // failure reason or holder identity
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a List call. Zero values mean "no constraint"; Limit falls
// back to a store-chosen default when zero.
type Filter struct {
	Datastore string
	SessionID uint32
	Limit     int
}

// Store defines the interface for audit trail storage.
type Store interface {
	// Record appends an event to the trail. The event's ID and CreatedAt are
	// assigned by the store.
	Record(ctx context.Context, ev *Event) error

	// List returns events matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Event, error)

	// Cleanup removes events older than the given time and returns the count
	// of removed events.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close closes the audit store connection.
	Close() error
}

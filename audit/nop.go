package audit

import (
	"context"
	"time"
)

// NopStore discards every event. Wired when auditing is disabled so callers
// never need a nil check.
type NopStore struct{}

// NewNopStore creates an audit store that records nothing.
func NewNopStore() Store {
	return &NopStore{}
}

// Record discards the event.
func (NopStore) Record(ctx context.Context, ev *Event) error {
	return nil
}

// List returns no events.
func (NopStore) List(ctx context.Context, f Filter) ([]*Event, error) {
	return nil, nil
}

// Cleanup removes nothing.
func (NopStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// Close does nothing.
func (NopStore) Close() error {
	return nil
}

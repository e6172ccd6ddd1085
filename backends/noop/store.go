package noop

import (
	"context"
	"fmt"

	"github.com/ebogdum/dslockd/backends"
	"github.com/ebogdum/dslockd/locks"
)

// NoopStore is a no-operation lock store that refuses every call.
// This is used when no backend is configured, so a misconfigured deployment
// surfaces lock denials instead of silently granting unenforced locks.
type NoopStore struct{}

// NewNoopStore creates a new noop lock store.
func NewNoopStore() backends.LockStore {
	return &NoopStore{}
}

// Lock always returns an error for the noop store.
func (n *NoopStore) Lock(ctx context.Context, ds locks.Datastore) error {
	return fmt.Errorf("backend not enabled: cannot lock datastore %s", ds)
}

// Unlock always returns an error for the noop store.
func (n *NoopStore) Unlock(ctx context.Context, ds locks.Datastore) error {
	return fmt.Errorf("backend not enabled: cannot unlock datastore %s", ds)
}

// DiscardChanges always returns an error for the noop store.
func (n *NoopStore) DiscardChanges(ctx context.Context, ds locks.Datastore) error {
	return fmt.Errorf("backend not enabled: cannot discard changes for datastore %s", ds)
}

// Close does nothing for the noop store.
func (n *NoopStore) Close() error {
	return nil
}

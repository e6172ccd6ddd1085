// Package memstore provides an in-process authoritative lock store for
// single-node deployments and tests. It plays the role the external storage
// system plays in production: it can hold a datastore lock on behalf of
// parties the lock coordinator cannot see, and refuses lock requests while
// such a hold exists.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ebogdum/dslockd/locks"
)

// MemStore is an in-memory lock store.
type MemStore struct {
	mu       sync.Mutex
	held     map[locks.Datastore]bool
	external map[locks.Datastore]string // holder description, e.g. another process
	pending  map[locks.Datastore]bool   // uncommitted working changes
}

// NewMemStore creates an empty in-memory lock store.
func NewMemStore() *MemStore {
	return &MemStore{
		held:     make(map[locks.Datastore]bool),
		external: make(map[locks.Datastore]string),
		pending:  make(map[locks.Datastore]bool),
	}
}

// Lock takes the authoritative lock on ds, refusing if the datastore is
// already locked, either through this store or by a seeded external holder.
func (s *MemStore) Lock(ctx context.Context, ds locks.Datastore) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if who, ok := s.external[ds]; ok {
		return fmt.Errorf("datastore %s is locked by %s", ds, who)
	}
	if s.held[ds] {
		return fmt.Errorf("datastore %s is already locked", ds)
	}

	s.held[ds] = true
	return nil
}

// Unlock releases the authoritative lock on ds.
func (s *MemStore) Unlock(ctx context.Context, ds locks.Datastore) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if who, ok := s.external[ds]; ok {
		return fmt.Errorf("datastore %s is locked by %s", ds, who)
	}
	if !s.held[ds] {
		return fmt.Errorf("datastore %s is not locked", ds)
	}

	delete(s.held, ds)
	return nil
}

// DiscardChanges drops any uncommitted working changes for ds.
func (s *MemStore) DiscardChanges(ctx context.Context, ds locks.Datastore) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, ds)
	return nil
}

// SeedExternalLock records a hold taken outside the lock coordinator's
// visibility, described by who. Subsequent Lock and Unlock calls for ds are
// refused until ClearExternalLock is called.
func (s *MemStore) SeedExternalLock(ds locks.Datastore, who string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.external[ds] = who
}

// ClearExternalLock removes a seeded external hold on ds.
func (s *MemStore) ClearExternalLock(ds locks.Datastore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.external, ds)
}

// MarkPending flags ds as carrying uncommitted working changes.
func (s *MemStore) MarkPending(ds locks.Datastore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[ds] = true
}

// HasPending reports whether ds carries uncommitted working changes.
func (s *MemStore) HasPending(ds locks.Datastore) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[ds]
}

// Close clears all state held by the store.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(map[locks.Datastore]bool)
	s.external = make(map[locks.Datastore]string)
	s.pending = make(map[locks.Datastore]bool)
	return nil
}

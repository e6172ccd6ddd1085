// Package locks implements exclusive lock arbitration for the configuration
// datastores. A Manager keeps a process-local table of lock holders, one slot
// per datastore, and reconciles every transition with an authoritative
// backend store before committing it locally.
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Backend is the authoritative lock service consulted before any local claim
// is committed. A nil error grants the operation; a non-nil error is the
// structured detail attached to the resulting DeniedError. The manager does
// not retain the backend between calls.
type Backend interface {
	// Lock takes the authoritative lock on the datastore.
	Lock(ctx context.Context, ds Datastore) error

	// Unlock releases the authoritative lock on the datastore.
	Unlock(ctx context.Context, ds Datastore) error

	// DiscardChanges drops any uncommitted working changes associated with
	// the datastore. A no-op for datastores without that notion.
	DiscardChanges(ctx context.Context, ds Datastore) error
}

// slot records the ownership state of a single datastore. holder is set if
// and only if acquiredAt is non-zero.
type slot struct {
	holder     Session
	acquiredAt time.Time
}

// Manager is the lock coordinator. All slots are guarded by a single
// reader/writer mutex; the datastore set is tiny and acquisition is not on a
// hot path, so per-slot locking buys nothing.
type Manager struct {
	mu     sync.RWMutex
	slots  map[Datastore]*slot
	logger *zap.Logger
}

// NewManager creates a lock manager with one free slot per datastore.
func NewManager(logger *zap.Logger) *Manager {
	slots := make(map[Datastore]*slot, len(Datastores()))
	for _, ds := range Datastores() {
		slots[ds] = &slot{}
	}
	return &Manager{
		slots:  slots,
		logger: logger,
	}
}

// lookup resolves a datastore to its slot. The slots map is never mutated
// after construction, so the lookup itself needs no lock.
func (m *Manager) lookup(ds Datastore) (*slot, error) {
	sl, ok := m.slots[ds]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatastore, ds)
	}
	return sl, nil
}

// Acquire attempts to take the exclusive lock on ds for session. The local
// claim is committed only after the backend grants its own lock; if the
// backend refuses, the table is left untouched and a DeniedError carries the
// backend's detail. A held slot, including one held by the requester itself,
// fails with a ConflictError naming the holder.
func (m *Manager) Acquire(ctx context.Context, ds Datastore, session Session, backend Backend) error {
	sl, err := m.lookup(ds)
	if err != nil {
		return err
	}

	m.mu.RLock()
	if sl.holder != nil {
		holder := sl.holder
		m.mu.RUnlock()
		m.logger.Warn("datastore lock refused, already locked",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session),
			zap.Stringer("holder", holder))
		return &ConflictError{Datastore: ds, Holder: holder}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// The slot may have been claimed between dropping the read lock and
	// taking the write lock; a read-lock observation is never trusted across
	// the upgrade.
	if sl.holder != nil {
		m.logger.Warn("datastore lock refused, claimed concurrently",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session),
			zap.Stringer("holder", sl.holder))
		return &ConflictError{Datastore: ds, Holder: sl.holder}
	}

	if err := backend.Lock(ctx, ds); err != nil {
		// The lock is held outside this manager's visibility.
		m.logger.Warn("backend denied datastore lock",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session),
			zap.Error(err))
		return &DeniedError{Datastore: ds, Op: "lock", Err: err}
	}

	sl.holder = session
	sl.acquiredAt = time.Now()

	m.logger.Info("datastore locked",
		zap.String("datastore", string(ds)),
		zap.Stringer("session", session))
	return nil
}

// Release gives up the exclusive lock on ds. Only the recorded holder may
// release; anyone else fails with a ConflictError naming the actual holder,
// and a free slot fails with NotLockedError. On success the backend's
// uncommitted working changes for the datastore are discarded before the slot
// is cleared; a discard failure is logged but does not abort the release.
func (m *Manager) Release(ctx context.Context, ds Datastore, session Session, backend Backend) error {
	sl, err := m.lookup(ds)
	if err != nil {
		return err
	}

	m.mu.RLock()
	switch {
	case sl.holder == nil:
		m.mu.RUnlock()
		m.logger.Warn("datastore unlock refused, lock is not active",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session))
		return &NotLockedError{Datastore: ds}
	case sl.holder != session:
		holder := sl.holder
		m.mu.RUnlock()
		m.logger.Warn("datastore unlock refused, held by another session",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session),
			zap.Stringer("holder", holder))
		return &ConflictError{Datastore: ds, Holder: holder}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Only the holder is permitted to transition the slot, so the state
	// should not have changed across the upgrade; re-validate anyway.
	if sl.holder == nil {
		return &NotLockedError{Datastore: ds}
	}
	if sl.holder != session {
		return &ConflictError{Datastore: ds, Holder: sl.holder}
	}

	if err := backend.Unlock(ctx, ds); err != nil {
		m.logger.Warn("backend denied datastore unlock",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session),
			zap.Error(err))
		return &DeniedError{Datastore: ds, Op: "unlock", Err: err}
	}

	// RFC 6241 8.3.5.2: uncommitted changes are discarded when the lock is
	// released. Best effort, the lock itself is already gone.
	if err := backend.DiscardChanges(ctx, ds); err != nil {
		m.logger.Warn("failed to discard pending changes on unlock",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session),
			zap.Error(err))
	}

	sl.holder = nil
	sl.acquiredAt = time.Time{}

	m.logger.Info("datastore unlocked",
		zap.String("datastore", string(ds)),
		zap.Stringer("session", session))
	return nil
}

// Holder reports the current holder of ds and the time the lock was taken.
// ok is false when the slot is free or ds is not a known datastore.
func (m *Manager) Holder(ds Datastore) (Session, time.Time, bool) {
	sl, err := m.lookup(ds)
	if err != nil {
		return nil, time.Time{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if sl.holder == nil {
		return nil, time.Time{}, false
	}
	return sl.holder, sl.acquiredAt, true
}

// ReleaseSession force-clears every slot held by session and returns the
// datastores that were cleared. The session registry calls this when a
// session terminates without releasing its locks; the backend unlock and
// discard are best effort since the owner is already gone.
func (m *Manager) ReleaseSession(ctx context.Context, session Session, backend Backend) []Datastore {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cleared []Datastore
	for _, ds := range Datastores() {
		sl := m.slots[ds]
		if sl.holder != session {
			continue
		}

		if err := backend.Unlock(ctx, ds); err != nil {
			m.logger.Warn("backend unlock failed during forced release",
				zap.String("datastore", string(ds)),
				zap.Stringer("session", session),
				zap.Error(err))
		} else if err := backend.DiscardChanges(ctx, ds); err != nil {
			m.logger.Warn("failed to discard pending changes during forced release",
				zap.String("datastore", string(ds)),
				zap.Stringer("session", session),
				zap.Error(err))
		}

		sl.holder = nil
		sl.acquiredAt = time.Time{}
		cleared = append(cleared, ds)

		m.logger.Info("datastore lock force-released",
			zap.String("datastore", string(ds)),
			zap.Stringer("session", session))
	}
	return cleared
}

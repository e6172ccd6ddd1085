package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/locks"
	"github.com/ebogdum/dslockd/metrics"
)

// ErrSessionNotFound is returned when an operation references a session ID
// the registry does not know.
var ErrSessionNotFound = errors.New("session not found")

// LockReleaser force-clears the datastore locks a terminating session still
// holds. Satisfied by *locks.Manager.
type LockReleaser interface {
	ReleaseSession(ctx context.Context, session locks.Session, backend locks.Backend) []locks.Datastore
}

// ForceReleaseHook is invoked once per session close that cleared locks,
// after the locks are gone. Used by the engine to record audit events and
// publish lock-change notifications.
type ForceReleaseHook func(s *Session, cleared []locks.Datastore)

// Registry tracks live client sessions. Session IDs are monotonically
// increasing and never reused for the lifetime of the process.
type Registry struct {
	releaser LockReleaser
	backend  locks.Backend
	logger   *zap.Logger

	mu     sync.Mutex
	nextID uint32
	byID   map[uint32]*Session

	hookMu sync.Mutex
	hook   ForceReleaseHook
}

// NewRegistry creates an empty session registry.
func NewRegistry(releaser LockReleaser, backend locks.Backend, logger *zap.Logger) *Registry {
	return &Registry{
		releaser: releaser,
		backend:  backend,
		logger:   logger,
		nextID:   1,
		byID:     make(map[uint32]*Session),
	}
}

// SetForceReleaseHook installs the hook called when closing a session clears
// locks it still held.
func (r *Registry) SetForceReleaseHook(hook ForceReleaseHook) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.hook = hook
}

// Create registers a new session for username connecting from remoteAddr.
func (r *Registry) Create(username, remoteAddr string) *Session {
	now := time.Now()

	r.mu.Lock()
	s := &Session{
		id:         r.nextID,
		username:   username,
		remoteAddr: remoteAddr,
		createdAt:  now,
		lastActive: now,
	}
	r.nextID++
	r.byID[s.id] = s
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	r.logger.Info("session opened",
		zap.Uint32("session_id", s.id),
		zap.String("username", username),
		zap.String("remote_addr", remoteAddr))
	return s
}

// Get returns the session with the given ID and marks it active.
func (r *Registry) Get(id uint32) (*Session, error) {
	r.mu.Lock()
	s, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(time.Now())
	return s, nil
}

// List returns all live sessions ordered by ID.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Close removes the session and force-releases any datastore locks it still
// holds. It returns the datastores that were cleared.
func (r *Registry) Close(ctx context.Context, id uint32) ([]locks.Datastore, error) {
	return r.close(ctx, id, "client")
}

func (r *Registry) close(ctx context.Context, id uint32, reason string) ([]locks.Datastore, error) {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	cleared := r.releaser.ReleaseSession(ctx, s, r.backend)

	metrics.ActiveSessions.Dec()
	metrics.SessionsClosedTotal.WithLabelValues(reason).Inc()
	r.logger.Info("session closed",
		zap.Uint32("session_id", s.id),
		zap.String("username", s.username),
		zap.String("reason", reason),
		zap.Int("locks_cleared", len(cleared)))

	if len(cleared) > 0 {
		r.hookMu.Lock()
		hook := r.hook
		r.hookMu.Unlock()
		if hook != nil {
			hook(s, cleared)
		}
	}
	return cleared, nil
}

// CloseIdle closes every session whose last activity is older than the TTL
// and returns the number of sessions closed. This is the registry's answer to
// holders that disappear without unlocking.
func (r *Registry) CloseIdle(ctx context.Context, ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	var stale []uint32
	for id, s := range r.byID {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		if _, err := r.close(ctx, id, "expired"); err == nil {
			r.logger.Warn("closed idle session", zap.Uint32("session_id", id))
		}
	}
	return len(stale)
}

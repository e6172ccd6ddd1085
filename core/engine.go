// Package core contains the dslockd engine, which ties the lock coordinator,
// the authoritative backend store, the session registry, the audit trail and
// the event hub together behind one orchestration surface.
package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/audit"
	"github.com/ebogdum/dslockd/backends"
	"github.com/ebogdum/dslockd/locks"
	"github.com/ebogdum/dslockd/metrics"
	"github.com/ebogdum/dslockd/sessions"
)

// DatastoreStatus is the externally visible lock state of one datastore.
type DatastoreStatus struct {
	Datastore  string     `json:"datastore"`
	Locked     bool       `json:"locked"`
	SessionID  uint32     `json:"session_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
}

// Engine orchestrates lock operations on behalf of the transport layer.
type Engine struct {
	lockManager *locks.Manager
	backend     backends.LockStore
	registry    *sessions.Registry
	auditStore  audit.Store
	hub         *Hub
	logger      *zap.Logger
}

// NewEngine creates a new engine instance and installs the force-release
// hook so that session teardown shows up in the audit trail and the event
// stream like any other transition.
func NewEngine(
	lockManager *locks.Manager,
	backend backends.LockStore,
	registry *sessions.Registry,
	auditStore audit.Store,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		lockManager: lockManager,
		backend:     backend,
		registry:    registry,
		auditStore:  auditStore,
		hub:         NewHub(),
		logger:      logger,
	}

	registry.SetForceReleaseHook(func(s *sessions.Session, cleared []locks.Datastore) {
		now := time.Now()
		for _, ds := range cleared {
			metrics.LockOperationsTotal.WithLabelValues("force-release", "success").Inc()
			metrics.HeldLocks.WithLabelValues(string(ds)).Set(0)
			e.recordAudit(context.Background(), &audit.Event{
				Datastore: string(ds),
				SessionID: s.SessionID(),
				Username:  s.Username(),
				Action:    audit.ActionForceRelease,
				Detail:    "session terminated while holding the lock",
			})
			e.hub.Publish(LockEvent{
				Datastore: string(ds),
				Action:    "force-release",
				SessionID: s.SessionID(),
				Username:  s.Username(),
				Time:      now,
			})
		}
	})

	return e
}

// Hub returns the lock-event hub for watch subscribers.
func (e *Engine) Hub() *Hub {
	return e.hub
}

// OpenSession registers a new client session.
func (e *Engine) OpenSession(ctx context.Context, username, remoteAddr string) *sessions.Session {
	return e.registry.Create(username, remoteAddr)
}

// CloseSession terminates a session, force-releasing any locks it holds.
func (e *Engine) CloseSession(ctx context.Context, sessionID uint32) error {
	_, err := e.registry.Close(ctx, sessionID)
	return err
}

// Sessions returns all live sessions.
func (e *Engine) Sessions(ctx context.Context) []*sessions.Session {
	return e.registry.List()
}

// AcquireLock takes the exclusive lock on the named datastore for the given
// session. The error, if any, is one of the typed failures from the locks
// package, or sessions.ErrSessionNotFound.
func (e *Engine) AcquireLock(ctx context.Context, sessionID uint32, datastore string) error {
	ds, err := locks.ParseDatastore(datastore)
	if err != nil {
		return err
	}
	s, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = e.lockManager.Acquire(ctx, ds, s, e.backend)
	metrics.LockOperationDuration.WithLabelValues("acquire").Observe(time.Since(start).Seconds())
	metrics.LockOperationsTotal.WithLabelValues("acquire", statusOf(err)).Inc()

	if err != nil {
		e.recordAudit(ctx, &audit.Event{
			Datastore: string(ds),
			SessionID: s.SessionID(),
			Username:  s.Username(),
			Action:    audit.ActionLockDenied,
			Detail:    err.Error(),
		})
		return err
	}

	metrics.HeldLocks.WithLabelValues(string(ds)).Set(1)
	e.recordAudit(ctx, &audit.Event{
		Datastore: string(ds),
		SessionID: s.SessionID(),
		Username:  s.Username(),
		Action:    audit.ActionLock,
	})
	e.hub.Publish(LockEvent{
		Datastore: string(ds),
		Action:    "lock",
		SessionID: s.SessionID(),
		Username:  s.Username(),
		Time:      time.Now(),
	})
	return nil
}

// ReleaseLock gives up the exclusive lock on the named datastore.
func (e *Engine) ReleaseLock(ctx context.Context, sessionID uint32, datastore string) error {
	ds, err := locks.ParseDatastore(datastore)
	if err != nil {
		return err
	}
	s, err := e.registry.Get(sessionID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = e.lockManager.Release(ctx, ds, s, e.backend)
	metrics.LockOperationDuration.WithLabelValues("release").Observe(time.Since(start).Seconds())
	metrics.LockOperationsTotal.WithLabelValues("release", statusOf(err)).Inc()

	if err != nil {
		e.recordAudit(ctx, &audit.Event{
			Datastore: string(ds),
			SessionID: s.SessionID(),
			Username:  s.Username(),
			Action:    audit.ActionUnlockDenied,
			Detail:    err.Error(),
		})
		return err
	}

	metrics.HeldLocks.WithLabelValues(string(ds)).Set(0)
	e.recordAudit(ctx, &audit.Event{
		Datastore: string(ds),
		SessionID: s.SessionID(),
		Username:  s.Username(),
		Action:    audit.ActionUnlock,
	})
	e.hub.Publish(LockEvent{
		Datastore: string(ds),
		Action:    "unlock",
		SessionID: s.SessionID(),
		Username:  s.Username(),
		Time:      time.Now(),
	})
	return nil
}

// Status reports the lock state of every datastore.
func (e *Engine) Status(ctx context.Context) []DatastoreStatus {
	out := make([]DatastoreStatus, 0, len(locks.Datastores()))
	for _, ds := range locks.Datastores() {
		out = append(out, e.datastoreStatus(ds))
	}
	return out
}

// DatastoreStatus reports the lock state of one named datastore.
func (e *Engine) DatastoreStatus(ctx context.Context, datastore string) (DatastoreStatus, error) {
	ds, err := locks.ParseDatastore(datastore)
	if err != nil {
		return DatastoreStatus{}, err
	}
	return e.datastoreStatus(ds), nil
}

func (e *Engine) datastoreStatus(ds locks.Datastore) DatastoreStatus {
	st := DatastoreStatus{Datastore: string(ds)}
	holder, acquiredAt, ok := e.lockManager.Holder(ds)
	if !ok {
		return st
	}

	st.Locked = true
	st.SessionID = holder.SessionID()
	st.AcquiredAt = &acquiredAt
	if s, ok := holder.(*sessions.Session); ok {
		st.Username = s.Username()
	}
	return st
}

// AuditEvents returns recorded lock transitions matching the filter.
func (e *Engine) AuditEvents(ctx context.Context, f audit.Filter) ([]*audit.Event, error) {
	return e.auditStore.List(ctx, f)
}

// recordAudit appends an event to the trail. Auditing is best effort and
// never changes the outcome of the lock operation it describes.
func (e *Engine) recordAudit(ctx context.Context, ev *audit.Event) {
	if err := e.auditStore.Record(ctx, ev); err != nil {
		metrics.ErrorsTotal.WithLabelValues("audit", "record").Inc()
		e.logger.Error("Failed to record audit event",
			zap.String("datastore", ev.Datastore),
			zap.String("action", ev.Action),
			zap.Error(err))
	}
}

// statusOf maps a lock operation outcome to a metric label.
func statusOf(err error) string {
	var conflict *locks.ConflictError
	var denied *locks.DeniedError
	var notLocked *locks.NotLockedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &denied):
		return "denied"
	case errors.As(err, &notLocked):
		return "not-locked"
	default:
		return "error"
	}
}

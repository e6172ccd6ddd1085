package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/dslockd/audit"
	"github.com/ebogdum/dslockd/backends/memstore"
	"github.com/ebogdum/dslockd/locks"
	"github.com/ebogdum/dslockd/sessions"
)

// memAudit is an in-memory audit store for engine tests.
type memAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (m *memAudit) Record(ctx context.Context, ev *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	ev.CreatedAt = time.Now()
	m.events = append(m.events, ev)
	return nil
}

func (m *memAudit) List(ctx context.Context, f audit.Filter) ([]*audit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*audit.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if f.Datastore != "" && ev.Datastore != f.Datastore {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *memAudit) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (m *memAudit) Close() error { return nil }

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Action
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *memstore.MemStore, *memAudit) {
	t.Helper()
	logger := zap.NewNop()
	backend := memstore.NewMemStore()
	manager := locks.NewManager(logger)
	registry := sessions.NewRegistry(manager, backend, logger)
	trail := &memAudit{}
	engine := NewEngine(manager, backend, registry, trail, logger)
	return engine, backend, trail
}

func TestEngineLockUnlockRoundTrip(t *testing.T) {
	engine, _, trail := newTestEngine(t)
	ctx := context.Background()

	s := engine.OpenSession(ctx, "admin", "10.0.0.1:42000")

	if err := engine.AcquireLock(ctx, s.SessionID(), "running"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	st, err := engine.DatastoreStatus(ctx, "running")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !st.Locked || st.SessionID != s.SessionID() || st.Username != "admin" {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.AcquiredAt == nil || st.AcquiredAt.IsZero() {
		t.Error("acquired_at should be set while locked")
	}

	if err := engine.ReleaseLock(ctx, s.SessionID(), "running"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	st, _ = engine.DatastoreStatus(ctx, "running")
	if st.Locked {
		t.Error("datastore should be unlocked")
	}

	got := trail.actions()
	want := []string{audit.ActionLock, audit.ActionUnlock}
	if len(got) != len(want) {
		t.Fatalf("expected audit actions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audit action %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestEngineRejectsUnknownDatastore(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	s := engine.OpenSession(ctx, "admin", "10.0.0.1:42000")

	if err := engine.AcquireLock(ctx, s.SessionID(), "operational"); !errors.Is(err, locks.ErrUnknownDatastore) {
		t.Errorf("expected ErrUnknownDatastore, got %v", err)
	}
	if _, err := engine.DatastoreStatus(ctx, "operational"); !errors.Is(err, locks.ErrUnknownDatastore) {
		t.Errorf("expected ErrUnknownDatastore from status, got %v", err)
	}
}

func TestEngineRejectsUnknownSession(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	if err := engine.AcquireLock(ctx, 99, "running"); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEngineBackendDenialIsAudited(t *testing.T) {
	engine, backend, trail := newTestEngine(t)
	ctx := context.Background()
	s := engine.OpenSession(ctx, "admin", "10.0.0.1:42000")

	backend.SeedExternalLock(locks.Startup, "another process")

	err := engine.AcquireLock(ctx, s.SessionID(), "startup")
	var denied *locks.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}

	st, _ := engine.DatastoreStatus(ctx, "startup")
	if st.Locked {
		t.Error("local table must stay clean after a backend denial")
	}

	got := trail.actions()
	if len(got) != 1 || got[0] != audit.ActionLockDenied {
		t.Errorf("expected one lock-denied audit event, got %v", got)
	}
}

func TestEngineCloseSessionForceReleasesAndPublishes(t *testing.T) {
	engine, _, trail := newTestEngine(t)
	ctx := context.Background()
	s := engine.OpenSession(ctx, "admin", "10.0.0.1:42000")

	events := engine.Hub().Subscribe()
	defer engine.Hub().Unsubscribe(events)

	if err := engine.AcquireLock(ctx, s.SessionID(), "candidate"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	<-events // drain the lock event

	if err := engine.CloseSession(ctx, s.SessionID()); err != nil {
		t.Fatalf("close session failed: %v", err)
	}

	st, _ := engine.DatastoreStatus(ctx, "candidate")
	if st.Locked {
		t.Error("candidate must be free after its holder's session closed")
	}

	select {
	case ev := <-events:
		if ev.Action != "force-release" || ev.Datastore != "candidate" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a force-release event")
	}

	got := trail.actions()
	if got[len(got)-1] != audit.ActionForceRelease {
		t.Errorf("expected trailing force-release audit event, got %v", got)
	}
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Overfill the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(LockEvent{Datastore: "running", Action: "lock"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

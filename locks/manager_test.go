package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// testSession is a minimal Session for coordinator tests.
type testSession struct {
	id   uint32
	user string
}

func (s *testSession) SessionID() uint32 { return s.id }

func (s *testSession) String() string {
	return fmt.Sprintf("session %d (%s)", s.id, s.user)
}

// fakeBackend is a scriptable Backend that records calls.
type fakeBackend struct {
	mu         sync.Mutex
	lockErr    error
	unlockErr  error
	discardErr error
	locked     map[Datastore]bool
	discarded  []Datastore
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{locked: make(map[Datastore]bool)}
}

func (b *fakeBackend) Lock(ctx context.Context, ds Datastore) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lockErr != nil {
		return b.lockErr
	}
	b.locked[ds] = true
	return nil
}

func (b *fakeBackend) Unlock(ctx context.Context, ds Datastore) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlockErr != nil {
		return b.unlockErr
	}
	delete(b.locked, ds)
	return nil
}

func (b *fakeBackend) DiscardChanges(ctx context.Context, ds Datastore) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discardErr != nil {
		return b.discardErr
	}
	b.discarded = append(b.discarded, ds)
	return nil
}

func (b *fakeBackend) discardCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.discarded)
}

func TestParseDatastore(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Datastore
		shouldError bool
	}{
		{name: "running", input: "running", expected: Running},
		{name: "startup", input: "startup", expected: Startup},
		{name: "candidate", input: "candidate", expected: Candidate},
		{name: "empty", input: "", shouldError: true},
		{name: "unknown", input: "operational", shouldError: true},
		{name: "case sensitive", input: "Running", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseDatastore(tt.input)
			if tt.shouldError {
				if err == nil {
					t.Fatalf("expected error for input %q, got none", tt.input)
				}
				if !errors.Is(err, ErrUnknownDatastore) {
					t.Errorf("expected ErrUnknownDatastore, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ds != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, ds)
			}
		})
	}
}

func TestAcquireReleaseScenario(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	sessionA := &testSession{id: 1, user: "alice"}
	sessionB := &testSession{id: 2, user: "bob"}
	ctx := context.Background()

	// Free table: sessionA acquires running.
	if err := m.Acquire(ctx, Running, sessionA, backend); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	holder, acquiredAt, ok := m.Holder(Running)
	if !ok || holder != Session(sessionA) {
		t.Fatalf("expected sessionA as holder, got %v (ok=%v)", holder, ok)
	}
	if acquiredAt.IsZero() {
		t.Error("acquiredAt should be set while the lock is held")
	}

	// sessionB is refused and told who holds the lock.
	err := m.Acquire(ctx, Running, sessionB, backend)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Holder != Session(sessionA) {
		t.Errorf("conflict should name sessionA, got %v", conflict.Holder)
	}

	// sessionA releases; pending changes are discarded.
	if err := m.Release(ctx, Running, sessionA, backend); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if backend.discardCount() != 1 {
		t.Errorf("expected one discard-changes call, got %d", backend.discardCount())
	}
	if _, _, ok := m.Holder(Running); ok {
		t.Error("slot should be free after release")
	}

	// A second release finds no active lock.
	err = m.Release(ctx, Running, sessionA, backend)
	var notLocked *NotLockedError
	if !errors.As(err, &notLocked) {
		t.Fatalf("expected NotLockedError, got %v", err)
	}
}

func TestAcquireIsNotReentrant(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	session := &testSession{id: 7, user: "alice"}
	ctx := context.Background()

	if err := m.Acquire(ctx, Candidate, session, backend); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	err := m.Acquire(ctx, Candidate, session, backend)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("re-entrant acquire should conflict, got %v", err)
	}
	if conflict.Holder != Session(session) {
		t.Errorf("conflict should name the requester itself, got %v", conflict.Holder)
	}
}

func TestReleaseRequiresOwnership(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	sessionA := &testSession{id: 1, user: "alice"}
	sessionB := &testSession{id: 2, user: "bob"}
	ctx := context.Background()

	if err := m.Acquire(ctx, Startup, sessionA, backend); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	err := m.Release(ctx, Startup, sessionB, backend)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Holder != Session(sessionA) {
		t.Errorf("conflict should name the actual holder, got %v", conflict.Holder)
	}

	// The rightful holder can still release.
	if err := m.Release(ctx, Startup, sessionA, backend); err != nil {
		t.Fatalf("holder release failed: %v", err)
	}
	if _, _, ok := m.Holder(Startup); ok {
		t.Error("slot should be free after release")
	}
}

func TestUnknownDatastore(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	session := &testSession{id: 1, user: "alice"}
	ctx := context.Background()

	if err := m.Acquire(ctx, "operational", session, backend); !errors.Is(err, ErrUnknownDatastore) {
		t.Errorf("acquire: expected ErrUnknownDatastore, got %v", err)
	}
	if err := m.Release(ctx, "operational", session, backend); !errors.Is(err, ErrUnknownDatastore) {
		t.Errorf("release: expected ErrUnknownDatastore, got %v", err)
	}
}

func TestBackendDenialLeavesNoTrace(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	backend.lockErr = errors.New("locked by another process")
	session := &testSession{id: 3, user: "carol"}
	ctx := context.Background()

	err := m.Acquire(ctx, Running, session, backend)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Op != "lock" {
		t.Errorf("expected op %q, got %q", "lock", denied.Op)
	}
	if !errors.Is(err, backend.lockErr) {
		t.Error("DeniedError should wrap the backend detail")
	}
	if _, _, ok := m.Holder(Running); ok {
		t.Error("slot must remain free after a backend denial")
	}
}

func TestBackendUnlockDenialKeepsHolder(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	session := &testSession{id: 4, user: "dave"}
	ctx := context.Background()

	if err := m.Acquire(ctx, Candidate, session, backend); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	backend.unlockErr = errors.New("external lock mismatch")
	err := m.Release(ctx, Candidate, session, backend)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Op != "unlock" {
		t.Errorf("expected op %q, got %q", "unlock", denied.Op)
	}

	holder, _, ok := m.Holder(Candidate)
	if !ok || holder != Session(session) {
		t.Error("slot must remain held by the original session after a denied unlock")
	}
	if backend.discardCount() != 0 {
		t.Error("discard-changes must not run when the unlock is denied")
	}
}

func TestDiscardFailureDoesNotAbortRelease(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	backend.discardErr = errors.New("nothing to discard")
	session := &testSession{id: 5, user: "erin"}
	ctx := context.Background()

	if err := m.Acquire(ctx, Candidate, session, backend); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := m.Release(ctx, Candidate, session, backend); err != nil {
		t.Fatalf("release should succeed despite discard failure, got %v", err)
	}
	if _, _, ok := m.Holder(Candidate); ok {
		t.Error("slot should be free after release")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	const n = 64

	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	ctx := context.Background()

	sessions := make([]*testSession, n)
	for i := range sessions {
		sessions[i] = &testSession{id: uint32(i + 1), user: "racer"}
	}

	start := make(chan struct{})
	results := make(chan error, n)
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *testSession) {
			defer wg.Done()
			<-start
			results <- m.Acquire(ctx, Running, s, backend)
		}(s)
	}
	close(start)
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			conflicts++
		}
	}

	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
	if conflicts != n-1 {
		t.Fatalf("expected %d conflicts, got %d", n-1, conflicts)
	}

	// The recorded holder must be the winning session, and every loser must
	// have been told about a real holder.
	if _, _, ok := m.Holder(Running); !ok {
		t.Fatal("a holder must be recorded after the race")
	}
}

func TestReleaseSessionForceClears(t *testing.T) {
	m := NewManager(zap.NewNop())
	backend := newFakeBackend()
	sessionA := &testSession{id: 1, user: "alice"}
	sessionB := &testSession{id: 2, user: "bob"}
	ctx := context.Background()

	if err := m.Acquire(ctx, Running, sessionA, backend); err != nil {
		t.Fatalf("acquire running: %v", err)
	}
	if err := m.Acquire(ctx, Candidate, sessionA, backend); err != nil {
		t.Fatalf("acquire candidate: %v", err)
	}
	if err := m.Acquire(ctx, Startup, sessionB, backend); err != nil {
		t.Fatalf("acquire startup: %v", err)
	}

	cleared := m.ReleaseSession(ctx, sessionA, backend)
	if len(cleared) != 2 {
		t.Fatalf("expected 2 cleared datastores, got %v", cleared)
	}
	if _, _, ok := m.Holder(Running); ok {
		t.Error("running should be free after forced release")
	}
	if _, _, ok := m.Holder(Candidate); ok {
		t.Error("candidate should be free after forced release")
	}

	// Another session's lock is untouched.
	holder, _, ok := m.Holder(Startup)
	if !ok || holder != Session(sessionB) {
		t.Error("startup must still be held by sessionB")
	}
}

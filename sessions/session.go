// Package sessions implements the client session registry. Sessions are the
// identities on whose behalf datastore locks are requested and held; the
// registry owns their lifecycle and guarantees that a terminating session
// never leaves a lock behind.
package sessions

import (
	"fmt"
	"sync"
	"time"
)

// Session is a registered client session. It implements locks.Session;
// identity comparison is pointer identity, which the registry guarantees by
// handing out exactly one *Session per session ID.
type Session struct {
	id         uint32
	username   string
	remoteAddr string
	createdAt  time.Time

	mu         sync.Mutex
	lastActive time.Time
}

// SessionID returns the session's stable numeric identity.
func (s *Session) SessionID() uint32 {
	return s.id
}

// String returns the display identifier used in diagnostics and error
// messages, e.g. "session 3 (admin)".
func (s *Session) String() string {
	return fmt.Sprintf("session %d (%s)", s.id, s.username)
}

// Username returns the username the session was opened with.
func (s *Session) Username() string {
	return s.username
}

// RemoteAddr returns the client address the session was opened from.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastActive returns the time of the session's most recent operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// touch updates the session's last-active time.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now
}

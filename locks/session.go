package locks

// Session identifies the client on whose behalf a lock is requested or held.
// The manager never creates or destroys sessions; it only records and clears
// references to them. Implementations must be comparable by identity, so two
// references to the same session compare equal with ==.
type Session interface {
	// SessionID returns the session's stable numeric identity.
	SessionID() uint32

	// String returns a display identifier for diagnostics and error messages.
	String() string
}

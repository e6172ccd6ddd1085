package locks

import "fmt"

// ConflictError reports that a lock operation failed because the datastore is
// held by a session other than the one the caller expected (for Acquire, any
// holder at all; re-entrant acquisition is never granted).
type ConflictError struct {
	Datastore Datastore
	Holder    Session
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("datastore %s is locked by %s", e.Datastore, e.Holder)
}

// NotLockedError reports a release of a datastore that has no current holder.
type NotLockedError struct {
	Datastore Datastore
}

func (e *NotLockedError) Error() string {
	return fmt.Sprintf("lock on datastore %s is not active", e.Datastore)
}

// DeniedError reports that the authoritative backend store refused a lock or
// unlock, typically because the datastore is locked outside this manager's
// visibility. Err carries the backend's own detail.
type DeniedError struct {
	Datastore Datastore
	Op        string // "lock" or "unlock"
	Err       error
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("backend denied %s of datastore %s: %v", e.Op, e.Datastore, e.Err)
}

func (e *DeniedError) Unwrap() error {
	return e.Err
}

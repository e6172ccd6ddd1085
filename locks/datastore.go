package locks

import (
	"errors"
	"fmt"
)

// Datastore names one of the configuration datastores this manager arbitrates.
type Datastore string

// The fixed set of datastores. The lock table is sized to exactly these; the
// set never changes at runtime.
const (
	Running   Datastore = "running"
	Startup   Datastore = "startup"
	Candidate Datastore = "candidate"
)

// ErrUnknownDatastore is returned when a datastore name is not one of the
// fixed set. This is a protocol-level error, not a locking conflict: a
// well-formed caller validates the name before reaching the coordinator.
var ErrUnknownDatastore = errors.New("unknown datastore")

// Datastores returns the fixed set of datastore names in a stable order.
func Datastores() []Datastore {
	return []Datastore{Running, Startup, Candidate}
}

// ParseDatastore resolves a request-supplied name to a known datastore.
func ParseDatastore(name string) (Datastore, error) {
	switch ds := Datastore(name); ds {
	case Running, Startup, Candidate:
		return ds, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDatastore, name)
	}
}

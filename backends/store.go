// Package backends provides the authoritative lock store adapters and their
// shared interface. The lock coordinator's table only mirrors the decisions
// these stores make; a store may refuse a lock the coordinator believes is
// free, for instance when another process holds it on the same store.
package backends

import (
	"github.com/ebogdum/dslockd/locks"
)

// LockStore is an authoritative lock service with a lifecycle. It extends the
// coordinator's Backend contract with resource cleanup.
type LockStore interface {
	locks.Backend

	// Close releases any resources held by the store.
	Close() error
}

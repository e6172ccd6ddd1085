package auth

import (
	"context"
)

// ACLAuthorizer authorizes lock operations from a per-user datastore ACL.
// Users with no ACL entry may operate every datastore; an entry restricts
// the user to exactly the datastores it lists.
type ACLAuthorizer struct {
	acl map[string]map[string]bool // username -> datastore set
}

// NewACLAuthorizer creates an authorizer from the configured ACL.
func NewACLAuthorizer(acl map[string][]string) *ACLAuthorizer {
	compiled := make(map[string]map[string]bool, len(acl))
	for username, datastores := range acl {
		set := make(map[string]bool, len(datastores))
		for _, ds := range datastores {
			set[ds] = true
		}
		compiled[username] = set
	}
	return &ACLAuthorizer{acl: compiled}
}

// Authorize checks if userID may operate the lock on the named datastore.
func (a *ACLAuthorizer) Authorize(ctx context.Context, userID string, datastore string) error {
	set, ok := a.acl[userID]
	if !ok {
		return nil
	}
	if !set[datastore] {
		return ErrPermissionDenied
	}
	return nil
}

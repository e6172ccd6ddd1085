// Package auth provides authentication and authorization for the dslockd
// API. It includes API key authentication for REST endpoints and a
// config-driven per-datastore ACL for lock operations.
package auth

import (
	"context"
	"errors"
)

// Common authentication/authorization errors
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPermissionDenied     = errors.New("permission denied")
)

// Authenticator defines the interface for user authentication
type Authenticator interface {
	// Authenticate validates a token and returns the associated user ID
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// Authorizer defines the interface for authorization checks
type Authorizer interface {
	// Authorize checks if a user may operate the lock on the named datastore
	Authorize(ctx context.Context, userID string, datastore string) error
}

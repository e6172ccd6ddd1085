package auth

import (
	"context"
	"strings"
)

// APIKeyAuthenticator implements authentication using static API keys.
// Keys map to usernames; lock errors and audit events carry the username.
type APIKeyAuthenticator struct {
	users map[string]string // key -> username
}

// NewAPIKeyAuthenticator creates a new API key authenticator. Keys without a
// mapped username authenticate as "admin".
func NewAPIKeyAuthenticator(keys []string, users map[string]string) *APIKeyAuthenticator {
	mapped := make(map[string]string)
	for _, key := range keys {
		if key != "" {
			mapped[key] = "admin"
		}
	}
	for key, username := range users {
		if key != "" && username != "" {
			mapped[key] = username
		}
	}
	return &APIKeyAuthenticator{
		users: mapped,
	}
}

// Authenticate validates a token and returns the associated username.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	// Remove "Bearer " prefix if present
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return "", ErrAuthenticationFailed
	}

	username, ok := a.users[token]
	if !ok {
		return "", ErrAuthenticationFailed
	}
	return username, nil
}

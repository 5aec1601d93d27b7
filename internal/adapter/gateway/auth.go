package gateway

import (
	"crypto/subtle"

	"canvas-copilot/internal/domain"
	"canvas-copilot/internal/infra/config"
)

// Authenticator maps a bearer token to the user identity it belongs to.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

type authEntry struct {
	token  []byte
	userID string
}

// StaticTokenAuth authenticates requests against a static token list
// using constant-time comparison to prevent timing attacks.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from the configured tokens.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, len(tokens))}
	for i, t := range tokens {
		a.entries[i] = authEntry{token: []byte(t.Token), userID: t.UserID}
	}
	return a
}

// Authenticate returns the user ID bound to the token, or ErrAuthInvalid.
func (s *StaticTokenAuth) Authenticate(token string) (string, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return e.userID, nil
		}
	}
	return "", domain.ErrAuthInvalid
}

// Package auth resolves bearer tokens to user IDs.
package auth

import (
	"fmt"
	"os"
	"strings"
)

// Authenticator maps a bearer token to a user ID.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// StaticTokens authenticates against a fixed token→user table, loaded from
// the AUTH_TOKENS env var as comma-separated token:userID pairs.
type StaticTokens map[string]string

// FromEnv builds the token table from AUTH_TOKENS.
func FromEnv() StaticTokens {
	tokens := make(StaticTokens)
	for _, pair := range strings.Split(os.Getenv("AUTH_TOKENS"), ",") {
		token, userID, found := strings.Cut(strings.TrimSpace(pair), ":")
		if found && token != "" && userID != "" {
			tokens[token] = userID
		}
	}
	return tokens
}

// Authenticate resolves token to its user ID.
func (s StaticTokens) Authenticate(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing bearer token")
	}
	userID, ok := s[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return userID, nil
}

// Package auth checks login credentials and issues session tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"maps"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned when a user name or password is wrong.
// It does not say which.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// CredentialStore checks a user name and password.
type CredentialStore interface {
	Check(ctx context.Context, user, pass string) error
}

// dummyPassword stands in for the password of an unknown user. Check rejects
// unknown users even when it matches.
const dummyPassword = "calculator-unknown-user"

// Static is a CredentialStore with a fixed set of users.
type Static struct {
	users map[string]string
}

// NewStatic creates a store from a map of user names to passwords. The map is
// copied.
func NewStatic(users map[string]string) *Static {
	return &Static{users: maps.Clone(users)}
}

// Check implements CredentialStore.
func (s *Static) Check(ctx context.Context, user, pass string) error {
	want, ok := s.users[user]
	if !ok {
		// Unknown users still pay for a comparison.
		want = dummyPassword
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(pass)) != 1 || !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// Authenticator logs users in.
type Authenticator struct {
	store    CredentialStore
	newToken func() string
	logger   *slog.Logger
}

// New creates an authenticator over store.
func New(store CredentialStore) *Authenticator {
	return &Authenticator{
		store:    store,
		newToken: uuid.NewString,
		logger:   slog.Default().With("component", "auth"),
	}
}

// Login checks the credentials and returns a new token.
func (a *Authenticator) Login(ctx context.Context, user, pass string) (string, error) {
	if user == "" || pass == "" {
		return "", ErrInvalidCredentials
	}
	if err := a.store.Check(ctx, user, pass); err != nil {
		a.logger.Warn("failed login", "user", user)
		return "", err
	}
	a.logger.Info("login", "user", user)
	return a.newToken(), nil
}

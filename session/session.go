// Package session establishes the backend session required before storage calls
// and tracks operator logins to the admin console.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured = errors.New("session: storage backend not configured")
	ErrSignIn        = errors.New("session: sign-in failed")
)

// SignInFunc performs the actual credential check against the backend.
type SignInFunc func(ctx context.Context) error

// Manager makes sure a backend session exists. It is idempotent: once sign-in
// succeeded, later calls return immediately until Invalidate is called.
type Manager struct {
	mu            sync.Mutex
	signIn        SignInFunc
	authenticated bool
}

func NewManager(signIn SignInFunc) *Manager {
	return &Manager{signIn: signIn}
}

func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.signIn == nil {
		return ErrNotConfigured
	}
	if m.authenticated {
		return nil
	}

	log.Debug().Msg("session: signing in")
	if err := m.signIn(ctx); err != nil {
		log.Error().Err(err).Msg("session: sign-in failed")
		return fmt.Errorf("%w: %w", ErrSignIn, err)
	}
	m.authenticated = true
	log.Info().Msg("session: signed in")
	return nil
}

// Authenticated reports whether a previous sign-in succeeded.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// Invalidate forces the next EnsureAuthenticated to sign in again.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.authenticated = false
	m.mu.Unlock()
}

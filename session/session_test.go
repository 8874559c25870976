package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SignsInOnce(t *testing.T) {
	calls := 0
	m := NewManager(func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, calls)
	assert.True(t, m.Authenticated())

	m.Invalidate()
	require.NoError(t, m.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestManager_FailureIsRetriedNextTime(t *testing.T) {
	fail := true
	m := NewManager(func(context.Context) error {
		if fail {
			return errors.New("bad credentials")
		}
		return nil
	})

	err := m.EnsureAuthenticated(context.Background())
	assert.ErrorIs(t, err, ErrSignIn)
	assert.False(t, m.Authenticated())

	fail = false
	assert.NoError(t, m.EnsureAuthenticated(context.Background()))
}

func TestManager_NotConfigured(t *testing.T) {
	assert.ErrorIs(t, NewManager(nil).EnsureAuthenticated(context.Background()), ErrNotConfigured)
}

func TestAdminStore_Lifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	s := NewAdminStore(time.Hour)
	s.now = func() time.Time { return now }

	sess := s.Create(AdminOpenID)
	assert.Equal(t, AdminOpenID, sess.OpenID)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
	assert.True(t, s.IsLoggedIn(sess.Token))
	assert.False(t, s.IsLoggedIn("unknown"))
	assert.False(t, s.IsLoggedIn(""))

	now = now.Add(time.Hour)
	assert.False(t, s.IsLoggedIn(sess.Token), "session must expire at ExpiresAt")

	other := s.Create(AdminOpenID)
	s.Clear(other.Token)
	assert.False(t, s.IsLoggedIn(other.Token))
}

func TestAdminStore_DefaultTTL(t *testing.T) {
	s := NewAdminStore(0)
	sess := s.Create(AdminOpenID)
	assert.Equal(t, DefaultAdminTTL, sess.ExpiresAt.Sub(sess.LoginAt))
}

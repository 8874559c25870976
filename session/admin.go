package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultAdminTTL = 12 * time.Hour

// AdminOpenID identifies logins made through the web console.
const AdminOpenID = "web_admin"

type AdminSession struct {
	Token     string    `json:"token"`
	OpenID    string    `json:"openid"`
	LoginAt   time.Time `json:"loginAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminStore keeps operator sessions in memory, keyed by bearer token.
type AdminStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]AdminSession
}

func NewAdminStore(ttl time.Duration) *AdminStore {
	if ttl <= 0 {
		ttl = DefaultAdminTTL
	}
	return &AdminStore{ttl: ttl, now: time.Now, sessions: make(map[string]AdminSession)}
}

// Create starts a session for openid.
func (s *AdminStore) Create(openid string) AdminSession {
	now := s.now()
	sess := AdminSession{
		Token:     uuid.NewString(),
		OpenID:    openid,
		LoginAt:   now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the live session for token. Expired sessions are dropped.
func (s *AdminStore) Get(token string) (AdminSession, bool) {
	if token == "" {
		return AdminSession{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || sess.OpenID == "" {
		return AdminSession{}, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return AdminSession{}, false
	}
	return sess, true
}

func (s *AdminStore) IsLoggedIn(token string) bool {
	_, ok := s.Get(token)
	return ok
}

func (s *AdminStore) Clear(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

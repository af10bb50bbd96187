package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
)

// Store keeps sessions in memory. Sessions do not survive a restart; users
// sign in again and the backend issues a new token.
type Store struct {
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time

	// onExpire is called with the id of every session removed by Sweep.
	onExpire func(id string)
}

// NewStore creates a store whose sessions live for ttl.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// OnExpire registers a callback run for each session removed by Sweep.
func (s *Store) OnExpire(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create stores a new session for a backend token.
func (s *Store) Create(token string, user User) *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.Sessions.Set(float64(n))
	return sess
}

// Get returns a live session. Expired sessions are not returned.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || sess.Expired(s.now()) {
		return nil, false
	}
	return sess, true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.Sessions.Set(float64(n))
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	onExpire := s.onExpire
	s.mu.Unlock()

	metrics.Sessions.Set(float64(n))
	if onExpire != nil {
		for _, id := range expired {
			onExpire(id)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("expired sessions removed", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Package session keeps one workflow per anonymous user session.
//
// Sessions live in an in-memory TTL cache. When an entry expires or is
// deleted, its workflow is closed so preview handles never outlive it.
// Clients prove ownership of a session with a signed token (see token.go).
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/workflow"
)

// Factory builds the workflow for a new session.
type Factory func(sessionID string) *workflow.Workflow

// Session is one user's workflow.
type Session struct {
	ID        string
	Workflow  *workflow.Workflow
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is a TTL cache of sessions.
type Store struct {
	cache   *cache.Cache
	ttl     time.Duration
	factory Factory
	log     *zap.Logger
}

// NewStore creates a store whose sessions expire ttl after creation.
func NewStore(ttl time.Duration, factory Factory, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	// Purge expired sessions at most every 10 minutes.
	cleanup := min(ttl, 10*time.Minute)
	if cleanup <= 0 {
		cleanup = time.Minute
	}

	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Workflow.Close()
			log.Info("🧹 Session closed", zap.String("session_id", id))
		}
	})

	return &Store{cache: c, ttl: ttl, factory: factory, log: log}
}

// Create starts a new session.
func (s *Store) Create() *Session {
	id := uuid.NewString()
	now := time.Now()
	sess := &Session{
		ID:        id,
		Workflow:  s.factory(id),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.cache.Set(id, sess, cache.DefaultExpiration)
	s.log.Info("🆕 Session created", zap.String("session_id", id))
	return sess
}

// Get returns a live session.
func (s *Store) Get(id string) (*Session, bool) {
	if x, found := s.cache.Get(id); found {
		return x.(*Session), true
	}
	return nil, false
}

// Delete ends a session and closes its workflow.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Count returns the number of cached sessions, including expired ones
// not yet purged.
func (s *Store) Count() int {
	return s.cache.ItemCount()
}

// Close ends every session. Flush would skip the eviction hook, so items
// are deleted one by one.
func (s *Store) Close() {
	for id := range s.cache.Items() {
		s.cache.Delete(id)
	}
}

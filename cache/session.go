// Package cache provides shared caches for adapter session credentials
// and expensive enumerable catalogs.
//
// Both caches are shared across all concurrent requests in the process.
// Refreshes are single-flight: one in-flight authentication or fetch is
// shared by every waiter, and the cache slot is only replaced after the
// refresh succeeds (copy-then-publish), so a cancelled or failed refresh
// never leaves a half-written entry behind.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Session is one cached credential for an upstream source.
// Valid iff now < Expiry.
type Session struct {
	Token  string
	Expiry time.Time
}

// Valid reports whether the session can still be used at time now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.Expiry)
}

// AuthFunc authenticates against an upstream and returns a fresh session.
type AuthFunc func(ctx context.Context) (Session, error)

// SessionCache holds one session per adapter key.
type SessionCache struct {
	mu       sync.RWMutex
	sessions map[string]Session
	group    singleflight.Group
	now      func() time.Time
	log      zerolog.Logger
}

// NewSessionCache creates an empty session cache.
func NewSessionCache(log zerolog.Logger) *SessionCache {
	return &SessionCache{
		sessions: make(map[string]Session),
		now:      time.Now,
		log:      log.With().Str("component", "session_cache").Logger(),
	}
}

// Get returns the cached session for key, authenticating via auth when
// the slot is empty or expired. Concurrent callers needing the same
// refresh share a single auth call.
func (c *SessionCache) Get(ctx context.Context, key string, auth AuthFunc) (Session, error) {
	c.mu.RLock()
	session, ok := c.sessions[key]
	c.mu.RUnlock()
	if ok && session.Valid(c.now()) {
		return session, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another waiter may have refreshed while we queued.
		c.mu.RLock()
		current, ok := c.sessions[key]
		c.mu.RUnlock()
		if ok && current.Valid(c.now()) {
			return current, nil
		}

		c.log.Debug().Str("adapter", key).Msg("authenticating")
		fresh, err := auth(ctx)
		if err != nil {
			return Session{}, err
		}

		c.mu.Lock()
		c.sessions[key] = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return Session{}, err
	}
	return result.(Session), nil
}

// Invalidate discards the cached session for key. The next Get
// authenticates afresh. Used when an upstream rejects a session that
// has not yet reached its expiry.
func (c *SessionCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
	c.log.Debug().Str("adapter", key).Msg("session invalidated")
}

package gateway

import (
	"context"
	"sync"
	"time"
)

// accessToken carries its issue and expiry times so staleness is decided from
// the token itself rather than a refresh flag someone forgot to reset.
type accessToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenStore caches the aggregator access token behind an accessor and
// refreshes it on demand shortly before expiry.
type tokenStore struct {
	mu      sync.Mutex
	current accessToken
	skew    time.Duration
	fetch   func(ctx context.Context) (accessToken, error)
	now     func() time.Time
}

func newTokenStore(fetch func(ctx context.Context) (accessToken, error)) *tokenStore {
	return &tokenStore{
		skew:  30 * time.Second,
		fetch: fetch,
		now:   time.Now,
	}
}

func (s *tokenStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Value != "" && s.now().Add(s.skew).Before(s.current.ExpiresAt) {
		return s.current.Value, nil
	}
	tok, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.current = tok
	return tok.Value, nil
}

// Invalidate drops the cached token so the next Get fetches a fresh one; used
// after the gateway answers 401 to a signed request.
func (s *tokenStore) Invalidate() {
	s.mu.Lock()
	s.current = accessToken{}
	s.mu.Unlock()
}

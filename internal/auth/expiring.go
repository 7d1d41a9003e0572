// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// ExpiringStore decorates a SessionStore with a time-to-live. Expired
// sessions read as ErrNotFound but stay in the underlying store.
type ExpiringStore struct {
	next SessionStore
	ttl  time.Duration
	now  func() time.Time
}

// NewExpiringStore wraps next. A ttl <= 0 disables expiry.
func NewExpiringStore(next SessionStore, ttl time.Duration) *ExpiringStore {
	return &ExpiringStore{next: next, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. A nil now keeps the current one.
func (s *ExpiringStore) WithClock(now func() time.Time) *ExpiringStore {
	if now != nil {
		s.now = now
	}
	return s
}

// TTL returns the configured time-to-live.
func (s *ExpiringStore) TTL() time.Duration {
	return s.ttl
}

// Put stamps the creation time and expiry, then stores the session.
func (s *ExpiringStore) Put(ctx context.Context, session *Session) error {
	if session != nil {
		session.CreatedAt = s.now()
		session.ExpiresAt = time.Time{}
		if s.ttl > 0 {
			session.ExpiresAt = session.CreatedAt.Add(s.ttl)
		}
	}
	//nolint:wrapcheck // decorator passes through
	return s.next.Put(ctx, session)
}

// Get returns the session unless created_at + ttl has passed. ExpiresAt is
// re-derived from the configured ttl.
func (s *ExpiringStore) Get(ctx context.Context, id string) (*Session, error) {
	session, err := s.next.Get(ctx, id)
	if err != nil {
		//nolint:wrapcheck // decorator passes through
		return nil, err
	}
	if s.ttl <= 0 {
		return session, nil
	}
	session.ExpiresAt = session.CreatedAt.Add(s.ttl)
	if session.IsExpiredAt(s.now()) {
		return nil, oops.Code("SESSION_EXPIRED").
			With("expired_at", session.ExpiresAt).
			Wrap(ErrNotFound)
	}
	return session, nil
}

// Delete removes the session, expired or not.
func (s *ExpiringStore) Delete(ctx context.Context, id string) error {
	//nolint:wrapcheck // decorator passes through
	return s.next.Delete(ctx, id)
}

var _ SessionStore = (*ExpiringStore)(nil)

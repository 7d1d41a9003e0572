// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	"github.com/holomush/warden/internal/auth/mocks"
	"github.com/holomush/warden/pkg/errutil"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewSession(t *testing.T) {
	t.Run("creates session with random id", func(t *testing.T) {
		s, err := auth.NewSession("user-1")
		require.NoError(t, err)
		assert.Len(t, s.ID, 2*auth.TokenBytes)
		assert.Equal(t, "user-1", s.UserID)
		assert.False(t, s.CreatedAt.IsZero())
		assert.True(t, s.ExpiresAt.IsZero())
	})

	t.Run("rejects empty user id", func(t *testing.T) {
		_, err := auth.NewSession("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
	})
}

func TestSession_IsExpiredAt(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("never expires without ExpiresAt", func(t *testing.T) {
		s := &auth.Session{ID: "x", UserID: "u", CreatedAt: base}
		assert.False(t, s.IsExpiredAt(base.Add(100*365*24*time.Hour)))
	})

	t.Run("not expired at the boundary", func(t *testing.T) {
		s := &auth.Session{ID: "x", UserID: "u", CreatedAt: base, ExpiresAt: base.Add(time.Hour)}
		assert.False(t, s.IsExpiredAt(base.Add(time.Hour)))
	})

	t.Run("expired after the boundary", func(t *testing.T) {
		s := &auth.Session{ID: "x", UserID: "u", CreatedAt: base, ExpiresAt: base.Add(time.Hour)}
		assert.True(t, s.IsExpiredAt(base.Add(time.Hour+time.Nanosecond)))
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()

	s, err := auth.NewSession("user-1")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, s))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)

		got.UserID = "mutated"
		again, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", again.UserID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		err := store.Put(ctx, &auth.Session{UserID: "user-1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, s.ID))
		_, err := store.Get(ctx, s.ID)
		require.ErrorIs(t, err, auth.ErrNotFound)
		require.ErrorIs(t, store.Delete(ctx, s.ID), auth.ErrNotFound)
	})
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()

	ids := make([]string, 100)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := auth.NewSession(fmt.Sprintf("user-%d", i))
			if err != nil {
				return
			}
			ids[i] = s.ID
			_ = store.Put(ctx, s)
			_, _ = store.Get(ctx, s.ID)
			if i%2 == 0 {
				_ = store.Delete(ctx, s.ID)
			}
		}(i)
	}
	wg.Wait()

	live := 0
	for _, id := range ids {
		if _, err := store.Get(ctx, id); err == nil {
			live++
		}
	}
	assert.Equal(t, 50, live)
}

func TestExpiringStore(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps expiry and expires after ttl", func(t *testing.T) {
		clock := newFakeClock()
		inner := auth.NewMemoryStore()
		store := auth.NewExpiringStore(inner, time.Minute).WithClock(clock.Now)

		s := &auth.Session{ID: "sid", UserID: "user-1"}
		require.NoError(t, store.Put(ctx, s))
		assert.Equal(t, clock.Now(), s.CreatedAt)
		assert.Equal(t, clock.Now().Add(time.Minute), s.ExpiresAt)

		clock.Advance(time.Minute)
		got, err := store.Get(ctx, "sid")
		require.NoError(t, err, "a session is still valid exactly at its expiry")
		assert.Equal(t, "user-1", got.UserID)

		clock.Advance(time.Second)
		_, err = store.Get(ctx, "sid")
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")

		// Expired entries are not evicted.
		_, err = inner.Get(ctx, "sid")
		require.NoError(t, err)
	})

	t.Run("restamps the created time on put", func(t *testing.T) {
		clock := newFakeClock()
		store := auth.NewExpiringStore(auth.NewMemoryStore(), time.Hour).WithClock(clock.Now)

		s := &auth.Session{ID: "old", UserID: "u", CreatedAt: clock.Now().Add(-2 * time.Hour)}
		require.NoError(t, store.Put(ctx, s))
		assert.Equal(t, clock.Now(), s.CreatedAt)

		_, err := store.Get(ctx, "old")
		require.NoError(t, err)
	})

	t.Run("expiry is judged from the stored created time", func(t *testing.T) {
		clock := newFakeClock()
		inner := auth.NewMemoryStore()
		store := auth.NewExpiringStore(inner, time.Hour).WithClock(clock.Now)

		// Written directly to the inner store, as a persisted record would be.
		require.NoError(t, inner.Put(ctx, &auth.Session{ID: "old", UserID: "u", CreatedAt: clock.Now().Add(-2 * time.Hour)}))

		_, err := store.Get(ctx, "old")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	for _, ttl := range []time.Duration{0, -time.Second} {
		t.Run(fmt.Sprintf("ttl %s never expires", ttl), func(t *testing.T) {
			clock := newFakeClock()
			store := auth.NewExpiringStore(auth.NewMemoryStore(), ttl).WithClock(clock.Now)
			assert.Equal(t, ttl, store.TTL())

			s := &auth.Session{ID: "sid", UserID: "user-1"}
			require.NoError(t, store.Put(ctx, s))
			assert.True(t, s.ExpiresAt.IsZero())

			clock.Advance(10 * 365 * 24 * time.Hour)
			got, err := store.Get(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, "user-1", got.UserID)
		})
	}

	t.Run("delete passes through even when expired", func(t *testing.T) {
		clock := newFakeClock()
		inner := auth.NewMemoryStore()
		store := auth.NewExpiringStore(inner, time.Second).WithClock(clock.Now)

		require.NoError(t, store.Put(ctx, &auth.Session{ID: "sid", UserID: "u"}))
		clock.Advance(time.Hour)
		require.NoError(t, store.Delete(ctx, "sid"))
		_, err := inner.Get(ctx, "sid")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestPersistentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip through a repository stores only the hash", func(t *testing.T) {
		repo := memory.NewSessionRepository()
		store := auth.NewPersistentStore(repo)

		s, err := auth.NewSession("user-1")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, s))

		records, err := repo.FindSessionsBy(ctx, auth.Eq(auth.SessionFieldUserID, "user-1"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, auth.HashToken(s.ID), records[0].SessionHash)
		assert.NotEqual(t, s.ID, records[0].SessionHash)

		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, "user-1", got.UserID)

		require.NoError(t, store.Delete(ctx, s.ID))
		remaining, err := repo.FindSessionsBy(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		_, err = store.Get(ctx, s.ID)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("several matching records read as not found", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := auth.NewPersistentStore(repo)

		filter := []auth.Field{auth.Eq(auth.SessionFieldHash, auth.HashToken("sid"))}
		repo.On("FindSessionsBy", ctx, filter).Return([]*auth.UserSession{
			{ID: ulid.Make(), UserID: "a", SessionHash: auth.HashToken("sid")},
			{ID: ulid.Make(), UserID: "b", SessionHash: auth.HashToken("sid")},
		}, nil)

		_, err := store.Get(ctx, "sid")
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_AMBIGUOUS")

		err = store.Delete(ctx, "sid")
		require.ErrorIs(t, err, auth.ErrNotFound)
		repo.AssertNotCalled(t, "RemoveSession", mock.Anything, mock.Anything)
	})

	t.Run("records carrying another hash are ignored", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := auth.NewPersistentStore(repo)

		filter := []auth.Field{auth.Eq(auth.SessionFieldHash, auth.HashToken("sid"))}
		repo.On("FindSessionsBy", ctx, filter).Return([]*auth.UserSession{
			{ID: ulid.Make(), UserID: "a", SessionHash: auth.HashToken("other")},
			{ID: ulid.Make(), UserID: "b", SessionHash: auth.HashToken("sid")},
		}, nil)

		got, err := store.Get(ctx, "sid")
		require.NoError(t, err)
		assert.Equal(t, "b", got.UserID)
	})

	t.Run("empty id never reaches the repository", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := auth.NewPersistentStore(repo)

		_, err := store.Get(ctx, "")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("repository failures propagate", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := auth.NewPersistentStore(repo)
		dbErr := errors.New("connection reset")

		repo.On("AddSession", ctx, mock.AnythingOfType("*auth.UserSession")).Return(dbErr)
		repo.On("FindSessionsBy", ctx, mock.Anything).Return(nil, dbErr)

		err := store.Put(ctx, &auth.Session{ID: "sid", UserID: "u"})
		require.ErrorIs(t, err, dbErr)
		errutil.AssertErrorCode(t, err, "SESSION_PERSIST_FAILED")

		_, err = store.Get(ctx, "sid")
		require.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session associates an opaque session id with a user id.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time // zero if the session never expires
}

// NewSession creates a Session with a fresh random id.
func NewSession(userID string) (*Session, error) {
	if userID == "" {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be empty")
	}
	id, _, err := GenerateToken()
	if err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session id").
			Wrap(err)
	}
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt returns true if the session has an expiry before t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(t)
}

// SessionStore associates session ids with sessions.
type SessionStore interface {
	// Put stores the session under its ID.
	Put(ctx context.Context, session *Session) error

	// Get returns the session with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session with id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process SessionStore safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Put stores a copy of session.
func (m *MemoryStore) Put(_ context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return oops.Code("SESSION_INVALID").Errorf("session id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	return &s, nil
}

// Delete removes the session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

// UserSession column names recognized by SessionRepository implementations.
const (
	SessionFieldID     = "id"
	SessionFieldUserID = "user_id"
	SessionFieldHash   = "session_hash"
)

var userSessionFields = map[string]struct{}{
	SessionFieldID:     {},
	SessionFieldUserID: {},
	SessionFieldHash:   {},
}

// ValidateSessionFields returns ErrUnknownField for the first field that is
// not a user-session column.
func ValidateSessionFields(fields []Field) error {
	return validateFields(fields, userSessionFields, "user_sessions")
}

// UserSession is the persisted form of a Session.
type UserSession struct {
	ID          ulid.ULID
	UserID      string
	SessionHash string
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero if the session never expires
}

// SessionRepository manages persisted user sessions.
type SessionRepository interface {
	// FindSessionsBy returns every record matching all fields.
	FindSessionsBy(ctx context.Context, filter ...Field) ([]*UserSession, error)

	// AddSession stores a new record.
	AddSession(ctx context.Context, session *UserSession) error

	// RemoveSession deletes the record with id, or returns ErrNotFound.
	RemoveSession(ctx context.Context, id ulid.ULID) error
}

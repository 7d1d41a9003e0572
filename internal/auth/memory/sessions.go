// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// SessionRepository is an in-memory auth.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]auth.UserSession
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[ulid.ULID]auth.UserSession)}
}

// FindSessionsBy returns every record matching all fields, oldest first.
func (r *SessionRepository) FindSessionsBy(_ context.Context, filter ...auth.Field) ([]*auth.UserSession, error) {
	if err := auth.ValidateSessionFields(filter); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*auth.UserSession
	for _, s := range r.sessions {
		if !matchSession(&s, filter) {
			continue
		}
		sessionCopy := s
		out = append(out, &sessionCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Compare(out[j].ID) < 0
	})
	return out, nil
}

// AddSession stores a copy of session.
func (r *SessionRepository) AddSession(_ context.Context, session *auth.UserSession) error {
	if session == nil {
		return oops.Code("SESSION_INVALID").Errorf("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return oops.Code("SESSION_ALREADY_EXISTS").
			With("record_id", session.ID.String()).
			Wrap(auth.ErrAlreadyExists)
	}
	r.sessions[session.ID] = *session
	return nil
}

// RemoveSession deletes the record with id.
func (r *SessionRepository) RemoveSession(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").
			With("record_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

func sessionColumn(s *auth.UserSession, name string) string {
	switch name {
	case auth.SessionFieldID:
		return s.ID.String()
	case auth.SessionFieldUserID:
		return s.UserID
	case auth.SessionFieldHash:
		return s.SessionHash
	}
	return ""
}

func matchSession(s *auth.UserSession, filter []auth.Field) bool {
	for _, f := range filter {
		want, ok := f.Text()
		if !ok || sessionColumn(s, f.Name) != want {
			return false
		}
	}
	return true
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

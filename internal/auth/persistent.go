// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PersistentStore is a SessionStore backed by a SessionRepository.
// Session ids are hashed before they reach the repository.
type PersistentStore struct {
	repo SessionRepository
}

// NewPersistentStore creates a PersistentStore over repo.
func NewPersistentStore(repo SessionRepository) *PersistentStore {
	return &PersistentStore{repo: repo}
}

// Put persists the session as a new record.
func (s *PersistentStore) Put(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return oops.Code("SESSION_INVALID").Errorf("session id cannot be empty")
	}
	record := &UserSession{
		ID:          ulid.Make(),
		UserID:      session.UserID,
		SessionHash: HashToken(session.ID),
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	}
	if err := s.repo.AddSession(ctx, record); err != nil {
		return oops.Code("SESSION_PERSIST_FAILED").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// Get returns the session when exactly one record carries its id.
func (s *PersistentStore) Get(ctx context.Context, id string) (*Session, error) {
	record, err := s.findOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		UserID:    record.UserID,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Delete removes the single record carrying id.
func (s *PersistentStore) Delete(ctx context.Context, id string) error {
	record, err := s.findOne(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveSession(ctx, record.ID); err != nil {
		return oops.Code("SESSION_REMOVE_FAILED").
			With("record_id", record.ID.String()).
			Wrap(err)
	}
	return nil
}

func (s *PersistentStore) findOne(ctx context.Context, id string) (*UserSession, error) {
	if id == "" {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	found, err := s.repo.FindSessionsBy(ctx, Eq(SessionFieldHash, HashToken(id)))
	if err != nil {
		return nil, oops.Code("SESSION_LOOKUP_FAILED").Wrap(err)
	}
	records := found[:0:0]
	for _, record := range found {
		if record != nil && VerifyToken(id, record.SessionHash) {
			records = append(records, record)
		}
	}
	switch len(records) {
	case 0:
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	case 1:
		return records[0], nil
	default:
		return nil, oops.Code("SESSION_AMBIGUOUS").
			With("matches", len(records)).
			Wrap(ErrNotFound)
	}
}

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SessionStore = (*PersistentStore)(nil)
)

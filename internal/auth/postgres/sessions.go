// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

const selectSessions = `SELECT id, user_id, session_hash, created_at, expires_at FROM user_sessions`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db Querier
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindSessionsBy returns every record matching all fields, oldest first.
func (r *SessionRepository) FindSessionsBy(ctx context.Context, filter ...auth.Field) ([]*auth.UserSession, error) {
	if err := auth.ValidateSessionFields(filter); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	where, args := whereClause(filter, 1)
	rows, err := r.db.Query(ctx, selectSessions+where+" ORDER BY id", args...)
	if err != nil {
		return nil, oops.Code("SESSION_QUERY_FAILED").
			With("operation", "find sessions").
			With("filter", fieldNames(filter)).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.UserSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_QUERY_FAILED").
				With("operation", "scan session").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_QUERY_FAILED").
			With("operation", "iterate sessions").
			Wrap(err)
	}
	return sessions, nil
}

// AddSession stores a new record.
func (r *SessionRepository) AddSession(ctx context.Context, session *auth.UserSession) error {
	if session == nil {
		return oops.Code("SESSION_INVALID").Errorf("session cannot be nil")
	}

	var expiresAt *time.Time
	if !session.ExpiresAt.IsZero() {
		expiresAt = &session.ExpiresAt
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, session_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.UserID,
		session.SessionHash,
		session.CreatedAt,
		expiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SESSION_ALREADY_EXISTS").
				With("id", session.ID.String()).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert user_session").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// RemoveSession deletes the record with id.
func (r *SessionRepository) RemoveSession(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete user_session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanSession(row pgx.Row) (*auth.UserSession, error) {
	var (
		idStr     string
		session   auth.UserSession
		expiresAt *time.Time
	)
	err := row.Scan(
		&idStr,
		&session.UserID,
		&session.SessionHash,
		&session.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	session.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if expiresAt != nil {
		session.ExpiresAt = *expiresAt
	}
	return &session, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

const selectSessions = `SELECT id, user_id, session_hash, created_at, expires_at FROM user_sessions`

// SessionRepository implements auth.SessionRepository on SQLite.
type SessionRepository struct {
	db *sql.DB
}

// FindSessionsBy returns every record matching all fields, oldest first.
func (r *SessionRepository) FindSessionsBy(ctx context.Context, filter ...auth.Field) ([]*auth.UserSession, error) {
	if err := auth.ValidateSessionFields(filter); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	where, args := whereClause(filter)
	rows, err := r.db.QueryContext(ctx, selectSessions+where+" ORDER BY id", args...)
	if err != nil {
		return nil, oops.Code("SESSION_QUERY_FAILED").
			With("filter", fieldNames(filter)).
			Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*auth.UserSession
	for rows.Next() {
		var (
			idStr     string
			session   auth.UserSession
			createdAt int64
			expiresAt sql.NullInt64
		)
		if err := rows.Scan(&idStr, &session.UserID, &session.SessionHash, &createdAt, &expiresAt); err != nil {
			return nil, oops.Code("SESSION_QUERY_FAILED").With("operation", "scan session").Wrap(err)
		}
		if session.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
		}
		session.CreatedAt = fromMillis(createdAt)
		if expiresAt.Valid {
			session.ExpiresAt = fromMillis(expiresAt.Int64)
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_QUERY_FAILED").Wrap(err)
	}
	return sessions, nil
}

// AddSession stores a new record.
func (r *SessionRepository) AddSession(ctx context.Context, session *auth.UserSession) error {
	if session == nil {
		return oops.Code("SESSION_INVALID").Errorf("session cannot be nil")
	}

	var expiresAt any
	if !session.ExpiresAt.IsZero() {
		expiresAt = toMillis(session.ExpiresAt)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (id, user_id, session_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID.String(),
		session.UserID,
		session.SessionHash,
		toMillis(session.CreatedAt),
		expiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SESSION_ALREADY_EXISTS").
				With("id", session.ID.String()).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("user_id", session.UserID).
			Wrap(err)
	}
	return nil
}

// RemoveSession deletes the record with id.
func (r *SessionRepository) RemoveSession(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = ?`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if affected == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

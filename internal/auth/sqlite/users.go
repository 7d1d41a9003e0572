// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

const selectUsers = `SELECT id, email, hashed_password, session_id, reset_token, created_at, updated_at FROM users`

// UserRepository implements auth.UserDirectory on SQLite.
type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// FindUserBy returns the single user matching every field.
func (r *UserRepository) FindUserBy(ctx context.Context, filter ...auth.Field) (*auth.User, error) {
	if err := auth.ValidateUserFields(filter); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	where, args := whereClause(filter)
	rows, err := r.db.QueryContext(ctx, selectUsers+where+" LIMIT 2", args...)
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("filter", fieldNames(filter)).
			Wrap(err)
	}
	defer func() { _ = rows.Close() }()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").Wrap(err)
	}

	switch len(users) {
	case 0:
		return nil, oops.Code("USER_NOT_FOUND").
			With("filter", fieldNames(filter)).
			Wrap(auth.ErrNotFound)
	case 1:
		return users[0], nil
	default:
		return nil, oops.Code("USER_AMBIGUOUS").
			With("filter", fieldNames(filter)).
			Wrap(auth.ErrMultipleResults)
	}
}

// AddUser stores a new user. A zero ID is replaced with a fresh one.
func (r *UserRepository) AddUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	if user == nil {
		return nil, oops.Code("USER_INVALID").Errorf("user cannot be nil")
	}

	stored := *user
	if stored.ID.Compare(ulid.ULID{}) == 0 {
		stored.ID = ulid.Make()
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, hashed_password, session_id, reset_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		stored.ID.String(),
		stored.Email,
		stored.HashedPassword,
		nullable(stored.SessionID),
		nullable(stored.ResetToken),
		toMillis(stored.CreatedAt),
		toMillis(stored.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("email", stored.Email).
				Wrap(auth.ErrAlreadyExists)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("email", stored.Email).
			Wrap(err)
	}
	return &stored, nil
}

// UpdateUser sets the given columns on the user with id.
func (r *UserRepository) UpdateUser(ctx context.Context, id ulid.ULID, fields ...auth.Field) error {
	if err := auth.ValidateUserUpdate(fields); err != nil {
		return err //nolint:wrapcheck // already coded
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		sets = append(sets, f.Name+" = ?")
		args = append(args, f.Arg())
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(r.now()), id.String())

	//nolint:gosec // G202: column names are validated against a fixed set
	result, err := r.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_ALREADY_EXISTS").
				With("user_id", id.String()).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("user_id", id.String()).
			Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("user_id", id.String()).Wrap(err)
	}
	if affected == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(rows *sql.Rows) (*auth.User, error) {
	var (
		idStr                 string
		user                  auth.User
		sessionID, resetToken sql.NullString
		createdAt, updatedAt  int64
	)
	if err := rows.Scan(&idStr, &user.Email, &user.HashedPassword, &sessionID, &resetToken, &createdAt, &updatedAt); err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "scan user").Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	user.ID = id
	if sessionID.Valid {
		user.SessionID = &sessionID.String
	}
	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var _ auth.UserDirectory = (*UserRepository)(nil)

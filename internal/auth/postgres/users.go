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

const selectUsers = `SELECT id, email, hashed_password, session_id, reset_token, created_at, updated_at FROM users`

// UserRepository implements auth.UserDirectory using PostgreSQL.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// FindUserBy returns the single user matching every field.
func (r *UserRepository) FindUserBy(ctx context.Context, filter ...auth.Field) (*auth.User, error) {
	if err := auth.ValidateUserFields(filter); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	where, args := whereClause(filter, 1)
	rows, err := r.db.Query(ctx, selectUsers+where+" LIMIT 2", args...)
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", "find user").
			With("filter", fieldNames(filter)).
			Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_QUERY_FAILED").
				With("operation", "scan user").
				Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").
			With("operation", "iterate users").
			Wrap(err)
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
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, hashed_password, session_id, reset_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		stored.ID.String(),
		stored.Email,
		stored.HashedPassword,
		stored.SessionID,
		stored.ResetToken,
		stored.CreatedAt,
		stored.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("email", stored.Email).
				Wrap(auth.ErrAlreadyExists)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
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

	set, args := setClause(fields, 2)
	if set != "" {
		set += ", "
	}
	//nolint:gosec // G202: column names are validated against a fixed set
	sql := "UPDATE users SET " + set + "updated_at = now() WHERE id = $1"

	result, err := r.db.Exec(ctx, sql, append([]any{id.String()}, args...)...)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_ALREADY_EXISTS").
				With("user_id", id.String()).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", id.String()).
			With("fields", fieldNames(fields)).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		user  auth.User
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.HashedPassword,
		&user.SessionID,
		&user.ResetToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	return &user, nil
}

var _ auth.UserDirectory = (*UserRepository)(nil)

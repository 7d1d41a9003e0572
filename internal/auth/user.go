// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User column names recognized by UserDirectory implementations.
const (
	FieldID             = "id"
	FieldEmail          = "email"
	FieldHashedPassword = "hashed_password"
	FieldSessionID      = "session_id"
	FieldResetToken     = "reset_token"
)

var userFields = map[string]struct{}{
	FieldID:             {},
	FieldEmail:          {},
	FieldHashedPassword: {},
	FieldSessionID:      {},
	FieldResetToken:     {},
}

// User is an account that can authenticate.
// SessionID and ResetToken hold token hashes, never plaintext tokens.
type User struct {
	ID             ulid.ULID
	Email          string
	HashedPassword string
	SessionID      *string
	ResetToken     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User with a fresh ID.
func NewUser(email, hashedPassword string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if hashedPassword == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	now := time.Now()
	return &User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Field is a column name and value pair used for lookups and updates.
// A nil Value clears the column.
type Field struct {
	Name  string
	Value any
}

// Eq builds a Field.
func Eq(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Text returns the value as a string. It reports false for nil values.
func (f Field) Text() (string, bool) {
	switch v := f.Value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case ulid.ULID:
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Arg returns the value in a form suitable for a SQL placeholder.
func (f Field) Arg() any {
	s, ok := f.Text()
	if !ok {
		return nil
	}
	return s
}

// ValidateUserFields returns ErrUnknownField for the first field that is not
// a user column.
func ValidateUserFields(fields []Field) error {
	return validateFields(fields, userFields, "user")
}

// ValidateUserUpdate checks the fields of an update. Beyond
// ValidateUserFields it rejects changing the id and clearing the email or
// password hash.
func ValidateUserUpdate(fields []Field) error {
	if err := ValidateUserFields(fields); err != nil {
		return err
	}
	for _, f := range fields {
		switch f.Name {
		case FieldID:
			return oops.Code("FIELD_IMMUTABLE").
				With("field", f.Name).
				Wrap(ErrUnknownField)
		case FieldEmail, FieldHashedPassword:
			if v, ok := f.Text(); !ok || v == "" {
				return oops.Code("FIELD_REQUIRED").
					With("field", f.Name).
					Errorf("%s cannot be empty", f.Name)
			}
		}
	}
	return nil
}

func validateFields(fields []Field, known map[string]struct{}, table string) error {
	for _, f := range fields {
		if _, ok := known[f.Name]; !ok {
			return oops.Code("FIELD_UNKNOWN").
				With("table", table).
				With("field", f.Name).
				Wrap(ErrUnknownField)
		}
	}
	return nil
}

// UserDirectory manages user persistence.
type UserDirectory interface {
	// FindUserBy returns the single user matching every field.
	// Returns ErrNotFound on no match and ErrMultipleResults on several.
	FindUserBy(ctx context.Context, filter ...Field) (*User, error)

	// AddUser stores a new user. Returns ErrAlreadyExists on duplicate email.
	AddUser(ctx context.Context, user *User) (*User, error)

	// UpdateUser sets the given columns on the user with id.
	// Returns ErrUnknownField for unrecognized columns and ErrNotFound
	// when no user has id.
	UpdateUser(ctx context.Context, id ulid.ULID, fields ...Field) error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth
// persistence contracts. They are safe for concurrent use and lose their
// contents when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
)

// UserDirectory is an in-memory auth.UserDirectory.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[ulid.ULID]auth.User
	now   func() time.Time
}

// NewUserDirectory creates an empty UserDirectory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		users: make(map[ulid.ULID]auth.User),
		now:   time.Now,
	}
}

// FindUserBy returns the single user matching every field.
func (d *UserDirectory) FindUserBy(_ context.Context, filter ...auth.Field) (*auth.User, error) {
	if err := auth.ValidateUserFields(filter); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *auth.User
	for _, u := range d.users {
		if !matchUser(&u, filter) {
			continue
		}
		if found != nil {
			return nil, oops.Code("USER_AMBIGUOUS").
				With("filter", describe(filter)).
				Wrap(auth.ErrMultipleResults)
		}
		userCopy := u
		found = &userCopy
	}
	if found == nil {
		return nil, oops.Code("USER_NOT_FOUND").
			With("filter", describe(filter)).
			Wrap(auth.ErrNotFound)
	}
	return found, nil
}

// AddUser stores a copy of user. A zero ID is replaced with a fresh one.
func (d *UserDirectory) AddUser(_ context.Context, user *auth.User) (*auth.User, error) {
	if user == nil {
		return nil, oops.Code("USER_INVALID").Errorf("user cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.users {
		if existing.Email == user.Email {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("email", user.Email).
				Wrap(auth.ErrAlreadyExists)
		}
	}

	stored := *user
	if stored.ID.Compare(ulid.ULID{}) == 0 {
		stored.ID = ulid.Make()
	}
	now := d.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	d.users[stored.ID] = stored

	result := stored
	return &result, nil
}

// UpdateUser sets the given columns on the user with id.
func (d *UserDirectory) UpdateUser(_ context.Context, id ulid.ULID, fields ...auth.Field) error {
	if err := auth.ValidateUserUpdate(fields); err != nil {
		return err //nolint:wrapcheck // already coded
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}

	for _, f := range fields {
		if f.Name == auth.FieldEmail {
			email, _ := f.Text()
			for otherID, other := range d.users {
				if otherID != id && other.Email == email {
					return oops.Code("USER_ALREADY_EXISTS").
						With("email", email).
						Wrap(auth.ErrAlreadyExists)
				}
			}
		}
		setColumn(&u, f)
	}
	u.UpdatedAt = d.now()
	d.users[id] = u
	return nil
}

func userColumn(u *auth.User, name string) (string, bool) {
	switch name {
	case auth.FieldID:
		return u.ID.String(), true
	case auth.FieldEmail:
		return u.Email, true
	case auth.FieldHashedPassword:
		return u.HashedPassword, true
	case auth.FieldSessionID:
		return deref(u.SessionID)
	case auth.FieldResetToken:
		return deref(u.ResetToken)
	}
	return "", false
}

// setColumn applies a field already checked by auth.ValidateUserUpdate.
func setColumn(u *auth.User, f auth.Field) {
	value, ok := f.Text()
	switch f.Name {
	case auth.FieldEmail:
		u.Email = value
	case auth.FieldHashedPassword:
		u.HashedPassword = value
	case auth.FieldSessionID:
		u.SessionID = ptr(value, ok)
	case auth.FieldResetToken:
		u.ResetToken = ptr(value, ok)
	}
}

func matchUser(u *auth.User, filter []auth.Field) bool {
	for _, f := range filter {
		want, wantOK := f.Text()
		got, gotOK := userColumn(u, f.Name)
		if wantOK != gotOK || want != got {
			return false
		}
	}
	return true
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

func ptr(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

func describe(fields []auth.Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

var _ auth.UserDirectory = (*UserDirectory)(nil)

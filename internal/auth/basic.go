// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// BasicAuth authenticates requests carrying HTTP Basic credentials.
type BasicAuth struct {
	NoAuth
	users  UserDirectory
	hasher PasswordHasher
	logger *slog.Logger
}

// NewBasicAuth creates a BasicAuth. A nil logger uses slog.Default().
func NewBasicAuth(users UserDirectory, hasher PasswordHasher, logger *slog.Logger) (*BasicAuth, error) {
	if users == nil {
		return nil, oops.Code("STRATEGY_INVALID").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("STRATEGY_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BasicAuth{
		users:  users,
		hasher: hasher,
		logger: logger.With("strategy", string(KindBasic)),
	}, nil
}

// AuthorizationHeader returns the request's Authorization header.
func (b *BasicAuth) AuthorizationHeader(r Request) (string, bool) {
	return authorizationHeader(r)
}

// CurrentUser resolves the user named by the request's Basic credentials.
// Each stage short-circuits to "no user" on malformed input.
func (b *BasicAuth) CurrentUser(ctx context.Context, r Request) (user *User, err error) {
	defer func() { recordDecision(KindBasic, user, err) }()

	header, ok := b.AuthorizationHeader(r)
	if !ok {
		return nil, nil
	}
	token, ok := ParseScheme(header, BasicScheme)
	if !ok {
		return nil, nil
	}
	decoded, ok := DecodeBase64(token)
	if !ok {
		return nil, nil
	}
	email, password, ok := SplitCredentials(decoded)
	if !ok {
		return nil, nil
	}
	return b.UserFromCredentials(ctx, email, password)
}

// UserFromCredentials returns the user with email if password matches.
func (b *BasicAuth) UserFromCredentials(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, nil
	}

	user, err := b.users.FindUserBy(ctx, Eq(FieldEmail, email))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMultipleResults) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_BASIC_LOOKUP_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	valid, err := b.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		b.logger.WarnContext(ctx, "stored password hash is unreadable",
			"user_id", user.ID.String(),
			"error", err)
		return nil, nil
	}
	if !valid {
		return nil, nil
	}
	return user, nil
}

var _ Strategy = (*BasicAuth)(nil)

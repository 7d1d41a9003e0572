// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/holomush/warden/internal/auth"

// Service handles registration, login checks, per-user sessions and
// password resets. Its sessions live on the user record: one active session
// per user.
type Service struct {
	users  UserDirectory
	hasher PasswordHasher
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new Service using slog.Default().
func NewService(users UserDirectory, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users UserDirectory, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("SERVICE_INVALID").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("SERVICE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		users:  users,
		hasher: hasher,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// dummyPasswordHash is verified against when the user does not exist so that
// unknown and known emails take the same time.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterUser creates a user with a hashed password.
// Returns ErrAlreadyExists if the email is taken.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (user *User, err error) {
	ctx, end := s.start(ctx, "register_user")
	defer func() { end(err, user != nil) }()

	_, err = s.users.FindUserBy(ctx, Eq(FieldEmail, email))
	switch {
	case err == nil, errors.Is(err, ErrMultipleResults):
		return nil, oops.Code("USER_ALREADY_EXISTS").
			Errorf("user %s already exists: %w", email, ErrAlreadyExists)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	candidate, err := NewUser(email, hashed)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	user, err = s.users.AddUser(ctx, candidate)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("USER_ALREADY_EXISTS").Wrap(err)
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "add user").
			Wrap(err)
	}
	return user, nil
}

// ValidLogin reports whether password is correct for email. Unknown users
// and mismatches return false without an error.
func (s *Service) ValidLogin(ctx context.Context, email, password string) (valid bool, err error) {
	ctx, end := s.start(ctx, "valid_login")
	defer func() { end(err, valid) }()

	user, lookupErr := s.users.FindUserBy(ctx, Eq(FieldEmail, email))
	if lookupErr != nil {
		if !noMatch(lookupErr) {
			return false, oops.Code("LOGIN_CHECK_FAILED").
				With("operation", "find user by email").
				Wrap(lookupErr)
		}
		user = nil
	}

	targetHash := dummyPasswordHash
	if user != nil {
		targetHash = user.HashedPassword
	}

	ok, verifyErr := s.hasher.Verify(password, targetHash)
	if user == nil {
		return false, nil
	}
	if verifyErr != nil {
		s.logger.WarnContext(ctx, "stored password hash is unreadable",
			"user_id", user.ID.String(),
			"error", verifyErr)
		return false, nil
	}
	if !ok {
		return false, nil
	}

	if s.hasher.NeedsUpgrade(user.HashedPassword) {
		s.upgradeHash(ctx, user, password)
	}
	return true, nil
}

// upgradeHash re-hashes a legacy password hash. Failures are logged only.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdateUser(ctx, user.ID, Eq(FieldHashedPassword, newHash))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"user_id", user.ID.String(),
			"error", err.Error())
	}
}

// CreateSession starts a session for the user with email and returns its id.
// Any earlier session of that user is replaced. Unknown emails yield an
// empty id and no error.
func (s *Service) CreateSession(ctx context.Context, email string) (sessionID string, err error) {
	ctx, end := s.start(ctx, "create_session")
	defer func() { end(err, sessionID != "") }()

	user, err := s.users.FindUserBy(ctx, Eq(FieldEmail, email))
	if err != nil {
		if noMatch(err) {
			return "", nil
		}
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session id").
			Wrap(err)
	}

	if err := s.users.UpdateUser(ctx, user.ID, Eq(FieldSessionID, hash)); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session id").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return token, nil
}

// GetUserFromSessionID returns the user whose current session is sessionID,
// or nil when sessionID is empty or matches nobody.
func (s *Service) GetUserFromSessionID(ctx context.Context, sessionID string) (user *User, err error) {
	ctx, end := s.start(ctx, "get_user_from_session_id")
	defer func() { end(err, user != nil) }()

	if sessionID == "" {
		return nil, nil
	}
	user, err = s.users.FindUserBy(ctx, Eq(FieldSessionID, HashToken(sessionID)))
	if err != nil {
		if noMatch(err) {
			return nil, nil
		}
		return nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "find user by session id").
			Wrap(err)
	}
	return user, nil
}

// DestroySession clears the session of userID. A zero userID is a no-op.
func (s *Service) DestroySession(ctx context.Context, userID ulid.ULID) (err error) {
	ctx, end := s.start(ctx, "destroy_session")
	defer func() { end(err, true) }()

	if userID.Compare(ulid.ULID{}) == 0 {
		return nil
	}
	if err := s.users.UpdateUser(ctx, userID, Eq(FieldSessionID, nil)); err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// GetResetPasswordToken issues a fresh reset token for email, replacing any
// earlier one. Returns ErrNoSuchUser for unknown emails.
func (s *Service) GetResetPasswordToken(ctx context.Context, email string) (token string, err error) {
	ctx, end := s.start(ctx, "get_reset_password_token")
	defer func() { end(err, token != "") }()

	user, err := s.users.FindUserBy(ctx, Eq(FieldEmail, email))
	if err != nil {
		if noMatch(err) {
			return "", oops.Code("RESET_NO_SUCH_USER").Wrap(ErrNoSuchUser)
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if err := s.users.UpdateUser(ctx, user.ID, Eq(FieldResetToken, hash)); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return token, nil
}

// UpdatePassword sets a new password for the user carrying resetToken and
// consumes the token. Returns ErrInvalidToken if no user carries it.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, newPassword string) (err error) {
	ctx, end := s.start(ctx, "update_password")
	defer func() { end(err, true) }()

	if resetToken == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	user, err := s.users.FindUserBy(ctx, Eq(FieldResetToken, HashToken(resetToken)))
	if err != nil {
		if noMatch(err) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "find user by reset token").
			Wrap(err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.users.UpdateUser(ctx, user.ID,
		Eq(FieldHashedPassword, hashed),
		Eq(FieldResetToken, nil),
	)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "store password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// start opens a span for operation. The returned func ends it and records
// the outcome: ok=false with a nil error counts as a failure, not an error.
func (s *Service) start(ctx context.Context, operation string) (context.Context, func(err error, ok bool)) {
	ctx, span := s.tracer.Start(ctx, "auth.Service."+operation,
		trace.WithAttributes(attribute.String("auth.operation", operation)))
	return ctx, func(err error, ok bool) {
		status := StatusSuccess
		switch {
		case err != nil:
			status = StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case !ok:
			status = StatusFailure
		}
		recordOperation(operation, status)
		span.End()
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSessionCookie is the cookie carrying the session id when none is configured.
const DefaultSessionCookie = "_my_session_id"

// Session lifecycle event labels.
const (
	EventCreated   = "created"
	EventDestroyed = "destroyed"
)

// SessionConfig configures session-based strategies.
type SessionConfig struct {
	// CookieName names the cookie carrying the session id.
	CookieName string
	// TTL bounds session lifetime. Zero or negative means no expiry.
	TTL time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now overrides the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// SessionAuth authenticates requests by a session id cookie.
type SessionAuth struct {
	NoAuth
	kind       Kind
	users      UserDirectory
	hasher     PasswordHasher
	store      SessionStore
	ttl        time.Duration
	cookieName string
	logger     *slog.Logger
}

// NewSessionAuth creates a SessionAuth over an arbitrary SessionStore.
func NewSessionAuth(users UserDirectory, hasher PasswordHasher, store SessionStore, cfg SessionConfig) (*SessionAuth, error) {
	return newSessionAuth(KindSession, users, hasher, store, cfg)
}

// NewMemorySessionAuth creates a SessionAuth with a fresh in-memory store.
// Sessions never expire.
func NewMemorySessionAuth(users UserDirectory, hasher PasswordHasher, cfg SessionConfig) (*SessionAuth, error) {
	return newSessionAuth(KindSession, users, hasher, NewMemoryStore(), cfg)
}

// NewExpiringSessionAuth creates a SessionAuth whose in-memory sessions
// expire after cfg.TTL.
func NewExpiringSessionAuth(users UserDirectory, hasher PasswordHasher, cfg SessionConfig) (*SessionAuth, error) {
	store := NewExpiringStore(NewMemoryStore(), cfg.TTL).WithClock(cfg.Now)
	return newSessionAuth(KindSessionExpiry, users, hasher, store, cfg)
}

// NewPersistentSessionAuth creates a SessionAuth whose sessions are persisted
// through repo and expire after cfg.TTL.
func NewPersistentSessionAuth(users UserDirectory, hasher PasswordHasher, repo SessionRepository, cfg SessionConfig) (*SessionAuth, error) {
	if repo == nil {
		return nil, oops.Code("STRATEGY_INVALID").Errorf("session repository is required")
	}
	store := NewExpiringStore(NewPersistentStore(repo), cfg.TTL).WithClock(cfg.Now)
	return newSessionAuth(KindSessionPersist, users, hasher, store, cfg)
}

func newSessionAuth(kind Kind, users UserDirectory, hasher PasswordHasher, store SessionStore, cfg SessionConfig) (*SessionAuth, error) {
	if users == nil {
		return nil, oops.Code("STRATEGY_INVALID").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("STRATEGY_INVALID").Errorf("password hasher is required")
	}
	if store == nil {
		return nil, oops.Code("STRATEGY_INVALID").Errorf("session store is required")
	}
	cookie := cfg.CookieName
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var ttl time.Duration
	if expiring, ok := store.(*ExpiringStore); ok && expiring.TTL() > 0 {
		ttl = expiring.TTL()
	}
	return &SessionAuth{
		kind:       kind,
		users:      users,
		hasher:     hasher,
		store:      store,
		ttl:        ttl,
		cookieName: cookie,
		logger:     logger.With("strategy", string(kind)),
	}, nil
}

// Kind returns the strategy kind this SessionAuth was built as.
func (a *SessionAuth) Kind() Kind {
	return a.kind
}

// TTL returns the session lifetime, or zero when sessions never expire.
func (a *SessionAuth) TTL() time.Duration {
	return a.ttl
}

// CookieName returns the name of the session cookie.
func (a *SessionAuth) CookieName() string {
	return a.cookieName
}

// AuthorizationHeader returns the request's Authorization header.
func (a *SessionAuth) AuthorizationHeader(r Request) (string, bool) {
	return authorizationHeader(r)
}

// SessionCookie returns the session id carried by r.
func (a *SessionAuth) SessionCookie(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Cookie(a.cookieName)
}

// CreateSession starts a session for userID and returns its id.
// An empty userID yields an empty id and no error.
func (a *SessionAuth) CreateSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	session, err := NewSession(userID)
	if err != nil {
		return "", err
	}
	if err := a.store.Put(ctx, session); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("user_id", userID).
			Wrap(err)
	}
	recordSessionEvent(a.kind, EventCreated)
	a.logger.DebugContext(ctx, "session created", "user_id", userID)
	return session.ID, nil
}

// UserIDForSessionID returns the user id bound to sessionID. Unknown and
// expired sessions both yield an empty id and no error.
func (a *SessionAuth) UserIDForSessionID(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	session, err := a.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("SESSION_LOOKUP_FAILED").Wrap(err)
	}
	return session.UserID, nil
}

// CurrentUser resolves the user owning the request's session cookie.
func (a *SessionAuth) CurrentUser(ctx context.Context, r Request) (user *User, err error) {
	defer func() { recordDecision(a.kind, user, err) }()

	sessionID, ok := a.SessionCookie(r)
	if !ok {
		return nil, nil
	}
	userID, err := a.UserIDForSessionID(ctx, sessionID)
	if err != nil || userID == "" {
		return nil, err
	}
	user, err = a.users.FindUserBy(ctx, Eq(FieldID, userID))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMultipleResults) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_SESSION_LOOKUP_FAILED").
			With("operation", "find user by id").
			Wrap(err)
	}
	return user, nil
}

// DestroySession ends the session named by the request's cookie. It
// reports false when the request has no cookie or the session is unknown or
// expired. Persisted records are removed even once expired.
func (a *SessionAuth) DestroySession(ctx context.Context, r Request) (bool, error) {
	sessionID, ok := a.SessionCookie(r)
	if !ok || sessionID == "" {
		return false, nil
	}
	userID, err := a.UserIDForSessionID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if userID == "" && a.kind != KindSessionPersist {
		return false, nil
	}
	if err := a.store.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("SESSION_DESTROY_FAILED").Wrap(err)
	}
	if userID == "" {
		a.logger.DebugContext(ctx, "expired session record removed")
		return false, nil
	}
	recordSessionEvent(a.kind, EventDestroyed)
	a.logger.DebugContext(ctx, "session destroyed", "user_id", userID)
	return true, nil
}

// Login checks the credentials and starts a session for the user.
// Returns ErrMissingEmail, ErrMissingPassword, ErrNotFound or
// ErrWrongPassword for rejected attempts.
func (a *SessionAuth) Login(ctx context.Context, email, password string) (*User, string, error) {
	if email == "" {
		return nil, "", oops.Code("AUTH_EMAIL_MISSING").Wrap(ErrMissingEmail)
	}
	if password == "" {
		return nil, "", oops.Code("AUTH_PASSWORD_MISSING").Wrap(ErrMissingPassword)
	}

	user, err := a.users.FindUserBy(ctx, Eq(FieldEmail, email))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMultipleResults) {
			return nil, "", oops.Code("AUTH_USER_NOT_FOUND").Wrap(ErrNotFound)
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}

	valid, err := a.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}
	if !valid {
		return nil, "", oops.Code("AUTH_WRONG_PASSWORD").Wrap(ErrWrongPassword)
	}

	sessionID, err := a.CreateSession(ctx, user.ID.String())
	if err != nil {
		return nil, "", err
	}
	return user, sessionID, nil
}

var _ Strategy = (*SessionAuth)(nil)

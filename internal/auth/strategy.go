// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Kind names an authentication strategy.
type Kind string

// Strategy kinds accepted by NewStrategy.
const (
	KindNone           Kind = "none"
	KindBasic          Kind = "basic_auth"
	KindSession        Kind = "session_auth"
	KindSessionExpiry  Kind = "session_exp_auth"
	KindSessionPersist Kind = "session_db_auth"
)

// Kinds lists every supported strategy kind.
func Kinds() []Kind {
	return []Kind{KindNone, KindBasic, KindSession, KindSessionExpiry, KindSessionPersist}
}

// Strategy decides whether a request needs authentication and who made it.
type Strategy interface {
	// RequireAuth reports whether path needs authentication.
	RequireAuth(path string, excludedPaths []string) bool

	// AuthorizationHeader returns the request's Authorization header.
	AuthorizationHeader(r Request) (string, bool)

	// CurrentUser returns the authenticated user, or nil when the request
	// carries no valid credential. Errors are reserved for datastore failures.
	CurrentUser(ctx context.Context, r Request) (*User, error)
}

// NoAuth requires authentication on every non-excluded path but never
// identifies anyone.
type NoAuth struct{}

// RequireAuth reports whether path needs authentication.
func (NoAuth) RequireAuth(path string, excludedPaths []string) bool {
	return RequireAuth(path, excludedPaths)
}

// AuthorizationHeader always reports no header.
func (NoAuth) AuthorizationHeader(Request) (string, bool) {
	return "", false
}

// CurrentUser always reports no user.
func (NoAuth) CurrentUser(context.Context, Request) (*User, error) {
	return nil, nil
}

// authorizationHeader reads the Authorization header from r.
func authorizationHeader(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Header(AuthorizationHeaderName)
}

// StrategyDeps carries the collaborators NewStrategy may need.
type StrategyDeps struct {
	Users    UserDirectory
	Hasher   PasswordHasher
	Sessions SessionRepository // only for KindSessionPersist
	Session  SessionConfig
	Logger   *slog.Logger
}

// NewStrategy builds the strategy named by kind.
func NewStrategy(kind Kind, deps StrategyDeps) (Strategy, error) {
	if deps.Session.Logger == nil {
		deps.Session.Logger = deps.Logger
	}
	switch kind {
	case KindNone, "":
		return NoAuth{}, nil
	case KindBasic:
		return NewBasicAuth(deps.Users, deps.Hasher, deps.Logger)
	case KindSession:
		return NewMemorySessionAuth(deps.Users, deps.Hasher, deps.Session)
	case KindSessionExpiry:
		return NewExpiringSessionAuth(deps.Users, deps.Hasher, deps.Session)
	case KindSessionPersist:
		if deps.Sessions == nil {
			return nil, oops.Code("STRATEGY_INVALID").
				With("kind", string(kind)).
				Errorf("session repository is required")
		}
		return NewPersistentSessionAuth(deps.Users, deps.Hasher, deps.Sessions, deps.Session)
	default:
		return nil, oops.Code("STRATEGY_UNKNOWN").
			With("kind", string(kind)).
			Errorf("unknown auth strategy %q", kind)
	}
}

var _ Strategy = NoAuth{}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrMultipleResults is returned by a lookup that expected one record but
// matched several. Callers treat it as "no result".
var ErrMultipleResults = errors.New("multiple results")

// ErrUnknownField is returned when a filter or update names a field that is
// not a recognized column.
var ErrUnknownField = errors.New("unknown field")

// ErrAlreadyExists is returned when registering an email that is taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrNoSuchUser is returned when a reset token is requested for an unknown email.
var ErrNoSuchUser = errors.New("no such user")

// ErrInvalidToken is returned when no user carries the presented reset token.
var ErrInvalidToken = errors.New("invalid token")

// Session login failures.
var (
	ErrMissingEmail    = errors.New("email missing")
	ErrMissingPassword = errors.New("password missing")
	ErrWrongPassword   = errors.New("wrong password")
)

// noMatch reports whether err means a lookup found no single record.
func noMatch(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMultipleResults)
}

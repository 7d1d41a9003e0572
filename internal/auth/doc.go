// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides authentication primitives for Warden.
//
// # Strategies
//
// A Strategy decides whether a path needs authentication and resolves the
// user behind a request. NewStrategy builds one by Kind:
//   - NoAuth - never identifies anyone
//   - BasicAuth - HTTP Basic credentials checked against a UserDirectory
//   - SessionAuth - a session id cookie resolved through a SessionStore
//
// The session kinds differ only in their store. Expiry and persistence are
// SessionStore decorators (ExpiringStore, PersistentStore) layered over a
// MemoryStore or a SessionRepository.
//
// # Service
//
// Service manages accounts kept in a UserDirectory: registration, login
// checks, one session per user, and single-use password reset tokens.
// Session ids and reset tokens are returned to callers in plaintext; only
// their SHA-256 hashes are stored.
//
// Constructors validate their dependencies and return an error when one is
// missing.
package auth

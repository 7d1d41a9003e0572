// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth persistence contracts on PostgreSQL.
// The schema is owned by internal/store migrations.
package postgres

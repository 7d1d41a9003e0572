// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite implements the auth persistence contracts on an embedded
// SQLite database, for single-node deployments and local tooling.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/holomush/warden/internal/auth"
)

//go:embed schema.sql
var schema string

// DB is an open SQLite database holding users and user sessions.
type DB struct {
	sqlDB *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("SQLITE_PATH_REQUIRED").Errorf("database path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, oops.Code("SQLITE_SCHEMA_FAILED").With("path", path).Wrap(err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}
	return db.sqlDB.Close() //nolint:wrapcheck // close error needs no context
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.sqlDB.PingContext(ctx); err != nil {
		return oops.Code("SQLITE_PING_FAILED").Wrap(err)
	}
	return nil
}

// Users returns a UserDirectory over the database.
func (db *DB) Users() *UserRepository {
	return &UserRepository{db: db.sqlDB, now: time.Now}
}

// Sessions returns a SessionRepository over the database.
func (db *DB) Sessions() *SessionRepository {
	return &SessionRepository{db: db.sqlDB}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// whereClause renders filter as a conjunction with ? placeholders. Nil values
// compare with IS NULL.
func whereClause(filter []auth.Field) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filter))
	var args []any
	for _, f := range filter {
		arg := f.Arg()
		if arg == nil {
			parts = append(parts, f.Name+" IS NULL")
			continue
		}
		args = append(args, arg)
		parts = append(parts, f.Name+" = ?")
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func fieldNames(fields []auth.Field) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return fmt.Sprint(names)
}

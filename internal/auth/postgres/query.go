// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/holomush/warden/internal/auth"
)

// Querier is the subset of *pgxpool.Pool used by the repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// whereClause renders filter as a conjunction. Placeholders are numbered
// from start. Nil values compare with IS NULL. Field names must already be
// validated against the table's columns.
func whereClause(filter []auth.Field, start int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for _, f := range filter {
		arg := f.Arg()
		if arg == nil {
			parts = append(parts, f.Name+" IS NULL")
			continue
		}
		args = append(args, arg)
		parts = append(parts, fmt.Sprintf("%s = $%d", f.Name, start+len(args)-1))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// setClause renders fields as assignments numbered from start.
func setClause(fields []auth.Field, start int) (string, []any) {
	parts := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for i, f := range fields {
		parts = append(parts, fmt.Sprintf("%s = $%d", f.Name, start+i))
		args = append(args, f.Arg())
	}
	return strings.Join(parts, ", "), args
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func fieldNames(fields []auth.Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

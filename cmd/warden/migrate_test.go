// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/pkg/errutil"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	version uint
	dirty   bool
	status  store.MigrationStatus
	upErr   error
	closed  bool
}

func (m *fakeMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.calls = append(m.calls, "down")
	return nil
}

func (m *fakeMigrator) Steps(n int) error {
	m.calls = append(m.calls, "steps")
	m.steps = n
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, nil
}

func (m *fakeMigrator) Force(v int) error {
	m.calls = append(m.calls, "force")
	m.forced = v
	return nil
}

func (m *fakeMigrator) Status() (store.MigrationStatus, error) {
	return m.status, nil
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

func migratorDeps(m *fakeMigrator, gotURL *string) *Deps {
	return &Deps{
		MigratorFactory: func(databaseURL string) (Migrator, error) {
			*gotURL = databaseURL
			return m, nil
		},
	}
}

var postgresArgs = []string{"--db-driver", "postgres", "--db-url", "postgres://localhost/warden"}

// withPostgres adds postgresArgs to args ahead of any "--" separator.
func withPostgres(args ...string) []string {
	out := make([]string, 0, len(args)+len(postgresArgs))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, postgresArgs...)
			return append(out, args[i:]...)
		}
		out = append(out, arg)
	}
	return append(out, postgresArgs...)
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
		wantErrCode string
	}{
		{
			name:        "valid integer",
			input:       "3",
			wantVersion: 3,
		},
		{
			name:        "zero is valid",
			input:       "0",
			wantVersion: 0,
		},
		{
			name:        "non-numeric returns error",
			input:       "abc",
			wantErr:     true,
			wantErrCode: "INVALID_VERSION",
		},
		{
			name:        "float parses as integer (Sscanf stops at dot)",
			input:       "1.5",
			wantVersion: 1,
		},
		{
			name:        "trailing chars are ignored (Sscanf stops at non-digit)",
			input:       "3abc",
			wantVersion: 3,
		},
		{
			name:        "negative is valid",
			input:       "-1",
			wantVersion: -1,
		},
		{
			name:        "empty string returns error",
			input:       "",
			wantErr:     true,
			wantErrCode: "INVALID_VERSION",
		},
		{
			name:        "whitespace only returns error",
			input:       "   ",
			wantErr:     true,
			wantErrCode: "INVALID_VERSION",
		},
		{
			name:        "leading whitespace is handled",
			input:       "  42",
			wantVersion: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
				assert.Equal(t, 0, version)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantVersion, version)
			}
		})
	}
}

func TestMigrateCmd_DefaultsToUp(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{version: 2}
	var url string

	out, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", withPostgres("migrate")...)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/warden", url)
	assert.Equal(t, []string{"up"}, m.calls)
	assert.True(t, m.closed)
	assert.Contains(t, out, "Migrations completed successfully")
	assert.Contains(t, out, "Schema version: 2")
}

func TestMigrateCmd_Subcommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantCmd string
		wantOut string
		check   func(t *testing.T, m *fakeMigrator)
	}{
		{
			name:    "up",
			args:    []string{"migrate", "up"},
			wantCmd: "up",
			wantOut: "Migrations completed successfully",
		},
		{
			name:    "down",
			args:    []string{"migrate", "down"},
			wantCmd: "down",
			wantOut: "All migrations rolled back",
		},
		{
			name:    "steps",
			args:    []string{"migrate", "steps", "2"},
			wantCmd: "steps",
			wantOut: "Schema version: 1",
			check: func(t *testing.T, m *fakeMigrator) {
				assert.Equal(t, 2, m.steps)
			},
		},
		{
			name:    "negative steps after separator",
			args:    []string{"migrate", "steps", "--", "-1"},
			wantCmd: "steps",
			check: func(t *testing.T, m *fakeMigrator) {
				assert.Equal(t, -1, m.steps)
			},
		},
		{
			name:    "force",
			args:    []string{"migrate", "force", "1"},
			wantCmd: "force",
			wantOut: "Forced version 1",
			check: func(t *testing.T, m *fakeMigrator) {
				assert.Equal(t, 1, m.forced)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			m := &fakeMigrator{version: 1}
			var url string

			out, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", withPostgres(tt.args...)...)
			require.NoError(t, err)

			assert.Equal(t, []string{tt.wantCmd}, m.calls)
			assert.Contains(t, out, tt.wantOut)
			if tt.check != nil {
				tt.check(t, m)
			}
		})
	}
}

func TestMigrateCmd_Status(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{status: store.MigrationStatus{
		Version: 1,
		Applied: []uint{1},
		Pending: []uint{2},
	}}
	var url string

	out, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", withPostgres("migrate", "status")...)
	require.NoError(t, err)

	assert.Contains(t, out, "Schema version: 1 (clean)")
	assert.Contains(t, out, "applied  000001_create_users")
	assert.Contains(t, out, "pending  000002_create_user_sessions")
}

func TestMigrateCmd_Version_Dirty(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{version: 2, dirty: true}
	var url string

	out, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", withPostgres("migrate", "version")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 2 (dirty)")
}

func TestMigrateCmd_Errors(t *testing.T) {
	t.Run("sqlite driver is rejected", func(t *testing.T) {
		isolate(t)
		m := &fakeMigrator{}
		var url string

		_, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", "migrate", "--db-driver", "sqlite")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATE_UNSUPPORTED")
		assert.Empty(t, m.calls)
	})

	t.Run("postgres without url", func(t *testing.T) {
		isolate(t)
		var url string

		_, err := execute(t, newMigrateCmd(migratorDeps(&fakeMigrator{}, &url)), "", "migrate", "--db-driver", "postgres")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("up failure is returned and migrator closed", func(t *testing.T) {
		isolate(t)
		m := &fakeMigrator{upErr: oops.Code("MIGRATION_UP_FAILED").Errorf("boom")}
		var url string

		_, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", withPostgres("migrate", "up")...)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
		assert.True(t, m.closed)
	})

	t.Run("invalid force version", func(t *testing.T) {
		isolate(t)
		m := &fakeMigrator{}
		var url string

		_, err := execute(t, newMigrateCmd(migratorDeps(m, &url)), "", withPostgres("migrate", "force", "abc")...)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_VERSION")
		assert.Empty(t, m.calls)
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"auth-type":        "auth.type",
	"session-name":     "auth.session_name",
	"session-duration": "auth.session_duration",
	"exclude-path":     "auth.excluded_paths",
	"db-driver":        "database.driver",
	"db-url":           "database.url",
	"db-path":          "database.path",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"metrics-addr":     "metrics.addr",
}

// RegisterFlags adds the configuration flags to fs. Their defaults are
// informational; unset flags never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("auth-type", d.Auth.Type, "authentication strategy")
	fs.String("session-name", d.Auth.SessionName, "session cookie name")
	fs.Int("session-duration", d.Auth.SessionDuration, "session lifetime in seconds (0 = never expires)")
	fs.StringSlice("exclude-path", nil, "path excluded from authentication (repeatable)")
	fs.String("db-driver", d.Database.Driver, "storage driver: memory, sqlite or postgres")
	fs.String("db-url", "", "PostgreSQL connection URL")
	fs.String("db-path", d.Database.Path, "SQLite database file")
	fs.String("log-format", d.Log.Format, "log format: json or text")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	fs.String("metrics-addr", d.Metrics.Addr, "listen address for the auth check and metrics server")
}

// flagKey returns the posflag callback for fs. Flags the operator did not
// set are skipped.
func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

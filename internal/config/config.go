// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads warden configuration. Sources are layered, later
// ones winning: built-in defaults, a YAML file, legacy environment
// variables, WARDEN_ environment variables and command-line flags.
package config

import (
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/xdg"
)

// EnvPrefix prefixes environment variables read by Load. Nested keys are
// separated by a double underscore: WARDEN_AUTH__TYPE sets auth.type.
const EnvPrefix = "WARDEN_"

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full warden configuration.
type Config struct {
	Auth     AuthConfig     `koanf:"auth" json:"auth" jsonschema:"description=Authentication strategy settings"`
	Database DatabaseConfig `koanf:"database" json:"database" jsonschema:"description=User and session storage"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
}

// AuthConfig selects and configures the authentication strategy.
type AuthConfig struct {
	Type            string   `koanf:"type" json:"type" jsonschema:"enum=none,enum=basic_auth,enum=session_auth,enum=session_exp_auth,enum=session_db_auth"`
	SessionName     string   `koanf:"session_name" json:"session_name" jsonschema:"minLength=1,description=Cookie carrying the session id"`
	SessionDuration int      `koanf:"session_duration" json:"session_duration" jsonschema:"minimum=0,description=Session lifetime in seconds; 0 never expires"`
	ExcludedPaths   []string `koanf:"excluded_paths" json:"excluded_paths" jsonschema:"description=Paths that skip authentication; a trailing * matches a prefix"`
}

// Kind returns the strategy kind.
func (c AuthConfig) Kind() auth.Kind {
	return auth.Kind(c.Type)
}

// SessionTTL returns the session lifetime. Zero means no expiry.
func (c AuthConfig) SessionTTL() time.Duration {
	if c.SessionDuration <= 0 {
		return 0
	}
	return time.Duration(c.SessionDuration) * time.Second
}

// DatabaseConfig selects where users and sessions are stored.
type DatabaseConfig struct {
	Driver          string `koanf:"driver" json:"driver" jsonschema:"enum=memory,enum=sqlite,enum=postgres"`
	URL             string `koanf:"url" json:"url" jsonschema:"description=PostgreSQL connection URL"`
	Path            string `koanf:"path" json:"path" jsonschema:"description=SQLite database file"`
	ConnectAttempts int    `koanf:"connect_attempts" json:"connect_attempts" jsonschema:"minimum=1"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the metrics server.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr" jsonschema:"description=Listen address for /metrics and health probes"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	dbPath, err := xdg.DatabaseFile()
	if err != nil {
		dbPath = xdg.DatabaseFileName
	}
	return Config{
		Auth: AuthConfig{
			Type:        string(auth.KindNone),
			SessionName: auth.DefaultSessionCookie,
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            dbPath,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// Validate checks values that bypass the file schema.
func (c Config) Validate() error {
	kinds := auth.Kinds()
	if !slices.Contains(kinds, c.Auth.Kind()) {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.type").
			With("value", c.Auth.Type).
			Errorf("unknown auth type %q", c.Auth.Type)
	}
	if c.Auth.SessionName == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.session_name").
			Errorf("session cookie name cannot be empty")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.Path == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "database.path").
				Errorf("sqlite driver needs a database path")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "database.url").
				Errorf("postgres driver needs a database url")
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "database.driver").
			With("value", c.Database.Driver).
			Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.ConnectAttempts < 1 {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.connect_attempts").
			Errorf("connect attempts must be at least 1")
	}
	return nil
}

// LoadOptions controls Load.
type LoadOptions struct {
	// File is the YAML config file. When empty, the XDG default is used if
	// it exists.
	File string
	// Flags are applied last. Only flags registered by RegisterFlags are read.
	Flags *pflag.FlagSet
}

// Load builds the configuration from every source.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, value := range flatten(Defaults()) {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	path, explicit := opts.File, opts.File != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnv), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return oops.Code("CONFIG_FILE_UNREADABLE").With("path", path).Wrap(err)
	}
	if err := ValidateSchema(data); err != nil {
		return oops.Code("CONFIG_SCHEMA_INVALID").
			With("path", path).
			Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// envValue maps WARDEN_AUTH__SESSION_NAME to auth.session_name. List
// values are comma separated. Empty variables are ignored.
func envValue(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "auth.excluded_paths" {
		var paths []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		return key, paths
	}
	return key, value
}

// legacyEnv maps the historical unprefixed variables. An unparsable
// SESSION_DURATION counts as 0. Empty variables are ignored.
func legacyEnv(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	switch key {
	case "AUTH_TYPE":
		return "auth.type", value
	case "SESSION_NAME":
		return "auth.session_name", value
	case "SESSION_DURATION":
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds < 0 {
			seconds = 0
		}
		return "auth.session_duration", seconds
	case "DATABASE_URL":
		return "database.url", value
	}
	return "", nil
}

func flatten(c Config) map[string]any {
	return map[string]any{
		"auth.type":                 c.Auth.Type,
		"auth.session_name":         c.Auth.SessionName,
		"auth.session_duration":     c.Auth.SessionDuration,
		"auth.excluded_paths":       c.Auth.ExcludedPaths,
		"database.driver":           c.Database.Driver,
		"database.url":              c.Database.URL,
		"database.path":             c.Database.Path,
		"database.connect_attempts": c.Database.ConnectAttempts,
		"log.format":                c.Log.Format,
		"log.level":                 c.Log.Level,
		"metrics.addr":              c.Metrics.Addr,
	}
}

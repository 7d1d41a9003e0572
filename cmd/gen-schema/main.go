// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema generates the config file JSON Schema.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/logging"
)

func main() {
	logging.SetDefault("gen-schema", "", "text")

	schema, err := config.GenerateSchema()
	if err != nil {
		slog.Error("generating schema", "error", err)
		os.Exit(1)
	}

	outPath := filepath.Join("schemas", "config.schema.json")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		slog.Error("creating directory", "path", filepath.Dir(outPath), "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, append(schema, '\n'), 0o600); err != nil {
		slog.Error("writing schema", "path", outPath, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, SchemaID, schema["$id"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"auth", "database", "log", "metrics"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, schema, "required")
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty document", "", false},
		{"full document", "auth:\n  type: basic_auth\n  session_duration: 10\nlog:\n  format: json\n", false},
		{"unknown top-level key", "server:\n  port: 1\n", true},
		{"wrong type", "auth:\n  session_duration: forever\n", true},
		{"bad log format", "log:\n  format: xml\n", true},
		{"not yaml", "auth: [unclosed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.NotEmpty(t, FormatSchemaError(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFormatSchemaError_Nil(t *testing.T) {
	assert.Empty(t, FormatSchemaError(nil))
}

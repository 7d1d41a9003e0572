// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces the value of a PII attribute.
const Redaction = "***"

// PIIFields names attributes whose values never reach the log output.
var PIIFields = []string{"email", "ssn", "password", "name", "phone"}

// FilterDatum replaces the value of every field=value pair in message with
// redaction. A value runs up to the next separator or the end of message.
func FilterDatum(fields []string, redaction, message, separator string) string {
	return filterDatum(datumPattern(fields, separator), redaction, message)
}

// datumPattern compiles the field=value matcher, or returns nil for no fields.
func datumPattern(fields []string, separator string) *regexp.Regexp {
	if len(fields) == 0 {
		return nil
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(`(` + strings.Join(quoted, "|") + `)=[^` + regexp.QuoteMeta(separator) + `]+`)
}

func filterDatum(pattern *regexp.Regexp, redaction, message string) string {
	if pattern == nil || message == "" {
		return message
	}
	return pattern.ReplaceAllString(message, "${1}="+strings.ReplaceAll(redaction, "$", "$$"))
}

// redactHandler masks PII attributes and field=value; fragments in messages.
type redactHandler struct {
	handler slog.Handler
	fields  map[string]struct{}
	pattern *regexp.Regexp
}

func newRedactHandler(h slog.Handler, fields []string) *redactHandler {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &redactHandler{handler: h, fields: set, pattern: datumPattern(fields, ";")}
}

// Handle rewrites the record with PII masked.
func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, filterDatum(h.pattern, Redaction, r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, out)
}

// Enabled returns true if the level is enabled.
func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes masked.
func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.redact(a)
	}
	return &redactHandler{handler: h.handler.WithAttrs(masked), fields: h.fields, pattern: h.pattern}
}

// WithGroup returns a new handler with the given group.
func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{handler: h.handler.WithGroup(name), fields: h.fields, pattern: h.pattern}
}

func (h *redactHandler) redact(a slog.Attr) slog.Attr {
	if h.isPII(a.Key) {
		return slog.String(a.Key, Redaction)
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]any, len(group))
		for i, g := range group {
			masked[i] = h.redact(g)
		}
		return slog.Group(a.Key, masked...)
	case slog.KindAny:
		if m, ok := a.Value.Any().(map[string]any); ok {
			return slog.Any(a.Key, h.redactMap(m))
		}
	}
	return a
}

func (h *redactHandler) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case h.isPII(k):
			out[k] = Redaction
		case isMap(v):
			out[k] = h.redactMap(v.(map[string]any)) //nolint:forcetypeassert // checked by isMap
		default:
			out[k] = v
		}
	}
	return out
}

func (h *redactHandler) isPII(key string) bool {
	_, ok := h.fields[strings.ToLower(key)]
	return ok
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

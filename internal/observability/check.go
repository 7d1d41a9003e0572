// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/holomush/warden/internal/auth"
)

// Check results recorded in warden_auth_checks_total.
const (
	ResultAuthenticated = "authenticated"
	ResultDenied        = "denied"
	ResultExcluded      = "excluded"
	ResultError         = "error"
)

// OriginalURIHeader carries the path being authorized when the check runs
// as a reverse-proxy subrequest.
const OriginalURIHeader = "X-Original-URI"

// UserHeader is set on successful checks to the authenticated user's id.
const UserHeader = "X-Auth-User"

// CheckHandler answers reverse-proxy auth subrequests: 200 when the original
// path is excluded or the request authenticates, 401 otherwise. The none
// strategy admits every request.
type CheckHandler struct {
	strategy auth.Strategy
	kind     auth.Kind
	excluded *auth.ExcludedPaths
	metrics  *Metrics
	logger   *slog.Logger
}

// NewCheckHandler creates a CheckHandler. A nil logger uses slog.Default().
func NewCheckHandler(strategy auth.Strategy, kind auth.Kind, excluded *auth.ExcludedPaths, metrics *Metrics, logger *slog.Logger) *CheckHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckHandler{
		strategy: strategy,
		kind:     kind,
		excluded: excluded,
		metrics:  metrics,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := h.check(w, r)
	if h.metrics != nil {
		h.metrics.ChecksTotal.WithLabelValues(string(h.kind), result).Inc()
		h.metrics.CheckDuration.WithLabelValues(string(h.kind)).Observe(time.Since(start).Seconds())
	}
}

func (h *CheckHandler) check(w http.ResponseWriter, r *http.Request) string {
	path := r.Header.Get(OriginalURIHeader)
	if path == "" {
		path = r.URL.Query().Get("path")
	}
	result, user, err := h.Decide(r.Context(), path, auth.NewHTTPRequest(r))
	switch result {
	case ResultError:
		h.logger.ErrorContext(r.Context(), "auth check failed", "path", path, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	case ResultDenied:
		w.WriteHeader(http.StatusUnauthorized)
	case ResultAuthenticated:
		w.Header().Set(UserHeader, user.ID.String())
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
	return result
}

// Decide classifies req for path as one of the Result values. The user is
// set only for ResultAuthenticated and the error only for ResultError.
func (h *CheckHandler) Decide(ctx context.Context, path string, req auth.Request) (string, *auth.User, error) {
	if h.kind == auth.KindNone || h.excluded.Excludes(path) {
		return ResultExcluded, nil, nil
	}
	user, err := h.strategy.CurrentUser(ctx, req)
	if err != nil {
		return ResultError, nil, err
	}
	if user == nil {
		return ResultDenied, nil, nil
	}
	return ResultAuthenticated, user, nil
}

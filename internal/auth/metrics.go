// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for authentication decisions.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeError         = "error"
)

// Status labels for service operations.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// AuthDecisions counts CurrentUser results per strategy.
// Use RegisterMetrics to register this with a Prometheus registry.
var AuthDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warden_auth_decisions_total",
		Help: "Total number of current-user resolutions by strategy and outcome",
	},
	[]string{"strategy", "outcome"},
)

// SessionEvents counts session creation and destruction per strategy.
var SessionEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warden_session_events_total",
		Help: "Total number of session lifecycle events by strategy and event",
	},
	[]string{"strategy", "event"},
)

// ServiceOperations counts Service calls by operation and status.
var ServiceOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "warden_service_operations_total",
		Help: "Total number of auth service operations by operation and status",
	},
	[]string{"operation", "status"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthDecisions)
	reg.MustRegister(SessionEvents)
	reg.MustRegister(ServiceOperations)
}

func recordDecision(strategy Kind, user *User, err error) {
	outcome := OutcomeAnonymous
	switch {
	case err != nil:
		outcome = OutcomeError
	case user != nil:
		outcome = OutcomeAuthenticated
	}
	AuthDecisions.WithLabelValues(string(strategy), outcome).Inc()
}

func recordSessionEvent(strategy Kind, event string) {
	SessionEvents.WithLabelValues(string(strategy), event).Inc()
}

func recordOperation(operation, status string) {
	ServiceOperations.WithLabelValues(operation, status).Inc()
}

// Package audit defines the EVV compliance audit trail. Validation feedback
// is safe to log verbatim, so events carry the regulatory context and outcome
// of every validation and submission pass.
package audit

import (
	"context"
	"time"

	"carebridge/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance. These
	// require durable storage and long retention (EVV audit windows run to
	// seven years in some states).
	// Examples: validation outcomes, aggregator submissions, blocked submissions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory    `json:"category"`
	Timestamp time.Time        `json:"timestamp"`
	VisitID   domain.VisitID   `json:"visit_id"`
	State     domain.StateCode `json:"state"`
	Action    string           `json:"action"`
	// Status is the compliance or submission outcome the action produced.
	Status string `json:"status,omitempty"`
	// Detail carries human-readable context (recommendations, error codes).
	Detail string `json:"detail,omitempty"`
	// RegulatoryContext cites the rule set the action was evaluated under.
	RegulatoryContext string `json:"regulatory_context,omitempty"`
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// Audit trail actions.
const (
	EventVisitValidated      = "visit_validated"
	EventSubmissionAttempted = "submission_attempted"
	EventSubmissionBlocked   = "submission_blocked"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByVisit(ctx context.Context, visitID domain.VisitID) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
}

// Publisher emits audit events toward a sink (store, broker, or both).
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

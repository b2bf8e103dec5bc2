// Package ports defines shared interfaces for the EVV vertical. Interfaces
// are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"carebridge/internal/evv/models"
	"carebridge/pkg/attrs"
	"carebridge/pkg/domain"
	"carebridge/pkg/platform/audit"
)

// AuditPublisher emits audit events for compliance-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RecordStore persists EVV records.
type RecordStore interface {
	// Get retrieves one record by visit ID; missing records surface
	// sentinel.ErrNotFound.
	Get(ctx context.Context, visitID domain.VisitID) (*models.EVVRecord, error)

	// Put upserts a record keyed by visit ID.
	Put(ctx context.Context, record *models.EVVRecord) error

	// ListByStateAndRange returns records for a state whose service date
	// falls inside the inclusive range. Feeds dashboard generation.
	ListByStateAndRange(ctx context.Context, state domain.StateCode, start, end time.Time) ([]*models.EVVRecord, error)
}

// SubmissionLock serializes submission attempts per visit. The orchestrator
// itself holds no record-level locks; callers that need at-most-once
// submission take this lock around ValidateAndSubmit.
type SubmissionLock interface {
	// Acquire returns false when another submission holds the visit.
	Acquire(ctx context.Context, visitID domain.VisitID) (bool, error)
	Release(ctx context.Context, visitID domain.VisitID) error
}

// LogAudit logs an action and emits the matching audit event. Attribute pairs
// follow slog conventions; well-known keys (visit_id, state, status, detail,
// regulatory_context) are lifted onto the audit event.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, action string, kv ...any) {
	if logger != nil {
		logger.InfoContext(ctx, action, kv...)
	}
	if publisher == nil {
		return
	}

	event := audit.Event{
		Category:          audit.CategoryCompliance,
		Timestamp:         time.Now(),
		Action:            action,
		Status:            attrs.ExtractString(kv, "status"),
		Detail:            attrs.ExtractString(kv, "detail"),
		RegulatoryContext: attrs.ExtractString(kv, "regulatory_context"),
		RequestID:         attrs.ExtractString(kv, "request_id"),
		State:             domain.StateCode(attrs.ExtractString(kv, "state")),
	}
	if visitID, err := domain.ParseVisitID(attrs.ExtractString(kv, "visit_id")); err == nil {
		event.VisitID = visitID
	}

	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

// Package orchestrator coordinates EVV compliance: it validates a recorded
// visit against its state's rules, derives real-time feedback, submits
// verified records to the state's aggregators, and aggregates historical
// records into dashboard statistics.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"carebridge/internal/evv/aggregator"
	"carebridge/internal/evv/compliance"
	"carebridge/internal/evv/dashboard"
	"carebridge/internal/evv/geo"
	"carebridge/internal/evv/metrics"
	"carebridge/internal/evv/models"
	"carebridge/internal/evv/ports"
	"carebridge/internal/evv/rules"
	"carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/audit"
)

type Service struct {
	catalog      *rules.Catalog
	compliance   *compliance.Service
	factory      *aggregator.Factory
	logger       *slog.Logger
	metrics      *metrics.Metrics
	audit        ports.AuditPublisher
	tracer       trace.Tracer
	batchWorkers int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithBatchWorkers bounds the batch validation worker pool.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

func New(catalog *rules.Catalog, complianceSvc *compliance.Service, factory *aggregator.Factory, opts ...Option) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("rule catalog is required")
	}
	if complianceSvc == nil {
		return nil, fmt.Errorf("compliance service is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("provider factory is required")
	}

	svc := &Service{
		catalog:      catalog,
		compliance:   complianceSvc,
		factory:      factory,
		tracer:       otel.Tracer("carebridge/evv/orchestrator"),
		batchWorkers: 8,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ValidateWithFeedback evaluates one record against a state's rules and
// returns the fully populated feedback object. It does not mutate the input
// record and performs no I/O beyond rule-catalog lookups, so identical inputs
// always produce identical feedback.
func (s *Service) ValidateWithFeedback(ctx context.Context, record *models.EVVRecord, state domain.StateCode) (*models.RealTimeValidationFeedback, error) {
	visit := assembleVisitData(record)

	validation, err := s.compliance.ValidateEVVForState(state, visit, record.ServiceAddress)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStateNotSupported, "validate EVV record")
	}

	geofence, err := s.geofenceDetail(state, record, visit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStateNotSupported, "compute geofence detail")
	}

	grace, err := s.gracePeriodDetail(state, visit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStateNotSupported, "compute grace period detail")
	}

	aggregators, err := s.catalog.RequiredAggregators(state)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStateNotSupported, "look up required aggregators")
	}

	feedback := &models.RealTimeValidationFeedback{
		State:               state,
		Validation:          validation,
		Geofence:            geofence,
		GracePeriod:         grace,
		RequiredAggregators: aggregators,
		SubmissionState:     models.SubmissionPending,
		RegulatoryContext:   validation.RegulatoryContext,
	}
	feedback.Status = deriveStatus(validation, geofence, grace)
	feedback.Recommendations = s.buildRecommendations(state, feedback)

	if s.metrics != nil {
		s.metrics.ObserveValidation(state.String(), string(feedback.Status))
	}
	return feedback, nil
}

// deriveStatus is the three-valued compliance state machine. Computed fresh
// on each call; nothing transitions or persists.
func deriveStatus(validation models.ValidationResult, geofence models.GeofenceDetail, grace models.GracePeriodDetail) models.ComplianceStatus {
	if !validation.Valid {
		return models.StatusNonCompliant
	}
	if !geofence.WithinBounds || !grace.WithinGrace || len(validation.Warnings) > 0 {
		return models.StatusWarning
	}
	return models.StatusCompliant
}

func (s *Service) geofenceDetail(state domain.StateCode, record *models.EVVRecord, visit models.VisitData) (models.GeofenceDetail, error) {
	distance := geo.Distance(
		visit.ClientCoordinates.Latitude, visit.ClientCoordinates.Longitude,
		visit.ClockIn.Latitude, visit.ClockIn.Longitude,
	)
	allowed, err := s.catalog.AllowedRadius(state, visit.GPSAccuracyMeters, record.ServiceAddress.RadiusMeters)
	if err != nil {
		return models.GeofenceDetail{}, err
	}
	return models.GeofenceDetail{
		WithinBounds:        distance <= allowed,
		DistanceMeters:      distance,
		AllowedRadiusMeters: allowed,
		AccuracyMeters:      visit.GPSAccuracyMeters,
	}, nil
}

// gracePeriodDetail applies a single symmetric threshold derived from the
// early-arrival allowance to both early and late clock-ins. The catalog
// models a separate late threshold; regulatory guidance has not confirmed it
// applies here, so the symmetric check stands.
func (s *Service) gracePeriodDetail(state domain.StateCode, visit models.VisitData) (models.GracePeriodDetail, error) {
	grace, err := s.catalog.GracePeriods(state)
	if err != nil {
		return models.GracePeriodDetail{}, err
	}
	minutes := int(math.Round(visit.ClockInTime.Sub(visit.ScheduledStart).Minutes()))
	within := minutes >= -grace.EarlyClockInMinutes && minutes <= grace.EarlyClockInMinutes
	return models.GracePeriodDetail{
		WithinGrace:          within,
		MinutesFromScheduled: minutes,
		AllowedGraceMinutes:  grace.EarlyClockInMinutes,
	}, nil
}

// assembleVisitData builds the ephemeral validation snapshot from the
// record's clock verifications and service address.
func assembleVisitData(record *models.EVVRecord) models.VisitData {
	visit := models.VisitData{
		ClientCoordinates: record.ServiceAddress.Coordinates(),
		ClockIn:           record.ClockIn.Coordinates,
		ClockInTime:       record.ClockIn.Timestamp,
		ScheduledStart:    record.ScheduledStart,
		GPSAccuracyMeters: record.ClockIn.AccuracyMeters,
	}
	if record.ClockOut != nil {
		out := record.ClockOut.Coordinates
		outTime := record.ClockOut.Timestamp
		visit.ClockOut = &out
		visit.ClockOutTime = &outTime
	}
	return visit
}

// ValidateAndSubmit runs validation and, unless the record is NON_COMPLIANT,
// submits it to every required aggregator. Warnings are advisory, not
// blocking. Cancelling the caller context propagates best-effort to in-flight
// aggregator calls; their partial results are merged and the submission is
// reported FAILED.
func (s *Service) ValidateAndSubmit(ctx context.Context, record *models.EVVRecord, state domain.StateCode) (*models.RealTimeValidationFeedback, error) {
	ctx, span := s.tracer.Start(ctx, "evv.validate_and_submit",
		trace.WithAttributes(
			attribute.String("evv.visit_id", record.VisitID.String()),
			attribute.String("evv.state", state.String()),
		))
	defer span.End()

	feedback, err := s.ValidateWithFeedback(ctx, record, state)
	if err != nil {
		return nil, err
	}

	if feedback.Status == models.StatusNonCompliant {
		feedback.Recommendations = append(feedback.Recommendations, fmt.Sprintf(
			"Submission blocked: resolve the violations above before this visit can be sent to %s.",
			strings.Join(feedback.RequiredAggregators, ", ")))
		s.emitAudit(ctx, record, audit.EventSubmissionBlocked, string(feedback.Status), feedback)
		return feedback, nil
	}

	feedback.SubmissionState = models.SubmissionInProgress

	results, err := s.SubmitToAggregators(ctx, record, state)
	if err != nil {
		return nil, err
	}
	feedback.SubmissionResults = results
	feedback.SubmissionState = overallSubmissionState(results)

	if feedback.SubmissionState == models.SubmissionFailed {
		for _, r := range results {
			if !r.Success {
				feedback.Recommendations = append(feedback.Recommendations, fmt.Sprintf(
					"Submission to %s failed (%s); the record must be resubmitted to that aggregator.",
					r.Aggregator, r.ErrorCode))
			}
		}
	}

	s.emitAudit(ctx, record, audit.EventSubmissionAttempted, string(feedback.SubmissionState), feedback)
	return feedback, nil
}

// overallSubmissionState merges per-aggregator outcomes. COMPLETED requires
// every aggregator to have accepted the record: a partially delivered visit
// is FAILED so billing never keys off an incomplete submission. This is a
// product rule, not an implementation convenience.
func overallSubmissionState(results []models.AggregatorSubmissionStatus) models.SubmissionState {
	if len(results) == 0 {
		return models.SubmissionFailed
	}
	for _, r := range results {
		if !r.Success {
			return models.SubmissionFailed
		}
	}
	return models.SubmissionCompleted
}

// ApplyFeedback folds a completed validation/submission pass back onto the
// record the way the EVV vertical persists it: the flag set mirrors the
// feedback, and a fully delivered submission marks the record as with the
// payor awaiting approval.
func ApplyFeedback(record *models.EVVRecord, feedback *models.RealTimeValidationFeedback) {
	var flags []string
	if feedback.Validation.Valid {
		flags = append(flags, models.FlagCompliant)
	}
	for _, issue := range feedback.Validation.Errors {
		flags = append(flags, issue.Code)
	}
	for _, issue := range feedback.Validation.Warnings {
		flags = append(flags, issue.Code)
	}
	if !feedback.GracePeriod.WithinGrace {
		flags = append(flags, models.FlagOutsideGracePeriod)
	}
	record.ComplianceFlags = flags

	if feedback.SubmissionState == models.SubmissionCompleted {
		record.SubmittedToPayor = true
		if record.PayorApprovalStatus == "" {
			record.PayorApprovalStatus = models.ApprovalPending
		}
	}
}

// GenerateComplianceDashboard aggregates historical records into per-state
// dashboard statistics. Purely derived; the record collection is supplied by
// the caller.
func (s *Service) GenerateComplianceDashboard(state domain.StateCode, start, end time.Time, records []*models.EVVRecord) models.StateComplianceDashboard {
	return dashboard.Generate(state, start, end, records)
}

func (s *Service) emitAudit(ctx context.Context, record *models.EVVRecord, action, status string, feedback *models.RealTimeValidationFeedback) {
	ports.LogAudit(ctx, s.logger, s.audit, action,
		"visit_id", record.VisitID.String(),
		"state", feedback.State.String(),
		"status", status,
		"detail", strings.Join(feedback.Recommendations, "; "),
		"regulatory_context", feedback.RegulatoryContext,
	)
}

package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"carebridge/internal/evv/aggregator"
	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// SubmitToAggregators submits one record to every aggregator its state
// requires, concurrently and with independent per-aggregator timeouts.
//
// Remote failures never fail the call: they come back as failed status
// entries so one aggregator's outage cannot suppress the others' results.
// A whole-attempt failure before per-aggregator results exist is captured as
// a single synthetic SUBMISSION_FAILED entry. Only an unsupported state fails
// the call, with no partial list returned.
func (s *Service) SubmitToAggregators(ctx context.Context, record *models.EVVRecord, state domain.StateCode) ([]models.AggregatorSubmissionStatus, error) {
	provider, err := s.factory.Provider(state)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStateNotSupported, "resolve aggregator provider")
	}

	ctx, span := s.tracer.Start(ctx, "evv.submit_to_aggregators",
		trace.WithAttributes(
			attribute.String("evv.visit_id", record.VisitID.String()),
			attribute.String("evv.state", state.String()),
			attribute.StringSlice("evv.aggregators", provider.Aggregators()),
		))
	defer span.End()

	start := time.Now()
	results, err := provider.SubmitAll(ctx, record)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveSubmissionDuration(state.String(), elapsed)
	}

	now := time.Now()
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "aggregator submission attempt failed",
				"visit_id", record.VisitID,
				"state", state,
				"error", err,
			)
		}
		status := models.AggregatorSubmissionStatus{
			Aggregator:   strings.Join(provider.Aggregators(), ","),
			Success:      false,
			ErrorCode:    aggregator.ErrorCodeSubmissionFailed,
			ErrorMessage: err.Error(),
			Timestamp:    now,
		}
		if s.metrics != nil {
			s.metrics.ObserveSubmission(state.String(), status.Aggregator, false)
		}
		return []models.AggregatorSubmissionStatus{status}, nil
	}

	statuses := make([]models.AggregatorSubmissionStatus, len(results))
	for i, r := range results {
		statuses[i] = models.AggregatorSubmissionStatus{
			Aggregator:     r.Aggregator,
			Success:        r.Accepted,
			SubmissionID:   r.SubmissionID,
			ConfirmationID: r.ConfirmationID,
			ErrorCode:      r.ErrorCode,
			ErrorMessage:   r.ErrorMessage,
			Timestamp:      now,
		}
		if s.metrics != nil {
			s.metrics.ObserveSubmission(state.String(), r.Aggregator, r.Accepted)
		}
	}
	return statuses, nil
}

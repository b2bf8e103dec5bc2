package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
)

// BatchItem pairs a record with the state to validate it under.
type BatchItem struct {
	Record *models.EVVRecord
	State  domain.StateCode
}

// BatchResult is one item's outcome. Err is set for configuration faults
// (unsupported state); compliance failures live on the Feedback.
type BatchResult struct {
	VisitID  domain.VisitID
	Feedback *models.RealTimeValidationFeedback
	Err      error
}

// ValidateBatch validates a collection of records concurrently, bounded by
// the service's worker pool. Each record's feedback is independent, so no
// ordering is guaranteed beyond results landing at their input index.
func (s *Service) ValidateBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{VisitID: item.Record.VisitID, Err: err}
				return nil
			}
			feedback, err := s.ValidateWithFeedback(ctx, item.Record, item.State)
			results[i] = BatchResult{VisitID: item.Record.VisitID, Feedback: feedback, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

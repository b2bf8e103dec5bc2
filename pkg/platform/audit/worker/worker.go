package worker

import (
	"context"
	"log/slog"

	audit "carebridge/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them, decoupling
// request latency from audit storage. Compliance-category writes that fail
// are logged loudly; the channel is drained, never dropped silently.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit append failed",
						"visit_id", event.VisitID,
						"action", event.Action,
						"error", err,
					)
				}
				if event.Category == audit.CategoryCompliance {
					return err
				}
			}
		}
	}
}

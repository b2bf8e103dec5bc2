// Package aggregator submits verified EVV records to state-mandated
// aggregator services. One provider per state; multi-aggregator states fan
// out to each target independently.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
)

// Error codes carried on failed results.
const (
	// ErrorCodeTimeout marks a target that exceeded its independent deadline.
	ErrorCodeTimeout = "AGGREGATOR_TIMEOUT"

	// ErrorCodeTransport marks a target whose call failed before a verdict.
	ErrorCodeTransport = "TRANSPORT_ERROR"

	// ErrorCodeRejected marks an aggregator rejection with no specific code.
	ErrorCodeRejected = "AGGREGATOR_REJECTED"

	// ErrorCodeSubmissionFailed marks a whole-attempt failure synthesized by
	// the orchestrator when no per-target results are available.
	ErrorCodeSubmissionFailed = "SUBMISSION_FAILED"
)

// Result is one aggregator target's verdict on a submission.
type Result struct {
	Aggregator     string
	Accepted       bool
	SubmissionID   string
	ConfirmationID string
	ErrorCode      string
	ErrorMessage   string
}

// Target is one aggregator endpoint for a state.
type Target struct {
	Name string
	URL  string
}

// Provider submits a record to every aggregator its state requires.
//
// SubmitAll is the uniform entry point: single-aggregator providers return a
// one-element slice, so callers never branch on provider capability. Errors
// are reserved for whole-attempt failures (a payload that cannot be built);
// per-target failures, including timeouts, come back as failed Results.
type Provider interface {
	State() domain.StateCode
	Aggregators() []string
	SubmitToAggregator(ctx context.Context, record *models.EVVRecord, aggregator string) (Result, error)
	SubmitAll(ctx context.Context, record *models.EVVRecord) ([]Result, error)
}

// stateProvider is the shared Provider implementation. Per-state variation is
// entirely in the target list and transport configuration.
type stateProvider struct {
	state     domain.StateCode
	targets   []Target
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger
}

// NewProvider builds a provider for one state.
func NewProvider(state domain.StateCode, targets []Target, transport Transport, timeout time.Duration, logger *slog.Logger) (Provider, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("provider for %s needs at least one aggregator target", state)
	}
	if transport == nil {
		return nil, fmt.Errorf("provider for %s needs a transport", state)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &stateProvider{
		state:     state,
		targets:   targets,
		transport: transport,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (p *stateProvider) State() domain.StateCode { return p.state }

func (p *stateProvider) Aggregators() []string {
	names := make([]string, len(p.targets))
	for i, t := range p.targets {
		names[i] = t.Name
	}
	return names
}

// SubmitToAggregator submits to a single named target with the provider's
// timeout. Timeout and transport failures come back as failed Results.
func (p *stateProvider) SubmitToAggregator(ctx context.Context, record *models.EVVRecord, aggregator string) (Result, error) {
	for _, target := range p.targets {
		if target.Name == aggregator {
			return p.submitOne(ctx, target, record), nil
		}
	}
	return Result{}, fmt.Errorf("aggregator %s is not a target for state %s", aggregator, p.state)
}

// SubmitAll fans out to every target concurrently. Each target gets an
// independent timeout so one slow aggregator never blocks the others'
// results. The result slice preserves target order.
func (p *stateProvider) SubmitAll(ctx context.Context, record *models.EVVRecord) ([]Result, error) {
	results := make([]Result, len(p.targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, target := range p.targets {
		g.Go(func() error {
			results[i] = p.submitOne(ctx, target, record)
			return nil
		})
	}
	// submitOne never returns an error through the group; Wait only observes
	// the ctx plumbing.
	_ = g.Wait()

	return results, nil
}

func (p *stateProvider) submitOne(ctx context.Context, target Target, record *models.EVVRecord) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.transport.Send(ctx, target, record)
	elapsed := time.Since(start)

	if err != nil {
		code := ErrorCodeTransport
		if ctx.Err() == context.DeadlineExceeded {
			code = ErrorCodeTimeout
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "aggregator submission failed",
				"state", p.state,
				"aggregator", target.Name,
				"elapsed", elapsed,
				"error", err,
			)
		}
		return Result{
			Aggregator:   target.Name,
			Accepted:     false,
			ErrorCode:    code,
			ErrorMessage: err.Error(),
		}
	}

	if p.logger != nil {
		p.logger.DebugContext(ctx, "aggregator responded",
			"state", p.state,
			"aggregator", target.Name,
			"accepted", result.Accepted,
			"elapsed", elapsed,
		)
	}
	return result
}

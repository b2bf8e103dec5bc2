package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carebridge/internal/evv/aggregator"
	"carebridge/internal/evv/compliance"
	"carebridge/internal/evv/models"
	"carebridge/internal/evv/rules"
	"carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/audit"
)

// scriptedTransport returns canned outcomes per target name. Targets not in
// the script are accepted.
type scriptedTransport struct {
	mu     sync.Mutex
	fail   map[string]error
	reject map[string]aggregator.Result
	calls  []string
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		fail:   map[string]error{},
		reject: map[string]aggregator.Result{},
	}
}

func (t *scriptedTransport) Send(ctx context.Context, target aggregator.Target, record *models.EVVRecord) (aggregator.Result, error) {
	t.mu.Lock()
	t.calls = append(t.calls, target.Name)
	t.mu.Unlock()

	if err, ok := t.fail[target.Name]; ok {
		return aggregator.Result{}, err
	}
	if r, ok := t.reject[target.Name]; ok {
		return r, nil
	}
	return aggregator.Result{
		Aggregator:     target.Name,
		Accepted:       true,
		SubmissionID:   "sub-" + target.Name,
		ConfirmationID: "conf-" + target.Name,
	}, nil
}

func (t *scriptedTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// failingProvider fails the whole attempt before any per-target results.
type failingProvider struct {
	state domain.StateCode
	names []string
}

func (p *failingProvider) State() domain.StateCode { return p.state }
func (p *failingProvider) Aggregators() []string   { return p.names }

func (p *failingProvider) SubmitToAggregator(ctx context.Context, record *models.EVVRecord, name string) (aggregator.Result, error) {
	return aggregator.Result{}, errors.New("payload could not be built")
}

func (p *failingProvider) SubmitAll(ctx context.Context, record *models.EVVRecord) ([]aggregator.Result, error) {
	return nil, errors.New("payload could not be built")
}

// recordingPublisher captures emitted audit events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(ctx context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byAction(action string) []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []audit.Event
	for _, e := range p.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type SubmitSuite struct {
	suite.Suite
	transport *scriptedTransport
	publisher *recordingPublisher
	service   *Service
}

func TestSubmitSuite(t *testing.T) {
	suite.Run(t, new(SubmitSuite))
}

func (s *SubmitSuite) SetupTest() {
	catalog := rules.NewCatalog()
	complianceSvc, err := compliance.New(catalog)
	s.Require().NoError(err)

	s.transport = newScriptedTransport()
	s.publisher = &recordingPublisher{}

	s.service, err = New(catalog, complianceSvc, newTestFactory(s.T(), catalog, s.transport),
		WithAuditPublisher(s.publisher))
	s.Require().NoError(err)
}

// =============================================================================
// ValidateAndSubmit
// =============================================================================

func (s *SubmitSuite) TestNonCompliantNeverSubmits() {
	record := buildRecord("TX", 500, 20, 2*time.Minute)

	feedback, err := s.service.ValidateAndSubmit(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusNonCompliant, feedback.Status)
	s.Equal(models.SubmissionPending, feedback.SubmissionState)
	s.Empty(feedback.SubmissionResults)
	s.Zero(s.transport.callCount())

	s.Contains(feedback.Recommendations[len(feedback.Recommendations)-1], "Submission blocked")

	blocked := s.publisher.byAction(audit.EventSubmissionBlocked)
	s.Require().Len(blocked, 1)
	s.Equal(record.VisitID, blocked[0].VisitID)
	s.Equal(string(models.StatusNonCompliant), blocked[0].Status)
}

func (s *SubmitSuite) TestCompliantSubmitsToAllAggregators() {
	record := buildRecord("FL", 10, 20, 2*time.Minute)

	feedback, err := s.service.ValidateAndSubmit(context.Background(), record, "FL")
	s.Require().NoError(err)

	s.Equal(models.SubmissionCompleted, feedback.SubmissionState)
	s.Require().Len(feedback.SubmissionResults, 2)
	s.Equal("Tellus", feedback.SubmissionResults[0].Aggregator)
	s.Equal("Netsmart", feedback.SubmissionResults[1].Aggregator)
	for _, result := range feedback.SubmissionResults {
		s.True(result.Success)
		s.NotEmpty(result.SubmissionID)
		s.NotEmpty(result.ConfirmationID)
		s.False(result.Timestamp.IsZero())
	}

	attempted := s.publisher.byAction(audit.EventSubmissionAttempted)
	s.Require().Len(attempted, 1)
	s.Equal(string(models.SubmissionCompleted), attempted[0].Status)
}

func (s *SubmitSuite) TestWarningStillSubmits() {
	// Outside the grace window is advisory; the record is still sent.
	record := buildRecord("TX", 10, 20, 30*time.Minute)

	feedback, err := s.service.ValidateAndSubmit(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusWarning, feedback.Status)
	s.Equal(models.SubmissionCompleted, feedback.SubmissionState)
	s.Equal(1, s.transport.callCount())
}

func (s *SubmitSuite) TestPartialFailureIsFailed() {
	// Tellus accepts, Netsmart's transport fails: one aggregator succeeding is
	// not delivery. The successful result is preserved alongside the failure.
	s.transport.fail["Netsmart"] = errors.New("connection reset")
	record := buildRecord("FL", 10, 20, 2*time.Minute)

	feedback, err := s.service.ValidateAndSubmit(context.Background(), record, "FL")
	s.Require().NoError(err)

	s.Equal(models.SubmissionFailed, feedback.SubmissionState)
	s.Require().Len(feedback.SubmissionResults, 2)

	tellus := feedback.SubmissionResults[0]
	s.True(tellus.Success)
	s.Equal("sub-Tellus", tellus.SubmissionID)
	s.Equal("conf-Tellus", tellus.ConfirmationID)

	netsmart := feedback.SubmissionResults[1]
	s.False(netsmart.Success)
	s.Equal(aggregator.ErrorCodeTransport, netsmart.ErrorCode)

	joined := strings.Join(feedback.Recommendations, " ")
	s.Contains(joined, "Netsmart")
	s.Contains(joined, "resubmitted")
	s.NotContains(joined, "Submission to Tellus failed")
}

func (s *SubmitSuite) TestRemoteRejectionIsFailedWithCode() {
	s.transport.reject["HHAeXchange"] = aggregator.Result{
		Aggregator:   "HHAeXchange",
		Accepted:     false,
		ErrorCode:    "DUPLICATE_VISIT",
		ErrorMessage: "visit already on file",
	}
	record := buildRecord("TX", 10, 20, 2*time.Minute)

	feedback, err := s.service.ValidateAndSubmit(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.SubmissionFailed, feedback.SubmissionState)
	s.Require().Len(feedback.SubmissionResults, 1)
	s.Equal("DUPLICATE_VISIT", feedback.SubmissionResults[0].ErrorCode)
}

// =============================================================================
// SubmitToAggregators
// =============================================================================

func (s *SubmitSuite) TestSubmitToAggregators_UnsupportedState() {
	record := buildRecord("ZZ", 10, 20, 0)

	results, err := s.service.SubmitToAggregators(context.Background(), record, "ZZ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStateNotSupported))
	s.Nil(results)
	s.Zero(s.transport.callCount())
}

func (s *SubmitSuite) TestSubmitToAggregators_WholeAttemptFailure() {
	catalog := rules.NewCatalog()
	complianceSvc, err := compliance.New(catalog)
	s.Require().NoError(err)

	factory := aggregator.NewFactoryWith(&failingProvider{
		state: "FL",
		names: []string{"Tellus", "Netsmart"},
	})
	service, err := New(catalog, complianceSvc, factory)
	s.Require().NoError(err)

	record := buildRecord("FL", 10, 20, 0)
	results, err := service.SubmitToAggregators(context.Background(), record, "FL")
	s.Require().NoError(err)

	s.Require().Len(results, 1)
	s.False(results[0].Success)
	s.Equal(aggregator.ErrorCodeSubmissionFailed, results[0].ErrorCode)
	s.Equal("Tellus,Netsmart", results[0].Aggregator)
}

package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/evv/aggregator"
	"carebridge/internal/evv/compliance"
	"carebridge/internal/evv/models"
	"carebridge/internal/evv/rules"
	"carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// Test geometry: the client address sits at a fixed Houston point and
// clock-in offsets are expressed in meters north of it. One degree of
// latitude is ~111,195 m.
const metersPerLatDegree = 111195.0

var scheduledStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func buildRecord(state domain.StateCode, metersFromAddress, accuracy float64, clockInOffset time.Duration) *models.EVVRecord {
	addressLat, addressLon := 29.7604, -95.3698
	return &models.EVVRecord{
		VisitID:     domain.VisitID(uuid.New()),
		ClientID:    domain.ClientID(uuid.New()),
		CaregiverID: domain.CaregiverID(uuid.New()),
		State:       state,
		ServiceDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ServiceAddress: models.ServiceAddress{
			Line1:     "4216 Dunlavy St",
			City:      "Houston",
			State:     state.String(),
			Latitude:  addressLat,
			Longitude: addressLon,
			Verified:  true,
		},
		ScheduledStart: scheduledStart,
		ClockIn: models.ClockVerification{
			Coordinates: models.Coordinates{
				Latitude:  addressLat + metersFromAddress/metersPerLatDegree,
				Longitude: addressLon,
			},
			AccuracyMeters: accuracy,
			Timestamp:      scheduledStart.Add(clockInOffset),
		},
	}
}

type OrchestratorSuite struct {
	suite.Suite
	transport *scriptedTransport
	service   *Service
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	catalog := rules.NewCatalog()
	complianceSvc, err := compliance.New(catalog)
	s.Require().NoError(err)

	s.transport = newScriptedTransport()
	factory := newTestFactory(s.T(), catalog, s.transport)

	s.service, err = New(catalog, complianceSvc, factory)
	s.Require().NoError(err)
}

// =============================================================================
// ValidateWithFeedback — status state machine
// =============================================================================

func (s *OrchestratorSuite) TestStatus_Compliant() {
	record := buildRecord("TX", 10, 20, 2*time.Minute)

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusCompliant, feedback.Status)
	s.True(feedback.Validation.Valid)
	s.True(feedback.Geofence.WithinBounds)
	s.True(feedback.GracePeriod.WithinGrace)
	s.Equal(models.SubmissionPending, feedback.SubmissionState)
	s.Equal([]string{"HHAeXchange"}, feedback.RequiredAggregators)
	s.Equal([]string{readyForSubmission}, feedback.Recommendations)
	s.Contains(feedback.RegulatoryContext, "TAC")
}

func (s *OrchestratorSuite) TestStatus_WarningOnGracePeriod() {
	// Inside the geofence but 30 minutes late; TX grace is 10 minutes.
	record := buildRecord("TX", 10, 20, 30*time.Minute)

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusWarning, feedback.Status)
	s.True(feedback.Validation.Valid)
	s.False(feedback.GracePeriod.WithinGrace)
	s.Equal(30, feedback.GracePeriod.MinutesFromScheduled)
	s.Contains(feedback.Recommendations[0], "30 minutes after")
}

func (s *OrchestratorSuite) TestStatus_WarningOnValidationWarning() {
	record := buildRecord("TX", 10, 20, 2*time.Minute)
	record.ServiceAddress.Verified = false

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusWarning, feedback.Status)
	s.True(feedback.Validation.Valid)
	s.NotEmpty(feedback.Validation.Warnings)
}

func (s *OrchestratorSuite) TestStatus_NonCompliant() {
	// 500 m out with 20 m accuracy: far past the 120 m allowed radius.
	record := buildRecord("TX", 500, 20, 2*time.Minute)

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusNonCompliant, feedback.Status)
	s.False(feedback.Validation.Valid)
	s.False(feedback.Geofence.WithinBounds)
}

func (s *OrchestratorSuite) TestUnsupportedState() {
	record := buildRecord("ZZ", 10, 20, 0)

	_, err := s.service.ValidateWithFeedback(context.Background(), record, "ZZ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStateNotSupported))
}

// =============================================================================
// Geofence and grace scenarios
// =============================================================================

func (s *OrchestratorSuite) TestTexasGeofenceScenario() {
	// Clock-in 150 m out, geofence base 100 m, accuracy 20 m; TX adds the
	// accuracy to the base, so the allowed radius is 120 m and the clock-in
	// is 30 m over.
	record := buildRecord("TX", 150, 20, 2*time.Minute)

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.InDelta(120, feedback.Geofence.AllowedRadiusMeters, 0.001)
	s.InDelta(150, feedback.Geofence.DistanceMeters, 0.5)
	s.False(feedback.Geofence.WithinBounds)
	s.NotEqual(models.StatusCompliant, feedback.Status)

	joined := strings.Join(feedback.Recommendations, " | ")
	s.Contains(joined, "30m")
	s.Contains(joined, "Visit Maintenance Unlock Request")
	s.Contains(joined, "30 days")
}

func (s *OrchestratorSuite) TestGracePeriod() {
	s.Run("nine minutes early is within a ten minute window", func() {
		record := buildRecord("TX", 10, 20, -9*time.Minute)

		feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
		s.Require().NoError(err)
		s.True(feedback.GracePeriod.WithinGrace)
		s.Equal(-9, feedback.GracePeriod.MinutesFromScheduled)
	})

	s.Run("twelve minutes early is outside", func() {
		record := buildRecord("TX", 10, 20, -12*time.Minute)

		feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
		s.Require().NoError(err)
		s.False(feedback.GracePeriod.WithinGrace)
		s.Contains(feedback.Recommendations[0], "12 minutes before")
	})

	s.Run("late arrivals use the same symmetric threshold", func() {
		record := buildRecord("TX", 10, 20, 12*time.Minute)

		feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
		s.Require().NoError(err)
		s.False(feedback.GracePeriod.WithinGrace)
	})
}

func (s *OrchestratorSuite) TestGPSAccuracyRecommendation() {
	record := buildRecord("TX", 10, 300, 2*time.Minute) // TX accuracy cap is 100

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(models.StatusNonCompliant, feedback.Status)
	s.True(feedback.Validation.HasError(models.IssueGPSAccuracyExceeded))
	s.Contains(strings.Join(feedback.Recommendations, " "), "satellite signal")
}

func (s *OrchestratorSuite) TestMultiAggregatorRoutingReminder() {
	record := buildRecord("FL", 500, 20, 2*time.Minute)

	feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "FL")
	s.Require().NoError(err)

	joined := strings.Join(feedback.Recommendations, " ")
	s.Contains(joined, "multiple aggregators")
	s.Contains(joined, "Tellus")
	s.Contains(joined, "Netsmart")
}

// =============================================================================
// Idempotence
// =============================================================================

func (s *OrchestratorSuite) TestValidateWithFeedback_Idempotent() {
	record := buildRecord("TX", 150, 20, -12*time.Minute)

	first, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)
	second, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
	s.Require().NoError(err)

	s.Equal(first, second)
}

// =============================================================================
// ValidateBatch
// =============================================================================

func (s *OrchestratorSuite) TestValidateBatch() {
	items := []BatchItem{
		{Record: buildRecord("TX", 10, 20, time.Minute), State: "TX"},
		{Record: buildRecord("FL", 500, 20, time.Minute), State: "FL"},
		{Record: buildRecord("OH", 10, 20, time.Minute), State: "ZZ"},
	}

	results := s.service.ValidateBatch(context.Background(), items)
	s.Require().Len(results, 3)

	s.Equal(items[0].Record.VisitID, results[0].VisitID)
	s.Require().NoError(results[0].Err)
	s.Equal(models.StatusCompliant, results[0].Feedback.Status)

	s.Require().NoError(results[1].Err)
	s.Equal(models.StatusNonCompliant, results[1].Feedback.Status)

	s.Error(results[2].Err)
	s.True(dErrors.HasCode(results[2].Err, dErrors.CodeStateNotSupported))
}

// =============================================================================
// ApplyFeedback
// =============================================================================

func (s *OrchestratorSuite) TestApplyFeedback() {
	s.Run("compliant record gets the single flag", func() {
		record := buildRecord("TX", 10, 20, time.Minute)
		feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
		s.Require().NoError(err)

		ApplyFeedback(record, feedback)
		s.Equal([]string{models.FlagCompliant}, record.ComplianceFlags)
		s.False(record.SubmittedToPayor)
	})

	s.Run("warning record keeps COMPLIANT plus violation flags", func() {
		record := buildRecord("TX", 10, 20, 30*time.Minute)
		feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
		s.Require().NoError(err)

		ApplyFeedback(record, feedback)
		s.Contains(record.ComplianceFlags, models.FlagCompliant)
		s.Contains(record.ComplianceFlags, models.FlagOutsideGracePeriod)
	})

	s.Run("non-compliant record carries only violation flags", func() {
		record := buildRecord("TX", 500, 20, time.Minute)
		feedback, err := s.service.ValidateWithFeedback(context.Background(), record, "TX")
		s.Require().NoError(err)

		ApplyFeedback(record, feedback)
		s.NotContains(record.ComplianceFlags, models.FlagCompliant)
		s.Contains(record.ComplianceFlags, models.IssueGeofenceViolation)
	})

	s.Run("completed submission marks the payor handoff", func() {
		record := buildRecord("TX", 10, 20, time.Minute)
		feedback, err := s.service.ValidateAndSubmit(context.Background(), record, "TX")
		s.Require().NoError(err)
		s.Require().Equal(models.SubmissionCompleted, feedback.SubmissionState)

		ApplyFeedback(record, feedback)
		s.True(record.SubmittedToPayor)
		s.Equal(models.ApprovalPending, record.PayorApprovalStatus)
	})
}

// newTestFactory builds the real factory over all catalog states with a
// scripted transport, test endpoints only.
func newTestFactory(t *testing.T, catalog *rules.Catalog, transport aggregator.Transport) *aggregator.Factory {
	t.Helper()
	urls := map[string]string{}
	for _, state := range catalog.Supported() {
		names, err := catalog.RequiredAggregators(state)
		if err != nil {
			t.Fatalf("catalog aggregators for %s: %v", state, err)
		}
		for _, name := range names {
			urls[name] = "https://" + strings.ToLower(name) + ".example.test/evv"
		}
	}
	factory, err := aggregator.NewFactory(catalog, transport, aggregator.FactoryConfig{
		EndpointURLs: urls,
		Timeout:      time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("build factory: %v", err)
	}
	return factory
}

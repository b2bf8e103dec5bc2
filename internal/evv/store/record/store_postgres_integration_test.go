//go:build integration

package record_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/evv/models"
	"carebridge/internal/evv/store/record"
	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *record.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = record.NewPostgresStore(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "evv_records"))
}

func (s *PostgresStoreSuite) newRecord(state domain.StateCode, serviceDate time.Time) *models.EVVRecord {
	return &models.EVVRecord{
		VisitID:     domain.VisitID(uuid.New()),
		ClientID:    domain.ClientID(uuid.New()),
		CaregiverID: domain.CaregiverID(uuid.New()),
		State:       state,
		ServiceDate: serviceDate,
		ServiceAddress: models.ServiceAddress{
			Line1:     "4216 Dunlavy St",
			City:      "Houston",
			State:     state.String(),
			Latitude:  29.7604,
			Longitude: -95.3698,
			Verified:  true,
		},
		ScheduledStart: serviceDate.Add(9 * time.Hour),
		ClockIn: models.ClockVerification{
			Coordinates:    models.Coordinates{Latitude: 29.7604, Longitude: -95.3698},
			AccuracyMeters: 20,
			Timestamp:      serviceDate.Add(9 * time.Hour),
		},
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	rec := s.newRecord("TX", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	rec.ComplianceFlags = []string{models.FlagCompliant}

	s.Require().NoError(s.store.Put(ctx, rec))

	found, err := s.store.Get(ctx, rec.VisitID)
	s.Require().NoError(err)
	s.Equal(rec.VisitID, found.VisitID)
	s.Equal(rec.State, found.State)
	s.Equal(rec.ComplianceFlags, found.ComplianceFlags)
	s.InDelta(rec.ClockIn.AccuracyMeters, found.ClockIn.AccuracyMeters, 0.001)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), domain.VisitID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPutIsUpsert() {
	ctx := context.Background()
	rec := s.newRecord("TX", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Put(ctx, rec))

	rec.SubmittedToPayor = true
	rec.PayorApprovalStatus = models.ApprovalPending
	s.Require().NoError(s.store.Put(ctx, rec))

	found, err := s.store.Get(ctx, rec.VisitID)
	s.Require().NoError(err)
	s.True(found.SubmittedToPayor)
	s.Equal(models.ApprovalPending, found.PayorApprovalStatus)
}

func (s *PostgresStoreSuite) TestListByStateAndRange() {
	ctx := context.Background()
	march := func(day int) time.Time { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC) }

	for _, rec := range []*models.EVVRecord{
		s.newRecord("TX", march(5)),
		s.newRecord("TX", march(31)),
		s.newRecord("TX", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)),
		s.newRecord("OH", march(5)),
	} {
		s.Require().NoError(s.store.Put(ctx, rec))
	}

	records, err := s.store.ListByStateAndRange(ctx, "TX", march(1), march(31))
	s.Require().NoError(err)
	s.Len(records, 2)
	for _, rec := range records {
		s.Equal(domain.StateCode("TX"), rec.State)
	}
}

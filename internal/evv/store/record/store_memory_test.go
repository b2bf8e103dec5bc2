package record

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) newRecord(state domain.StateCode, serviceDate time.Time) *models.EVVRecord {
	return &models.EVVRecord{
		VisitID:     domain.VisitID(uuid.New()),
		ClientID:    domain.ClientID(uuid.New()),
		CaregiverID: domain.CaregiverID(uuid.New()),
		State:       state,
		ServiceDate: serviceDate,
	}
}

func (s *MemoryStoreSuite) TestPutAndGet() {
	ctx := context.Background()
	record := s.newRecord("TX", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	s.Require().NoError(s.store.Put(ctx, record))

	found, err := s.store.Get(ctx, record.VisitID)
	s.Require().NoError(err)
	s.Equal(record.VisitID, found.VisitID)
	s.Equal(record.State, found.State)
}

func (s *MemoryStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), domain.VisitID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestPutIsUpsert() {
	ctx := context.Background()
	record := s.newRecord("TX", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Put(ctx, record))

	record.ComplianceFlags = []string{models.FlagCompliant}
	s.Require().NoError(s.store.Put(ctx, record))

	found, err := s.store.Get(ctx, record.VisitID)
	s.Require().NoError(err)
	s.Equal([]string{models.FlagCompliant}, found.ComplianceFlags)
}

func (s *MemoryStoreSuite) TestStoredByValue() {
	ctx := context.Background()
	record := s.newRecord("TX", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Put(ctx, record))

	record.SubmittedToPayor = true

	found, err := s.store.Get(ctx, record.VisitID)
	s.Require().NoError(err)
	s.False(found.SubmittedToPayor)
}

func (s *MemoryStoreSuite) TestListByStateAndRange() {
	ctx := context.Background()
	march := func(day int) time.Time { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC) }

	inRange := s.newRecord("TX", march(10))
	boundary := s.newRecord("TX", march(31))
	outOfRange := s.newRecord("TX", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	otherState := s.newRecord("OH", march(10))
	for _, record := range []*models.EVVRecord{inRange, boundary, outOfRange, otherState} {
		s.Require().NoError(s.store.Put(ctx, record))
	}

	records, err := s.store.ListByStateAndRange(ctx, "TX", march(1), march(31))
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	ids := []domain.VisitID{records[0].VisitID, records[1].VisitID}
	s.Contains(ids, inRange.VisitID)
	s.Contains(ids, boundary.VisitID)
}

package integration

import (
	"context"
	"sync"

	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// MemoryClient is an in-memory Client for tests and local development.
type MemoryClient struct {
	mu         sync.RWMutex
	visits     map[domain.VisitID]VisitContext
	caregivers map[domain.CaregiverID]CaregiverProfile
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		visits:     make(map[domain.VisitID]VisitContext),
		caregivers: make(map[domain.CaregiverID]CaregiverProfile),
	}
}

func (c *MemoryClient) AddVisit(visit VisitContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visits[visit.VisitID] = visit
}

func (c *MemoryClient) AddCaregiver(profile CaregiverProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caregivers[profile.CaregiverID] = profile
}

func (c *MemoryClient) GetVisitData(_ context.Context, visitID domain.VisitID) (*VisitContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	visit, ok := c.visits[visitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &visit, nil
}

func (c *MemoryClient) GetCaregiverData(_ context.Context, caregiverID domain.CaregiverID) (*CaregiverProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	profile, ok := c.caregivers[caregiverID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &profile, nil
}

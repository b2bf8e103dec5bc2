// Package submitlock serializes submission attempts per visit so concurrent
// requests cannot double-submit the same record to an aggregator.
package submitlock

import (
	"context"
	"sync"
	"time"

	"carebridge/pkg/domain"
)

// MemoryLock is an in-process submission lock with TTL expiry. Suitable for
// single-instance deployments and tests; distributed deployments use the
// Redis lock.
type MemoryLock struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[domain.VisitID]time.Time
	clock func() time.Time
}

func NewMemoryLock(ttl time.Duration) *MemoryLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MemoryLock{
		ttl:   ttl,
		held:  make(map[domain.VisitID]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the lock for a visit. Returns false if another holder has it
// and the hold has not expired.
func (l *MemoryLock) Acquire(_ context.Context, visitID domain.VisitID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expires, ok := l.held[visitID]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[visitID] = now.Add(l.ttl)
	return true, nil
}

// Release frees the lock for a visit. Releasing an unheld lock is a no-op.
func (l *MemoryLock) Release(_ context.Context, visitID domain.VisitID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, visitID)
	return nil
}

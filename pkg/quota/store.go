package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UsageStore tracks per-user usage counters, keyed by billing period.
type UsageStore interface {
	// Consume atomically checks whether amount more units fit under limit
	// and, only then, increments the counter. Returns false without side
	// effects when the limit would be exceeded. A limit of Unlimited always
	// admits.
	//
	// The check and the increment must be one atomic operation. Two separate
	// steps would let concurrent sends race past the limit.
	Consume(ctx context.Context, userID uuid.UUID, metric Metric, amount, limit int64, periodStart, periodEnd time.Time) (bool, error)

	// Used returns the counter for the current period.
	Used(ctx context.Context, userID uuid.UUID, metric Metric, periodStart time.Time) (int64, error)
}

// usageKey builds the period-scoped counter key. A new period start yields a
// new key, which is how rollover resets usage.
func usageKey(userID uuid.UUID, metric Metric, periodStart time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%d", userID, metric, periodStart.Unix())
}

// MemoryUsageStore is an in-memory UsageStore implementation. The mutex
// makes each Consume call a single critical section, satisfying the atomic
// check-and-increment contract. Suitable for development, testing, and
// single-process deployments.
type MemoryUsageStore struct {
	counters map[string]int64
	mu       sync.Mutex
}

// NewMemoryUsageStore creates a new in-memory usage store.
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		counters: make(map[string]int64),
	}
}

func (s *MemoryUsageStore) Consume(ctx context.Context, userID uuid.UUID, metric Metric, amount, limit int64, periodStart, periodEnd time.Time) (bool, error) {
	key := usageKey(userID, metric, periodStart)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.counters[key]
	if limit != Unlimited && current+amount > limit {
		return false, nil
	}

	s.counters[key] = current + amount
	return true, nil
}

func (s *MemoryUsageStore) Used(ctx context.Context, userID uuid.UUID, metric Metric, periodStart time.Time) (int64, error) {
	key := usageKey(userID, metric, periodStart)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[key], nil
}

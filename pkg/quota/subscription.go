package quota

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RenewalGracePeriod is how long an expired paid subscription keeps its plan
// before the rollover downgrades it to free. Gives the external billing
// cycle time to confirm a renewal.
const RenewalGracePeriod = 3 * 24 * time.Hour

// Subscription ties a user to a plan for the current billing period. Each
// user has exactly one subscription at a time.
type Subscription struct {
	UserID             uuid.UUID `json:"user_id"`
	PlanID             string    `json:"plan_id"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewSubscription starts a fresh billing period on the given plan.
func NewSubscription(userID uuid.UUID, plan Plan) Subscription {
	return newSubscriptionAt(userID, plan, time.Now().UTC())
}

func newSubscriptionAt(userID uuid.UUID, plan Plan, now time.Time) Subscription {
	return Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, plan.PeriodDays),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Renew opens a new billing period on the given plan, preserving the
// original creation time.
func (s Subscription) Renew(plan Plan) Subscription {
	return s.renewAt(plan, time.Now().UTC())
}

// renewAt exists so the service clock drives rollover. The usage counter key
// is derived from the period start, which is what resets usage.
func (s Subscription) renewAt(plan Plan, now time.Time) Subscription {
	renewed := newSubscriptionAt(s.UserID, plan, now)
	renewed.CreatedAt = s.CreatedAt
	return renewed
}

// ExpiredAt reports whether the current period has ended at the given time.
func (s Subscription) ExpiredAt(now time.Time) bool {
	return now.After(s.CurrentPeriodEnd)
}

// GraceElapsedAt reports whether the renewal grace period has also passed.
func (s Subscription) GraceElapsedAt(now time.Time) bool {
	return now.After(s.CurrentPeriodEnd.Add(RenewalGracePeriod))
}

// SubscriptionStore persists user subscriptions.
type SubscriptionStore interface {
	// Get retrieves the subscription for a user, or ErrSubscriptionNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Upsert stores or replaces the user's subscription.
	Upsert(ctx context.Context, sub Subscription) error
}

// MemorySubscriptionStore is an in-memory SubscriptionStore implementation.
// Suitable for development and testing.
type MemorySubscriptionStore struct {
	subs map[uuid.UUID]Subscription
	mu   sync.RWMutex
}

// NewMemorySubscriptionStore creates a new in-memory subscription store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		subs: make(map[uuid.UUID]Subscription),
	}
}

func (s *MemorySubscriptionStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}

	out := sub
	return &out, nil
}

func (s *MemorySubscriptionStore) Upsert(ctx context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.UpdatedAt = time.Now().UTC()
	s.subs[sub.UserID] = sub
	return nil
}

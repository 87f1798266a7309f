package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/logger"
)

// Usage reports consumption against a plan limit for one metric.
type Usage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Service admits sends against subscription plan limits.
type Service struct {
	// plans is treated as immutable after initialization; thread-safety
	// depends on no runtime modification.
	plans  map[string]Plan
	usage  UsageStore
	subs   SubscriptionStore
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = log
	}
}

// WithClock overrides the time source. Tests use it to drive period
// rollover deterministically.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService loads plans from src and creates a quota service.
func NewService(ctx context.Context, src Source, usage UsageStore, subs SubscriptionStore, opts ...ServiceOption) (*Service, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if plans == nil {
		plans = make(map[string]Plan)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	s := &Service{
		plans:  plans,
		usage:  usage,
		subs:   subs,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Admit decides whether one more unit of the metric fits under the user's
// plan for the current billing period and, if so, consumes it atomically.
// Returns false, nil when the quota is exhausted: an admission outcome, not
// an error.
func (s *Service) Admit(ctx context.Context, userID uuid.UUID, metric Metric) (bool, error) {
	sub, err := s.subscription(ctx, userID)
	if err != nil {
		return false, err
	}

	plan, ok := s.plans[sub.PlanID]
	if !ok {
		return false, ErrPlanNotFound
	}

	limit, ok := plan.Limits[metric]
	if !ok {
		return false, ErrUnknownMetric
	}

	return s.usage.Consume(ctx, userID, metric, 1, limit, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
}

// GetUsage returns the current period's consumption and limit for a metric.
func (s *Service) GetUsage(ctx context.Context, userID uuid.UUID, metric Metric) (Usage, error) {
	sub, err := s.subscription(ctx, userID)
	if err != nil {
		return Usage{}, err
	}

	plan, ok := s.plans[sub.PlanID]
	if !ok {
		return Usage{}, ErrPlanNotFound
	}

	limit, ok := plan.Limits[metric]
	if !ok {
		return Usage{}, ErrUnknownMetric
	}

	used, err := s.usage.Used(ctx, userID, metric, sub.CurrentPeriodStart)
	if err != nil {
		return Usage{}, err
	}

	return Usage{Used: used, Limit: limit}, nil
}

// VerifyPlan checks if a plan ID is valid.
func (s *Service) VerifyPlan(planID string) error {
	if _, ok := s.plans[planID]; !ok {
		return ErrPlanNotFound
	}
	return nil
}

// subscription loads the user's subscription, provisioning a free plan for
// first-time users and rolling the period over when it has expired. A paid
// plan keeps its entitlements through the renewal grace window; after that
// the rollover lands on free.
func (s *Service) subscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.subs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return nil, errors.Join(ErrStoreFailure, err)
		}

		// Every user has at least the free plan.
		fresh := newSubscriptionAt(userID, s.plans[PlanFree], s.now())
		if err := s.subs.Upsert(ctx, fresh); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		return &fresh, nil
	}

	now := s.now()
	if !sub.ExpiredAt(now) {
		return sub, nil
	}

	if sub.PlanID == PlanFree || sub.GraceElapsedAt(now) {
		renewed := sub.renewAt(s.plans[PlanFree], now)
		if err := s.subs.Upsert(ctx, renewed); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}

		s.logger.LogAttrs(ctx, slog.LevelInfo, "Subscription period rolled over",
			logger.UserID(userID),
			slog.String("plan_id", renewed.PlanID),
		)

		return &renewed, nil
	}

	// Expired paid plan inside the grace window: keep entitlements and wait
	// for the billing collaborator to confirm renewal.
	return sub, nil
}

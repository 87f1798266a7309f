package quota

// Metric represents a countable usage dimension.
type Metric string

// Predefined metrics.
const (
	MetricNotifications Metric = "notifications"
)

// Unlimited represents a metric with no limit (-1).
const Unlimited int64 = -1

// Built-in plan identifiers.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Plan describes a subscription plan and its per-metric limits. PeriodDays
// is the length of a billing period; usage counters reset when the period
// rolls over.
type Plan struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Limits      map[Metric]int64 `yaml:"limits"`
	PeriodDays  int              `yaml:"period_days"`
}

// DefaultPlans returns the built-in free and pro plans.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		PlanFree: {
			ID:          PlanFree,
			Name:        "Free",
			Description: "Free tier with limited notifications",
			Limits:      map[Metric]int64{MetricNotifications: 10_000},
			PeriodDays:  30,
		},
		PlanPro: {
			ID:          PlanPro,
			Name:        "Pro",
			Description: "Pro tier with higher limits",
			Limits:      map[Metric]int64{MetricNotifications: 100_000},
			PeriodDays:  30,
		},
	}
}

// validatePlans checks plan configurations for validity.
func validatePlans(plans map[string]Plan) error {
	for _, plan := range plans {
		if plan.PeriodDays <= 0 {
			return ErrInvalidPlanConfiguration
		}
		for _, limit := range plan.Limits {
			if limit < Unlimited {
				return ErrInvalidPlanConfiguration
			}
		}
	}
	return nil
}

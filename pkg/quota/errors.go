package quota

import "errors"

// Domain errors for quota operations.
var (
	ErrPlanNotFound             = errors.New("quota.errors.plan_not_found")
	ErrUnknownMetric            = errors.New("quota.errors.unknown_metric")
	ErrSubscriptionNotFound     = errors.New("quota.errors.subscription_not_found")
	ErrQuotaExceeded            = errors.New("quota.errors.quota_exceeded")
	ErrFailedToLoadPlans        = errors.New("quota.errors.failed_to_load_plans")
	ErrInvalidPlanConfiguration = errors.New("quota.errors.invalid_plan_configuration")
	ErrStoreFailure             = errors.New("quota.errors.store_failure")
)

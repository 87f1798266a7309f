// Package quota tracks per-user notification usage against subscription
// plan limits and admits or rejects sends.
//
// The one hard guarantee here is atomic admission: checking the counter and
// incrementing it happen as a single operation, never as separate read and
// write steps, so concurrent sends can never overshoot a plan limit. Both
// usage stores honor that contract — the memory store under one mutex, the
// Redis store through a Lua script.
//
// Usage is keyed by billing period. When a subscription rolls over to a new
// period the counter key changes, so usage resets without bookkeeping.
//
// # Basic Usage
//
//	svc, err := quota.NewService(ctx, quota.NewInMemSource(quota.DefaultPlans()),
//		quota.NewMemoryUsageStore(), quota.NewMemorySubscriptionStore())
//	ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
package quota

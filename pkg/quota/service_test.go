package quota_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald-labs/herald/pkg/quota"
)

func newService(t *testing.T, plans map[string]quota.Plan) (*quota.Service, *quota.MemorySubscriptionStore) {
	t.Helper()

	if plans == nil {
		plans = quota.DefaultPlans()
	}
	subs := quota.NewMemorySubscriptionStore()
	svc, err := quota.NewService(context.Background(),
		quota.NewInMemSource(plans),
		quota.NewMemoryUsageStore(),
		subs,
	)
	require.NoError(t, err)
	return svc, subs
}

func plansWithLimit(limit int64) map[string]quota.Plan {
	return map[string]quota.Plan{
		quota.PlanFree: {
			ID:         quota.PlanFree,
			Name:       "Free",
			Limits:     map[quota.Metric]int64{quota.MetricNotifications: limit},
			PeriodDays: 30,
		},
	}
}

func TestService_Admit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("provisions free plan on first use", func(t *testing.T) {
		t.Parallel()

		svc, subs := newService(t, nil)
		userID := uuid.New()

		ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
		require.NoError(t, err)
		assert.True(t, ok)

		sub, err := subs.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, quota.PlanFree, sub.PlanID)
	})

	t.Run("denies once the limit is reached", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t, plansWithLimit(2))
		userID := uuid.New()

		for range 2 {
			ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
		require.NoError(t, err)
		assert.False(t, ok)

		usage, err := svc.GetUsage(ctx, userID, quota.MetricNotifications)
		require.NoError(t, err)
		assert.Equal(t, quota.Usage{Used: 2, Limit: 2}, usage)
	})

	t.Run("unlimited plans always admit", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t, plansWithLimit(quota.Unlimited))
		userID := uuid.New()

		for range 10 {
			ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("unknown metric errors", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t, nil)
		_, err := svc.Admit(ctx, uuid.New(), quota.Metric("emails"))
		assert.ErrorIs(t, err, quota.ErrUnknownMetric)
	})
}

func TestService_Admit_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	const limit = 50
	const attempts = 200

	svc, _ := newService(t, plansWithLimit(limit))
	userID := uuid.New()

	// warm up so the subscription upsert does not race
	ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
	require.NoError(t, err)
	require.True(t, ok)

	var admitted atomic.Int64
	admitted.Add(1)

	var wg sync.WaitGroup
	for range attempts - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	// atomic check-and-increment admits exactly the limit, never more
	assert.Equal(t, int64(limit), admitted.Load())
}

func TestService_PeriodRollover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	now := time.Now().UTC()
	clock := now
	svc, err := quota.NewService(ctx,
		quota.NewInMemSource(plansWithLimit(1)),
		quota.NewMemoryUsageStore(),
		quota.NewMemorySubscriptionStore(),
		quota.WithClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	userID := uuid.New()

	ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Admit(ctx, userID, quota.MetricNotifications)
	require.NoError(t, err)
	require.False(t, ok)

	// the next period starts with a fresh counter
	clock = now.AddDate(0, 0, 31)

	ok, err = svc.Admit(ctx, userID, quota.MetricNotifications)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_RenewalGrace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	clock := now

	subs := quota.NewMemorySubscriptionStore()
	svc, err := quota.NewService(ctx,
		quota.NewInMemSource(quota.DefaultPlans()),
		quota.NewMemoryUsageStore(),
		subs,
		quota.WithClock(func() time.Time { return clock }),
	)
	require.NoError(t, err)

	userID := uuid.New()

	// a paid subscription that expired an hour ago
	require.NoError(t, subs.Upsert(ctx, quota.Subscription{
		UserID:             userID,
		PlanID:             quota.PlanPro,
		CurrentPeriodStart: now.AddDate(0, 0, -30),
		CurrentPeriodEnd:   now.Add(-time.Hour),
		CreatedAt:          now.AddDate(0, 0, -30),
	}))

	// inside the grace window the pro entitlements survive
	ok, err := svc.Admit(ctx, userID, quota.MetricNotifications)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := subs.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanPro, got.PlanID)

	// once the grace window elapses the rollover lands on free
	clock = now.Add(quota.RenewalGracePeriod + time.Hour)

	ok, err = svc.Admit(ctx, userID, quota.MetricNotifications)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = subs.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, quota.PlanFree, got.PlanID)
}

func TestService_VerifyPlan(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)
	assert.NoError(t, svc.VerifyPlan(quota.PlanFree))
	assert.NoError(t, svc.VerifyPlan(quota.PlanPro))
	assert.ErrorIs(t, svc.VerifyPlan("enterprise"), quota.ErrPlanNotFound)
}

func TestNewService_RejectsInvalidPlans(t *testing.T) {
	t.Parallel()

	bad := map[string]quota.Plan{
		quota.PlanFree: {ID: quota.PlanFree, PeriodDays: 0},
	}
	_, err := quota.NewService(context.Background(),
		quota.NewInMemSource(bad),
		quota.NewMemoryUsageStore(),
		quota.NewMemorySubscriptionStore(),
	)
	assert.ErrorIs(t, err, quota.ErrInvalidPlanConfiguration)
}

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	raw := `
free:
  name: Free
  limits:
    notifications: 100
  period_days: 30
pro:
  id: pro
  name: Pro
  limits:
    notifications: -1
  period_days: 30
`
	path := filepath.Join(t.TempDir(), "plans.yml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	plans, err := quota.NewYAMLSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)

	// the map key is authoritative when id is omitted
	assert.Equal(t, "free", plans["free"].ID)
	assert.Equal(t, int64(100), plans["free"].Limits[quota.MetricNotifications])
	assert.Equal(t, quota.Unlimited, plans["pro"].Limits[quota.MetricNotifications])

	_, err = quota.NewYAMLSource(filepath.Join(t.TempDir(), "missing.yml")).Load(context.Background())
	assert.ErrorIs(t, err, quota.ErrFailedToLoadPlans)
}

package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald-labs/herald/pkg/delivery"
	"github.com/herald-labs/herald/pkg/preference"
	"github.com/herald-labs/herald/pkg/quota"
	"github.com/herald-labs/herald/pkg/recipient"
	"github.com/herald-labs/herald/pkg/target"
)

type fixture struct {
	registry *recipient.Service
	prefs    *preference.Resolver
	store    *delivery.MemoryStorage
	bstore   *delivery.MemoryBroadcastStorage
}

func newEngine(t *testing.T, plans map[string]quota.Plan, opts ...delivery.EngineOption) (*delivery.Engine, *fixture) {
	t.Helper()

	reg := recipient.NewService(recipient.NewMemoryStorage())
	prefs := preference.NewResolver(preference.NewMemoryStorage(),
		preference.WithRecipientExists(func(ctx context.Context, projectID uuid.UUID, recipientID string) (bool, error) {
			_, err := reg.Get(ctx, projectID, recipientID)
			if errors.Is(err, recipient.ErrNotFound) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return true, nil
		}),
	)

	if plans == nil {
		plans = quota.DefaultPlans()
	}
	quotas, err := quota.NewService(context.Background(),
		quota.NewInMemSource(plans),
		quota.NewMemoryUsageStore(),
		quota.NewMemorySubscriptionStore(),
	)
	require.NoError(t, err)

	store := delivery.NewMemoryStorage()
	bstore := delivery.NewMemoryBroadcastStorage()

	eng := delivery.NewEngine(store, bstore, reg, prefs, quotas, opts...)
	return eng, &fixture{registry: reg, prefs: prefs, store: store, bstore: bstore}
}

func cappedPlans(limit int64) map[string]quota.Plan {
	return map[string]quota.Plan{
		quota.PlanFree: {
			ID:         quota.PlanFree,
			Name:       "Free",
			Limits:     map[quota.Metric]int64{quota.MetricNotifications: limit},
			PeriodDays: 30,
		},
	}
}

func strPtr(s string) *string { return &s }

func targetPtr(t target.Target) *target.Target { return &t }

var payload = json.RawMessage(`{"title":"hello"}`)

func TestEngine_Send_Direct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil)
	projectID := uuid.New()
	ownerID := uuid.New()

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     ownerID,
		RecipientID: strPtr("user-1"),
		Target:      targetPtr(target.Target{Channel: "billing", Event: "invoice_paid"}),
		Payload:     payload,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Nil(t, res.Broadcast)

	n := res.Notification
	assert.Equal(t, delivery.StatusDelivered, n.Status)
	assert.True(t, n.Completed())
	assert.Nil(t, n.BroadcastID)
	assert.Equal(t, "user-1", n.RecipientID)

	// addressing an unknown recipient registers it
	rec, err := f.registry.Get(ctx, projectID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.ID)

	feed, more, err := eng.ListForRecipient(ctx, projectID, "user-1", delivery.Cursor{})
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, feed, 1)
	assert.Equal(t, n.ID, feed[0].ID)

	unread, err := eng.UnreadCount(ctx, projectID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestEngine_Send_DirectWithoutTarget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, _ := newEngine(t, nil)

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   uuid.New(),
		OwnerID:     uuid.New(),
		RecipientID: strPtr("user-1"),
		Payload:     payload,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Equal(t, delivery.StatusDelivered, res.Notification.Status)
}

func TestEngine_Send_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, _ := newEngine(t, nil)
	projectID := uuid.New()
	ownerID := uuid.New()

	tests := []struct {
		name    string
		req     delivery.SendRequest
		wantErr error
	}{
		{
			name:    "missing payload",
			req:     delivery.SendRequest{ProjectID: projectID, OwnerID: ownerID, RecipientID: strPtr("u")},
			wantErr: delivery.ErrInvalidRequest,
		},
		{
			name: "oversized payload",
			req: delivery.SendRequest{
				ProjectID:   projectID,
				OwnerID:     ownerID,
				RecipientID: strPtr("u"),
				Payload:     json.RawMessage(make([]byte, delivery.MaxPayloadSize+1)),
			},
			wantErr: delivery.ErrPayloadTooLarge,
		},
		{
			name:    "no addressing mode",
			req:     delivery.SendRequest{ProjectID: projectID, OwnerID: ownerID, Payload: payload},
			wantErr: delivery.ErrInvalidRequest,
		},
		{
			name:    "empty recipient id",
			req:     delivery.SendRequest{ProjectID: projectID, OwnerID: ownerID, RecipientID: strPtr(""), Payload: payload},
			wantErr: delivery.ErrInvalidRequest,
		},
		{
			name: "wildcard topic on direct send",
			req: delivery.SendRequest{
				ProjectID:   projectID,
				OwnerID:     ownerID,
				RecipientID: strPtr("u"),
				Target:      targetPtr(target.Target{Channel: "billing", Topic: target.TopicAny, Event: "invoice_paid"}),
				Payload:     payload,
			},
			wantErr: delivery.ErrInvalidTarget,
		},
		{
			name: "incomplete broadcast target",
			req: delivery.SendRequest{
				ProjectID: projectID,
				OwnerID:   ownerID,
				Target:    targetPtr(target.Target{Channel: "billing"}),
				Payload:   payload,
			},
			wantErr: delivery.ErrInvalidTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := eng.Send(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_Send_DirectMutedByOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil)
	projectID := uuid.New()
	tgt := target.Target{Channel: "marketing", Topic: "weekly", Event: "digest"}

	_, err := f.registry.Create(ctx, projectID, recipient.CreateInput{ID: "user-1"})
	require.NoError(t, err)
	_, err = f.prefs.Set(ctx, projectID, "user-1", tgt, false)
	require.NoError(t, err)

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     uuid.New(),
		RecipientID: strPtr("user-1"),
		Target:      &tgt,
		Payload:     payload,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Notification)
	assert.Equal(t, delivery.StatusMuted, res.Notification.Status)
	assert.True(t, res.Notification.Completed())

	// suppressed outcomes never surface in the feed
	feed, _, err := eng.ListForRecipient(ctx, projectID, "user-1", delivery.Cursor{})
	require.NoError(t, err)
	assert.Empty(t, feed)

	unread, err := eng.UnreadCount(ctx, projectID, "user-1")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestEngine_Send_DirectMutedByRuleDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil)
	projectID := uuid.New()
	tgt := target.Target{Channel: "marketing", Topic: "promos", Event: "sale"}

	_, err := f.prefs.CreateRule(ctx, projectID, tgt, "Sale promotions", false)
	require.NoError(t, err)

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     uuid.New(),
		RecipientID: strPtr("user-1"),
		Target:      &tgt,
		Payload:     payload,
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusMuted, res.Notification.Status)
}

func TestEngine_Send_QuotaExceeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, _ := newEngine(t, cappedPlans(1))
	projectID := uuid.New()
	ownerID := uuid.New()

	first, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     ownerID,
		RecipientID: strPtr("user-1"),
		Payload:     payload,
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, first.Notification.Status)

	second, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     ownerID,
		RecipientID: strPtr("user-1"),
		Payload:     payload,
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusQuotaExceeded, second.Notification.Status)

	feed, _, err := eng.ListForRecipient(ctx, projectID, "user-1", delivery.Cursor{})
	require.NoError(t, err)
	assert.Len(t, feed, 1)
}

func TestEngine_Send_BroadcastRequiresRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, _ := newEngine(t, nil)

	_, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID: uuid.New(),
		OwnerID:   uuid.New(),
		Target:    targetPtr(target.Target{Channel: "product", Topic: "news", Event: "release"}),
		Payload:   payload,
	})
	assert.ErrorIs(t, err, delivery.ErrNoMatchingRule)
}

func TestEngine_Send_BroadcastFanOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil)
	projectID := uuid.New()
	tgt := target.Target{Channel: "product", Topic: "news", Event: "release"}

	_, err := f.prefs.CreateRule(ctx, projectID, tgt, "Release notes", true)
	require.NoError(t, err)

	recipients := []string{"user-1", "user-2", "user-3", "user-4", "user-5"}
	for _, rid := range recipients {
		_, err := f.registry.Create(ctx, projectID, recipient.CreateInput{ID: rid})
		require.NoError(t, err)
	}

	// two recipients opt out
	for _, rid := range []string{"user-2", "user-4"} {
		_, err := f.prefs.Set(ctx, projectID, rid, tgt, false)
		require.NoError(t, err)
	}

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID: projectID,
		OwnerID:   uuid.New(),
		Target:    &tgt,
		Payload:   payload,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Broadcast)
	assert.Nil(t, res.Notification)
	assert.Equal(t, delivery.BroadcastCompleted, res.Broadcast.Status())
	require.NotNil(t, res.Broadcast.CompletedAt)

	delivered := 0
	for _, rid := range recipients {
		feed, _, err := eng.ListForRecipient(ctx, projectID, rid, delivery.Cursor{})
		require.NoError(t, err)
		delivered += len(feed)
		for _, n := range feed {
			require.NotNil(t, n.BroadcastID)
			assert.Equal(t, res.Broadcast.ID, *n.BroadcastID)
			assert.Equal(t, tgt, n.Target)
		}
	}
	assert.Equal(t, 3, delivered)

	for _, rid := range []string{"user-2", "user-4"} {
		feed, _, err := eng.ListForRecipient(ctx, projectID, rid, delivery.Cursor{})
		require.NoError(t, err)
		assert.Empty(t, feed)
	}
}

func TestEngine_Send_BroadcastPagedFanOut(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil,
		delivery.WithFanOutPageSize(2),
		delivery.WithWorkers(2),
	)
	projectID := uuid.New()
	tgt := target.Target{Channel: "product", Topic: "news", Event: "release"}

	_, err := f.prefs.CreateRule(ctx, projectID, tgt, "Release notes", true)
	require.NoError(t, err)

	for _, rid := range []string{"a", "b", "c", "d", "e"} {
		_, err := f.registry.Create(ctx, projectID, recipient.CreateInput{ID: rid})
		require.NoError(t, err)
	}

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID: projectID,
		OwnerID:   uuid.New(),
		Target:    &tgt,
		Payload:   payload,
	})
	require.NoError(t, err)

	total := 0
	for _, rid := range []string{"a", "b", "c", "d", "e"} {
		feed, _, err := eng.ListForRecipient(ctx, projectID, rid, delivery.Cursor{})
		require.NoError(t, err)
		total += len(feed)
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, delivery.BroadcastCompleted, res.Broadcast.Status())
}

func TestEngine_Send_BroadcastQuotaPartial(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, cappedPlans(2), delivery.WithWorkers(4))
	projectID := uuid.New()
	tgt := target.Target{Channel: "product", Topic: "news", Event: "release"}

	_, err := f.prefs.CreateRule(ctx, projectID, tgt, "Release notes", true)
	require.NoError(t, err)

	for _, rid := range []string{"a", "b", "c", "d"} {
		_, err := f.registry.Create(ctx, projectID, recipient.CreateInput{ID: rid})
		require.NoError(t, err)
	}

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID: projectID,
		OwnerID:   uuid.New(),
		Target:    &tgt,
		Payload:   payload,
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.BroadcastCompleted, res.Broadcast.Status())

	// the quota admits exactly two of the four admissions, never more
	delivered := 0
	for _, rid := range []string{"a", "b", "c", "d"} {
		feed, _, err := eng.ListForRecipient(ctx, projectID, rid, delivery.Cursor{})
		require.NoError(t, err)
		delivered += len(feed)
	}
	assert.Equal(t, 2, delivered)
}

func TestEngine_UpdateStateAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, _ := newEngine(t, nil)
	projectID := uuid.New()
	ownerID := uuid.New()

	var ids []uuid.UUID
	for range 3 {
		res, err := eng.Send(ctx, delivery.SendRequest{
			ProjectID:   projectID,
			OwnerID:     ownerID,
			RecipientID: strPtr("user-1"),
			Payload:     payload,
		})
		require.NoError(t, err)
		ids = append(ids, res.Notification.ID)
	}

	read := true
	updated, err := eng.UpdateState(ctx, projectID, "user-1", ids[:2], delivery.StateChange{Read: &read})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	unread, err := eng.UnreadCount(ctx, projectID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	// empty change set is rejected
	_, err = eng.UpdateState(ctx, projectID, "user-1", ids, delivery.StateChange{})
	assert.ErrorIs(t, err, delivery.ErrInvalidRequest)

	deleted, err := eng.Delete(ctx, projectID, "user-1", ids[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	feed, _, err := eng.ListForRecipient(ctx, projectID, "user-1", delivery.Cursor{})
	require.NoError(t, err)
	assert.Len(t, feed, 2)
}

func TestEngine_RecipientCascade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// wire the engine's cascade into the registry the way an application would
	store := delivery.NewMemoryStorage()
	bstore := delivery.NewMemoryBroadcastStorage()

	var eng *delivery.Engine
	reg := recipient.NewService(recipient.NewMemoryStorage(),
		recipient.WithCascade(func(ctx context.Context, projectID uuid.UUID, recipientID string) error {
			return eng.CascadeDelete(ctx, projectID, recipientID)
		}),
	)
	prefs := preference.NewResolver(preference.NewMemoryStorage())
	quotas, err := quota.NewService(ctx,
		quota.NewInMemSource(quota.DefaultPlans()),
		quota.NewMemoryUsageStore(),
		quota.NewMemorySubscriptionStore(),
	)
	require.NoError(t, err)
	eng = delivery.NewEngine(store, bstore, reg, prefs, quotas)

	projectID := uuid.New()
	_, err = eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     uuid.New(),
		RecipientID: strPtr("user-1"),
		Payload:     payload,
	})
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, projectID, "user-1"))

	feed, _, err := eng.ListForRecipient(ctx, projectID, "user-1", delivery.Cursor{})
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestEngine_RecipientCounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil)
	projectID := uuid.New()
	ownerID := uuid.New()
	tgt := target.Target{Channel: "product", Topic: "news", Event: "release"}

	_, err := f.prefs.CreateRule(ctx, projectID, tgt, "Release notes", true)
	require.NoError(t, err)
	_, err = f.registry.Create(ctx, projectID, recipient.CreateInput{ID: "user-1"})
	require.NoError(t, err)

	_, err = eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     ownerID,
		RecipientID: strPtr("user-1"),
		Payload:     payload,
	})
	require.NoError(t, err)

	_, err = eng.Send(ctx, delivery.SendRequest{
		ProjectID: projectID,
		OwnerID:   ownerID,
		Target:    &tgt,
		Payload:   payload,
	})
	require.NoError(t, err)

	counts, err := eng.RecipientCounts(ctx, projectID, []string{"user-1"})
	require.NoError(t, err)
	assert.Equal(t, recipient.Counts{Direct: 1, Broadcast: 1}, counts["user-1"])
}

func TestEngine_GetAndListBroadcasts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng, f := newEngine(t, nil)
	projectID := uuid.New()
	tgt := target.Target{Channel: "product", Topic: "news", Event: "release"}

	_, err := f.prefs.CreateRule(ctx, projectID, tgt, "Release notes", true)
	require.NoError(t, err)

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID: projectID,
		OwnerID:   uuid.New(),
		Target:    &tgt,
		Payload:   payload,
	})
	require.NoError(t, err)

	got, err := eng.GetBroadcast(ctx, projectID, res.Broadcast.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.BroadcastCompleted, got.Status())

	list, more, err := eng.ListBroadcasts(ctx, projectID, delivery.Cursor{})
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, list, 1)
	assert.Equal(t, res.Broadcast.ID, list[0].ID)

	_, err = eng.GetBroadcast(ctx, projectID, uuid.New())
	assert.ErrorIs(t, err, delivery.ErrBroadcastMissing)
}

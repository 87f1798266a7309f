package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald-labs/herald/pkg/delivery"
	"github.com/herald-labs/herald/pkg/target"
)

func TestFeed_SubscribeAndDeliver(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := delivery.NewFeed()
	defer feed.Close()

	projectID := uuid.New()
	ch := feed.Subscribe(ctx, projectID, "user-1")

	n := delivery.NewNotification(projectID, "user-1", target.Target{Channel: "billing", Event: "invoice_paid"}, payload, nil)
	require.NoError(t, feed.Deliver(ctx, n))

	select {
	case got := <-ch:
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a live notification")
	}
}

func TestFeed_ScopedToRecipient(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := delivery.NewFeed()
	defer feed.Close()

	projectID := uuid.New()
	mine := feed.Subscribe(ctx, projectID, "user-1")
	theirs := feed.Subscribe(ctx, projectID, "user-2")

	n := delivery.NewNotification(projectID, "user-1", target.Target{Channel: "billing", Event: "invoice_paid"}, payload, nil)
	require.NoError(t, feed.Deliver(ctx, n))

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("expected a live notification")
	}

	select {
	case got := <-theirs:
		t.Fatalf("notification leaked to another recipient: %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeed_UnsubscribeOnContextCancel(t *testing.T) {
	t.Parallel()

	feed := delivery.NewFeed()
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := feed.Subscribe(ctx, uuid.New(), "user-1")
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after cancel")
	}
}

func TestFeed_EngineIntegration(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := delivery.NewFeed()
	defer feed.Close()

	eng, _ := newEngine(t, nil, delivery.WithDeliverer(feed))
	projectID := uuid.New()

	ch := feed.Subscribe(ctx, projectID, "user-1")

	res, err := eng.Send(ctx, delivery.SendRequest{
		ProjectID:   projectID,
		OwnerID:     uuid.New(),
		RecipientID: strPtr("user-1"),
		Payload:     payload,
	})
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, res.Notification.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected the engine to push into the feed")
	}
}

func TestFeed_CloseClosesSubscribers(t *testing.T) {
	t.Parallel()

	feed := delivery.NewFeed()
	ch := feed.Subscribe(context.Background(), uuid.New(), "user-1")
	feed.Close()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("expected channel to close on shutdown")
	}
}

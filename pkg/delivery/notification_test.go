package delivery_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herald-labs/herald/pkg/delivery"
	"github.com/herald-labs/herald/pkg/target"
)

func TestStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from delivery.Status
		to   delivery.Status
		want bool
	}{
		{delivery.StatusEnqueued, delivery.StatusDelivered, true},
		{delivery.StatusEnqueued, delivery.StatusMuted, true},
		{delivery.StatusEnqueued, delivery.StatusQuotaExceeded, true},
		{delivery.StatusEnqueued, delivery.StatusFailed, true},
		{delivery.StatusDelivered, delivery.StatusMuted, false},
		{delivery.StatusMuted, delivery.StatusDelivered, false},
		{delivery.StatusFailed, delivery.StatusEnqueued, false},
		{delivery.StatusDelivered, delivery.StatusEnqueued, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestNotification_Lifecycle(t *testing.T) {
	t.Parallel()

	tgt := target.Target{Channel: "billing", Event: "invoice_paid"}

	t.Run("enqueued to delivered to completed", func(t *testing.T) {
		t.Parallel()

		n := delivery.NewNotification(uuid.New(), "user-1", tgt, payload, nil)
		assert.Equal(t, delivery.StatusEnqueued, n.Status)
		assert.False(t, n.Completed())

		require.NoError(t, n.Transition(delivery.StatusDelivered))
		require.NoError(t, n.Complete(time.Now()))
		assert.True(t, n.Completed())
	})

	t.Run("complete requires a terminal outcome", func(t *testing.T) {
		t.Parallel()

		n := delivery.NewNotification(uuid.New(), "user-1", tgt, payload, nil)
		assert.ErrorIs(t, n.Complete(time.Now()), delivery.ErrInvalidTransition)
	})

	t.Run("complete is not repeatable", func(t *testing.T) {
		t.Parallel()

		n := delivery.NewNotification(uuid.New(), "user-1", tgt, payload, nil)
		require.NoError(t, n.Transition(delivery.StatusMuted))
		require.NoError(t, n.Complete(time.Now()))
		assert.ErrorIs(t, n.Complete(time.Now()), delivery.ErrInvalidTransition)
	})

	t.Run("terminal outcomes reject further transitions", func(t *testing.T) {
		t.Parallel()

		n := delivery.NewNotification(uuid.New(), "user-1", tgt, payload, nil)
		require.NoError(t, n.Transition(delivery.StatusQuotaExceeded))
		assert.ErrorIs(t, n.Transition(delivery.StatusDelivered), delivery.ErrInvalidTransition)
	})
}

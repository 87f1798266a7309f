package delivery

import "context"

// Deliverer pushes a delivered notification toward the recipient. The engine
// calls it after the notification row is persisted; a deliverer failure marks
// that notification failed but never aborts a broadcast fan-out.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, n Notification) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// NoopDeliverer accepts every notification without side effects. The default
// when the feed is the only consumption surface.
type NoopDeliverer struct{}

func (NoopDeliverer) Deliver(ctx context.Context, n Notification) error { return nil }

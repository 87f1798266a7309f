package delivery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/logger"
)

// Feed is an in-process hub that pushes delivered notifications to live
// subscribers, keyed by (project, recipient). It implements Deliverer so it
// can be wired straight into the engine. Slow subscribers are skipped, never
// blocked on: the persisted feed remains the source of truth.
type Feed struct {
	subs   map[feedKey][]chan Notification
	buffer int
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithFeedBuffer sets the per-subscriber channel buffer (default 16).
func WithFeedBuffer(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.buffer = n
		}
	}
}

// WithFeedLogger sets the logger for the Feed.
func WithFeedLogger(log *slog.Logger) FeedOption {
	return func(f *Feed) {
		f.logger = log
	}
}

// NewFeed creates a live-notification hub.
func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{
		subs:   make(map[feedKey][]chan Notification),
		buffer: 16,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Subscribe returns a channel of the recipient's delivered notifications.
// The subscription ends, and the channel closes, when ctx is canceled or the
// feed shuts down.
func (f *Feed) Subscribe(ctx context.Context, projectID uuid.UUID, recipientID string) <-chan Notification {
	ch := make(chan Notification, f.buffer)
	key := feedKey{project: projectID, recipient: recipientID}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	f.subs[key] = append(f.subs[key], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.unsubscribe(key, ch)
	}()

	return ch
}

func (f *Feed) unsubscribe(key feedKey, ch chan Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	chans := f.subs[key]
	for i, c := range chans {
		if c == ch {
			f.subs[key] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(f.subs[key]) == 0 {
		delete(f.subs, key)
	}
}

// Deliver fans the notification out to the recipient's live subscribers.
func (f *Feed) Deliver(ctx context.Context, n Notification) error {
	key := feedKey{project: n.ProjectID, recipient: n.RecipientID}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil
	}

	for _, ch := range f.subs[key] {
		select {
		case ch <- n:
		default:
			f.logger.LogAttrs(ctx, slog.LevelWarn, "Dropped live notification for slow subscriber",
				logger.ProjectID(n.ProjectID),
				logger.RecipientID(n.RecipientID),
				logger.NotificationID(n.ID),
			)
		}
	}

	return nil
}

// Close shuts the hub down and closes every subscriber channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	for key, chans := range f.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(f.subs, key)
	}
}

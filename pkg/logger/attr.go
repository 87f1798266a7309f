package logger

import (
	"log/slog"

	"github.com/herald-labs/herald/pkg/target"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ProjectID records the project identifier under the key "project_id".
// If id is nil, it returns an empty Attr.
func ProjectID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("project_id", id)
}

// RecipientID records the recipient external identifier under the key
// "recipient_id". If id is empty, it returns an empty Attr.
func RecipientID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("recipient_id", id)
}

// NotificationID records the notification identifier under the key
// "notification_id". If id is nil, it returns an empty Attr.
func NotificationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_id", id)
}

// BroadcastID records the broadcast identifier under the key "broadcast_id".
// If id is nil, it returns an empty Attr.
func BroadcastID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("broadcast_id", id)
}

// UserID records the account identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Target groups a notification target's three fields under the key "target".
func Target(t target.Target) slog.Attr {
	return slog.Attr{Key: "target", Value: slog.GroupValue(
		slog.String("channel", t.Channel),
		slog.String("topic", t.Topic),
		slog.String("event", t.Event),
	)}
}

// Status records a delivery status under the key "status".
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Count records an item count under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

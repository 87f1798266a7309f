package delivery

import "errors"

// Domain errors for the notification engine.
var (
	ErrInvalidRequest      = errors.New("delivery.errors.invalid_request")
	ErrInvalidTarget       = errors.New("delivery.errors.invalid_target")
	ErrPayloadTooLarge     = errors.New("delivery.errors.payload_too_large")
	ErrNoMatchingRule      = errors.New("delivery.errors.no_matching_rule")
	ErrNotificationMissing = errors.New("delivery.errors.notification_not_found")
	ErrBroadcastMissing    = errors.New("delivery.errors.broadcast_not_found")
	ErrInvalidTransition   = errors.New("delivery.errors.invalid_transition")
	ErrInvalidCursor       = errors.New("delivery.errors.invalid_cursor")
	ErrDeliveryFailed      = errors.New("delivery.errors.delivery_failed")
)

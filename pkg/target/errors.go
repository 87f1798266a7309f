package target

import "errors"

// Domain errors for target validation.
var (
	ErrChannelRequired = errors.New("target.errors.channel_required")
	ErrTopicRequired   = errors.New("target.errors.topic_required")
	ErrEventRequired   = errors.New("target.errors.event_required")
	ErrReservedToken   = errors.New("target.errors.reserved_token")
)

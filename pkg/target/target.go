package target

import "errors"

// Reserved topic tokens. They are only meaningful in the topic position;
// using them as a channel or event identifier is a validation error.
const (
	// TopicAny matches every candidate topic, including an absent one.
	TopicAny = "any"
	// TopicNone matches only an absent topic.
	TopicNone = "none"
)

// Target identifies a notification category as a (channel, topic, event)
// triple. All fields are free-text identifiers except the reserved topic
// tokens. A Target is a value type: it is never mutated after being attached
// to a notification or a preference.
type Target struct {
	Channel string `json:"channel"`
	Topic   string `json:"topic"`
	Event   string `json:"event"`
}

// TopicAbsent reports whether the target carries no topic. An empty string
// and the explicit "none" token are equivalent in the candidate position.
func (t Target) TopicAbsent() bool {
	return t.Topic == "" || t.Topic == TopicNone
}

// IsComplete reports whether all three fields are set. Broadcast targets
// must be complete.
func (t Target) IsComplete() bool {
	return t.Channel != "" && t.Topic != "" && t.Event != ""
}

// Matches reports whether candidate falls under rule.
//
// Channel and event require exact equality. The rule topic "any" matches
// every candidate topic, "none" matches only an absent candidate topic, and
// anything else requires exact equality.
func Matches(candidate, rule Target) bool {
	if candidate.Channel != rule.Channel || candidate.Event != rule.Event {
		return false
	}

	switch rule.Topic {
	case TopicAny:
		return true
	case TopicNone:
		return candidate.TopicAbsent()
	default:
		return candidate.Topic == rule.Topic
	}
}

// Specificity ranks a rule for resolver tie-breaks: a rule with an exact or
// "none" topic outranks an "any" fallback that matches the same channel and
// event. Higher wins.
func Specificity(rule Target) int {
	if rule.Topic == TopicAny {
		return 0
	}
	return 1
}

// ValidateRule validates a target used as a preference rule. Channel, topic
// and event are all required; the reserved tokens are permitted only in the
// topic position.
func ValidateRule(t Target) error {
	var errs []error

	if t.Channel == "" {
		errs = append(errs, ErrChannelRequired)
	}
	if t.Topic == "" {
		errs = append(errs, ErrTopicRequired)
	}
	if t.Event == "" {
		errs = append(errs, ErrEventRequired)
	}
	if err := checkReserved(t); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateConcrete validates a target attached to a direct send. Channel is
// required, topic may be absent, and no wildcard may appear anywhere: a
// stored notification target is always fully concrete.
func ValidateConcrete(t Target) error {
	var errs []error

	if t.Channel == "" {
		errs = append(errs, ErrChannelRequired)
	}
	if t.Topic == TopicAny {
		errs = append(errs, ErrReservedToken)
	}
	if err := checkReserved(t); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateBroadcast validates a broadcast target: the full triple is
// required and the reserved tokens stay confined to the topic position. The
// topic may name a wildcard here because a broadcast addresses a preference
// rule, not a single concrete category.
func ValidateBroadcast(t Target) error {
	if err := ValidateRule(t); err != nil {
		return err
	}
	return nil
}

// checkReserved rejects the reserved topic tokens in channel or event
// positions.
func checkReserved(t Target) error {
	switch t.Channel {
	case TopicAny, TopicNone:
		return ErrReservedToken
	}
	switch t.Event {
	case TopicAny, TopicNone:
		return ErrReservedToken
	}
	return nil
}

package preference

import "errors"

// Domain errors for preference operations.
var (
	ErrRuleNotFound      = errors.New("preference.errors.rule_not_found")
	ErrDuplicateRule     = errors.New("preference.errors.duplicate_rule")
	ErrOverrideNotFound  = errors.New("preference.errors.override_not_found")
	ErrRecipientNotFound = errors.New("preference.errors.recipient_not_found")
	ErrRecipientRequired = errors.New("preference.errors.recipient_required")
	ErrLabelRequired     = errors.New("preference.errors.label_required")
	ErrStorageFailure    = errors.New("preference.errors.storage_failure")
)

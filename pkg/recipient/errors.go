package recipient

import "errors"

// Domain errors for registry operations.
var (
	ErrNotFound       = errors.New("recipient.errors.not_found")
	ErrAlreadyExists  = errors.New("recipient.errors.already_exists")
	ErrIDRequired     = errors.New("recipient.errors.id_required")
	ErrEmptyBatch     = errors.New("recipient.errors.empty_batch")
	ErrBatchTooLarge  = errors.New("recipient.errors.batch_too_large")
	ErrCascadeFailed  = errors.New("recipient.errors.cascade_failed")
	ErrInvalidPaging  = errors.New("recipient.errors.invalid_paging")
	ErrStorageFailure = errors.New("recipient.errors.storage_failure")
)

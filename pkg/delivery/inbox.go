package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/recipient"
)

// Recipient-facing feed operations and the hooks other packages wire in.

// ListForRecipient pages the recipient's visible feed newest-first.
func (e *Engine) ListForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string, c Cursor) ([]Notification, bool, error) {
	return e.storage.ListForRecipient(ctx, projectID, recipientID, c)
}

// UnreadCount returns how many delivered notifications the recipient has not
// read yet.
func (e *Engine) UnreadCount(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	return e.storage.UnreadCount(ctx, projectID, recipientID)
}

// UpdateState flips read/opened flags on a batch of notifications and
// returns how many rows matched.
func (e *Engine) UpdateState(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID, change StateChange) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if change.Read == nil && change.Opened == nil {
		return 0, errors.Join(ErrInvalidRequest, errors.New("state change must set read or opened"))
	}
	return e.storage.UpdateState(ctx, projectID, recipientID, ids, change)
}

// Delete removes a batch of the recipient's notifications.
func (e *Engine) Delete(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return e.storage.Delete(ctx, projectID, recipientID, ids)
}

// GetBroadcast returns one broadcast with its derived status.
func (e *Engine) GetBroadcast(ctx context.Context, projectID, id uuid.UUID) (*Broadcast, error) {
	return e.broadcasts.Get(ctx, projectID, id)
}

// ListBroadcasts pages the project's broadcasts newest-first.
func (e *Engine) ListBroadcasts(ctx context.Context, projectID uuid.UUID, c Cursor) ([]Broadcast, bool, error) {
	return e.broadcasts.List(ctx, projectID, c)
}

// CascadeDelete removes every notification of a recipient. Shaped to plug
// into the registry's deletion cascade.
func (e *Engine) CascadeDelete(ctx context.Context, projectID uuid.UUID, recipientID string) error {
	_, err := e.storage.DeleteForRecipient(ctx, projectID, recipientID)
	return err
}

// RecipientCounts aggregates delivered direct and broadcast counts per
// recipient. Shaped to plug into the registry's listing decoration.
func (e *Engine) RecipientCounts(ctx context.Context, projectID uuid.UUID, recipientIDs []string) (map[string]recipient.Counts, error) {
	return e.storage.CountForRecipients(ctx, projectID, recipientIDs)
}

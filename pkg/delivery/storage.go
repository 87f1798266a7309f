package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/recipient"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Cursor selects a page of a newest-first listing. Before walks toward older
// entries, After toward newer ones; setting both is invalid.
type Cursor struct {
	Before *uuid.UUID `json:"before,omitempty"`
	After  *uuid.UUID `json:"after,omitempty"`
	Limit  int        `json:"limit"`
}

func (c Cursor) normalize() (Cursor, error) {
	if c.Before != nil && c.After != nil {
		return c, ErrInvalidCursor
	}
	if c.Limit <= 0 {
		c.Limit = defaultPageLimit
	}
	if c.Limit > maxPageLimit {
		c.Limit = maxPageLimit
	}
	return c, nil
}

// StateChange is a partial update of a notification's read/opened flags.
// Nil fields are left untouched.
type StateChange struct {
	Read   *bool `json:"read,omitempty"`
	Opened *bool `json:"opened,omitempty"`
}

// Storage persists notifications. Implementations must scope every operation
// to (project, recipient) so one project can never touch another's rows.
type Storage interface {
	Create(ctx context.Context, n Notification) error

	// Finalize records the terminal outcome and completion stamp of an
	// enqueued notification.
	Finalize(ctx context.Context, projectID, id uuid.UUID, outcome Status, at time.Time) error

	Get(ctx context.Context, projectID uuid.UUID, recipientID string, id uuid.UUID) (*Notification, error)

	// ListForRecipient pages the recipient's feed newest-first. Only
	// delivered notifications are visible; suppressed outcomes stay internal.
	// The bool reports whether more entries exist past the page.
	ListForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string, c Cursor) ([]Notification, bool, error)

	// UnreadCount counts delivered, unread notifications for the recipient.
	UnreadCount(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error)

	// UpdateState applies the change to the given notifications and returns
	// how many rows matched. Unknown IDs are skipped, not errors.
	UpdateState(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID, change StateChange) (int, error)

	// Delete removes the given notifications and returns how many existed.
	Delete(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID) (int, error)

	// DeleteForRecipient removes every notification of the recipient. Used by
	// the recipient-deletion cascade.
	DeleteForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error)

	// CountForRecipients tallies delivered direct and broadcast notifications
	// per recipient. Recipients with no rows are absent from the map.
	CountForRecipients(ctx context.Context, projectID uuid.UUID, recipientIDs []string) (map[string]recipient.Counts, error)
}

// BroadcastStorage persists broadcasts and their fan-out progress markers.
type BroadcastStorage interface {
	Create(ctx context.Context, b Broadcast) error

	Get(ctx context.Context, projectID, id uuid.UUID) (*Broadcast, error)

	// Complete stamps the broadcast once every recipient has been processed.
	Complete(ctx context.Context, projectID, id uuid.UUID, at time.Time) error

	// List pages the project's broadcasts newest-first.
	List(ctx context.Context, projectID uuid.UUID, c Cursor) ([]Broadcast, bool, error)

	// MarkProcessed records that the recipient's admission for the broadcast
	// has been handled. Returns false when a marker already exists, which is
	// how an interrupted fan-out resumes without double-sending.
	MarkProcessed(ctx context.Context, broadcastID uuid.UUID, recipientID string) (bool, error)
}

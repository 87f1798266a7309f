package delivery

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/target"
)

// MaxPayloadSize caps notification payloads at 16 KiB.
const MaxPayloadSize = 16 * 1024

// Status is the delivery state of a notification.
type Status string

const (
	// StatusEnqueued is the initial state of every accepted admission.
	StatusEnqueued Status = "enqueued"
	// StatusDelivered means the notification reached the recipient's feed.
	StatusDelivered Status = "delivered"
	// StatusMuted means preference resolution suppressed the notification.
	StatusMuted Status = "muted"
	// StatusQuotaExceeded means the sender's plan quota rejected the admission.
	StatusQuotaExceeded Status = "quota_exceeded"
	// StatusFailed means a systemic error interrupted the admission.
	StatusFailed Status = "failed"
)

// transitions is the allowed state graph. Terminal outcomes have no
// successors; completion is recorded separately via CompletedAt.
var transitions = map[Status][]Status{
	StatusEnqueued: {StatusDelivered, StatusMuted, StatusQuotaExceeded, StatusFailed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a terminal outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusMuted, StatusQuotaExceeded, StatusFailed:
		return true
	}
	return false
}

// Notification is a single admission for one recipient. Direct sends have a
// nil BroadcastID; fanned-out notifications point at their parent broadcast.
type Notification struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	RecipientID string          `json:"recipient_id"`
	BroadcastID *uuid.UUID      `json:"broadcast_id,omitempty"`
	Target      target.Target   `json:"target"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Read        bool            `json:"read"`
	ReadAt      *time.Time      `json:"read_at,omitempty"`
	Opened      bool            `json:"opened"`
	OpenedAt    *time.Time      `json:"opened_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewNotification creates an enqueued notification for one recipient.
func NewNotification(projectID uuid.UUID, recipientID string, t target.Target, payload json.RawMessage, broadcastID *uuid.UUID) Notification {
	now := time.Now().UTC()
	return Notification{
		ID:          uuid.New(),
		ProjectID:   projectID,
		RecipientID: recipientID,
		BroadcastID: broadcastID,
		Target:      t,
		Payload:     payload,
		Status:      StatusEnqueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the notification to the next status, enforcing the state
// graph.
func (n *Notification) Transition(next Status) error {
	if !n.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	n.Status = next
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete stamps CompletedAt. Only valid once a terminal outcome has been
// recorded.
func (n *Notification) Complete(at time.Time) error {
	if !n.Status.Terminal() || n.CompletedAt != nil {
		return ErrInvalidTransition
	}
	at = at.UTC()
	n.CompletedAt = &at
	n.UpdatedAt = at
	return nil
}

// Completed reports whether the admission has fully resolved.
func (n Notification) Completed() bool {
	return n.CompletedAt != nil
}

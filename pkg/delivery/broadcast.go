package delivery

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/target"
)

// BroadcastStatus describes the fan-out progress of a broadcast.
type BroadcastStatus string

const (
	BroadcastDelivering BroadcastStatus = "delivering"
	BroadcastCompleted  BroadcastStatus = "completed"
)

// Broadcast is one send addressed to every recipient of a project. Fan-out
// produces an independent Notification per recipient; the broadcast itself
// only tracks the shared payload, the target, and overall completion.
type Broadcast struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	Target      target.Target   `json:"target"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewBroadcast creates a broadcast in the delivering state.
func NewBroadcast(projectID uuid.UUID, t target.Target, payload json.RawMessage) Broadcast {
	now := time.Now().UTC()
	return Broadcast{
		ID:        uuid.New(),
		ProjectID: projectID,
		Target:    t,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status derives the broadcast state from its completion stamp.
func (b Broadcast) Status() BroadcastStatus {
	if b.CompletedAt != nil {
		return BroadcastCompleted
	}
	return BroadcastDelivering
}

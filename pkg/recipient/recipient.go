package recipient

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is a notification addressee owned by a project. The ID is a
// caller-supplied external identifier, unique within the project.
type Recipient struct {
	ID        string    `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a Recipient with creation timestamps set.
func New(projectID uuid.UUID, id, name string) Recipient {
	now := time.Now().UTC()
	return Recipient{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Counts carries the derived per-recipient notification aggregates returned
// by listings. They are recomputed on read, never stored.
type Counts struct {
	Direct    int `json:"direct_notifications_count"`
	Broadcast int `json:"broadcast_notifications_count"`
}

// ListItem is a Recipient decorated with derived counts.
type ListItem struct {
	Recipient
	Counts Counts `json:"counts"`
}

// CreateInput describes a recipient to create or upsert.
type CreateInput struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// Validate checks the input shape. The ID is the only required field.
func (in CreateInput) Validate() error {
	if in.ID == "" {
		return ErrIDRequired
	}
	return nil
}

// BatchResult is the 3-way partition returned by BatchCreate. The call never
// fails wholesale: every input lands in exactly one bucket.
type BatchResult struct {
	Created []BatchCreated `json:"created"`
	Updated []BatchUpdated `json:"updated"`
	Failed  []BatchFailed  `json:"failed"`
}

// BatchCreated reports an input that produced a new recipient.
type BatchCreated struct {
	RecipientID string `json:"recipient_id"`
}

// BatchUpdated reports an input whose recipient already existed and was
// merged.
type BatchUpdated struct {
	RecipientID string `json:"recipient_id"`
}

// BatchFailed reports an input rejected by validation. BatchIndex preserves
// the position in the original request so callers can correlate.
type BatchFailed struct {
	RecipientID string `json:"recipient_id"`
	BatchIndex  int    `json:"batch_index"`
	Err         error  `json:"error"`
}

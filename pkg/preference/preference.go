package preference

import (
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/target"
)

// ProjectRule is a project-wide default preference: the baseline enabled
// state for every recipient that has not overridden the rule's target.
type ProjectRule struct {
	ID             uuid.UUID     `json:"id"`
	ProjectID      uuid.UUID     `json:"project_id"`
	Target         target.Target `json:"target"`
	Label          string        `json:"label"`
	DefaultEnabled bool          `json:"default_enabled"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewProjectRule returns a ProjectRule with identity and timestamps set.
func NewProjectRule(projectID uuid.UUID, t target.Target, label string, defaultEnabled bool) ProjectRule {
	now := time.Now().UTC()
	return ProjectRule{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Target:         t,
		Label:          label,
		DefaultEnabled: defaultEnabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RuleInfo is a ProjectRule decorated with the derived subscriber count:
// the number of recipients that still inherit the rule. Recomputed on read,
// never stored.
type RuleInfo struct {
	ProjectRule
	Subscribers int `json:"subscribers"`
}

// Override is a per-recipient preference for one exact target. Its existence
// means the recipient explicitly diverged from the project default; absence
// means inheritance.
type Override struct {
	ID          uuid.UUID     `json:"id"`
	ProjectID   uuid.UUID     `json:"project_id"`
	RecipientID string        `json:"recipient_id"`
	Target      target.Target `json:"target"`
	Enabled     bool          `json:"enabled"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewOverride returns an Override with identity and timestamps set.
func NewOverride(projectID uuid.UUID, recipientID string, t target.Target, enabled bool) Override {
	now := time.Now().UTC()
	return Override{
		ID:          uuid.New(),
		ProjectID:   projectID,
		RecipientID: recipientID,
		Target:      t,
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Resolution is the effective preference state for a (recipient, target)
// pair. Inherited reports whether the state came from a project default (or
// the opt-out fallback) rather than an explicit override.
type Resolution struct {
	Enabled   bool `json:"enabled"`
	Inherited bool `json:"inherited"`
}

package preference

import (
	"context"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/target"
)

// Storage handles preference persistence.
type Storage interface {
	// CreateRule stores a new project rule. Returns ErrDuplicateRule when a
	// rule for the exact target already exists.
	CreateRule(ctx context.Context, rule ProjectRule) error

	// ListRules returns every project rule, newest first.
	ListRules(ctx context.Context, projectID uuid.UUID) ([]ProjectRule, error)

	// DeleteRule removes a project rule by ID.
	DeleteRule(ctx context.Context, projectID, ruleID uuid.UUID) error

	// RuleExists reports whether a rule exists for the exact target triple.
	RuleExists(ctx context.Context, projectID uuid.UUID, t target.Target) (bool, error)

	// UpsertOverride stores a recipient override keyed by
	// (project, recipient, exact target), updating enabled on conflict.
	UpsertOverride(ctx context.Context, ov Override) (*Override, error)

	// GetOverride retrieves the override for an exact target, or
	// ErrOverrideNotFound.
	GetOverride(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target) (*Override, error)

	// ListOverrides returns a recipient's overrides, newest first.
	ListOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) ([]Override, error)

	// DeleteOverrides removes all overrides for a recipient and reports how
	// many rows went away. Used by the registry's delete cascade.
	DeleteOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error)

	// CountOverridesForTarget counts recipients holding an override for the
	// exact target. Feeds the derived subscriber count.
	CountOverridesForTarget(ctx context.Context, projectID uuid.UUID, t target.Target) (int, error)
}

package preference

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/logger"
	"github.com/herald-labs/herald/pkg/target"
)

// RecipientExistsFunc reports whether a recipient exists in a project. The
// resolver uses it to reject resolution for unknown recipients without
// depending on the registry package directly.
type RecipientExistsFunc func(ctx context.Context, projectID uuid.UUID, recipientID string) (bool, error)

// RecipientTotalFunc returns the number of recipients in a project. Feeds
// the derived subscriber counts on rule listings.
type RecipientTotalFunc func(ctx context.Context, projectID uuid.UUID) (int, error)

// Resolver reconciles project defaults against recipient overrides.
type Resolver struct {
	storage Storage
	exists  RecipientExistsFunc
	totals  RecipientTotalFunc
	logger  *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRecipientExists sets the recipient existence check.
func WithRecipientExists(fn RecipientExistsFunc) ResolverOption {
	return func(r *Resolver) {
		r.exists = fn
	}
}

// WithRecipientTotals sets the project recipient counter used for derived
// subscriber counts.
func WithRecipientTotals(fn RecipientTotalFunc) ResolverOption {
	return func(r *Resolver) {
		r.totals = fn
	}
}

// WithLogger sets the logger for the Resolver.
func WithLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = log
	}
}

// NewResolver creates a preference resolver backed by the given storage.
func NewResolver(storage Storage, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		storage: storage,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// normalize maps an absent topic to the explicit "none" token so exact
// lookups hit the stored form. Channel and event pass through untouched.
func normalize(t target.Target) target.Target {
	if t.Topic == "" {
		t.Topic = target.TopicNone
	}
	return t
}

// Resolve returns the effective preference for a (recipient, target) pair.
//
// Lookup order: the recipient's override for the exact target, the
// recipient's "any"-topic fallback override, then the most specific matching
// project rule. With no match at all the result is enabled and inherited —
// the opt-out default.
func (r *Resolver) Resolve(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target) (Resolution, error) {
	if recipientID == "" {
		return Resolution{}, ErrRecipientRequired
	}

	if r.exists != nil {
		ok, err := r.exists(ctx, projectID, recipientID)
		if err != nil {
			return Resolution{}, errors.Join(ErrStorageFailure, err)
		}
		if !ok {
			return Resolution{}, ErrRecipientNotFound
		}
	}

	norm := normalize(t)

	ov, err := r.storage.GetOverride(ctx, projectID, recipientID, norm)
	if err == nil {
		return Resolution{Enabled: ov.Enabled, Inherited: false}, nil
	}
	if !errors.Is(err, ErrOverrideNotFound) {
		return Resolution{}, errors.Join(ErrStorageFailure, err)
	}

	if norm.Topic != target.TopicAny {
		fallback := target.Target{Channel: norm.Channel, Topic: target.TopicAny, Event: norm.Event}
		ov, err = r.storage.GetOverride(ctx, projectID, recipientID, fallback)
		if err == nil {
			return Resolution{Enabled: ov.Enabled, Inherited: false}, nil
		}
		if !errors.Is(err, ErrOverrideNotFound) {
			return Resolution{}, errors.Join(ErrStorageFailure, err)
		}
	}

	rules, err := r.storage.ListRules(ctx, projectID)
	if err != nil {
		return Resolution{}, errors.Join(ErrStorageFailure, err)
	}

	if best := mostSpecific(rules, norm); best != nil {
		return Resolution{Enabled: best.DefaultEnabled, Inherited: true}, nil
	}

	return Resolution{Enabled: true, Inherited: true}, nil
}

// Check is Resolve exposed as a read-only query.
func (r *Resolver) Check(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target) (Resolution, error) {
	return r.Resolve(ctx, projectID, recipientID, t)
}

// Set upserts a recipient override for the exact target and returns the
// post-write resolution, which by construction is not inherited.
func (r *Resolver) Set(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target, enabled bool) (Resolution, error) {
	if recipientID == "" {
		return Resolution{}, ErrRecipientRequired
	}

	norm := normalize(t)
	if err := target.ValidateRule(norm); err != nil {
		return Resolution{}, err
	}

	if r.exists != nil {
		ok, err := r.exists(ctx, projectID, recipientID)
		if err != nil {
			return Resolution{}, errors.Join(ErrStorageFailure, err)
		}
		if !ok {
			return Resolution{}, ErrRecipientNotFound
		}
	}

	ov, err := r.storage.UpsertOverride(ctx, NewOverride(projectID, recipientID, norm, enabled))
	if err != nil {
		return Resolution{}, errors.Join(ErrStorageFailure, err)
	}

	return Resolution{Enabled: ov.Enabled, Inherited: false}, nil
}

// CreateRule registers a project-wide default preference.
func (r *Resolver) CreateRule(ctx context.Context, projectID uuid.UUID, t target.Target, label string, defaultEnabled bool) (*ProjectRule, error) {
	if err := target.ValidateRule(t); err != nil {
		return nil, err
	}
	if label == "" {
		return nil, ErrLabelRequired
	}

	rule := NewProjectRule(projectID, t, label, defaultEnabled)
	if err := r.storage.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	return &rule, nil
}

// ListRules returns the project's rules decorated with derived subscriber
// counts: recipients that still inherit the rule, i.e. total recipients
// minus those holding an override for the rule's exact target.
func (r *Resolver) ListRules(ctx context.Context, projectID uuid.UUID) ([]RuleInfo, error) {
	rules, err := r.storage.ListRules(ctx, projectID)
	if err != nil {
		return nil, errors.Join(ErrStorageFailure, err)
	}

	total := 0
	if r.totals != nil {
		total, err = r.totals(ctx, projectID)
		if err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to count project recipients",
				logger.ProjectID(projectID),
				logger.Error(err),
			)
			total = 0
		}
	}

	infos := make([]RuleInfo, len(rules))
	for i, rule := range rules {
		overridden, err := r.storage.CountOverridesForTarget(ctx, projectID, rule.Target)
		if err != nil {
			return nil, errors.Join(ErrStorageFailure, err)
		}

		subscribers := total - overridden
		if subscribers < 0 {
			subscribers = 0
		}

		infos[i] = RuleInfo{ProjectRule: rule, Subscribers: subscribers}
	}

	return infos, nil
}

// DeleteRule removes a project rule.
func (r *Resolver) DeleteRule(ctx context.Context, projectID, ruleID uuid.UUID) error {
	return r.storage.DeleteRule(ctx, projectID, ruleID)
}

// RuleExistsFor reports whether a project rule exists for the exact target.
// The broadcast engine gates fan-out on it: a broadcast without a matching
// rule could never reach anyone deliberately.
func (r *Resolver) RuleExistsFor(ctx context.Context, projectID uuid.UUID, t target.Target) (bool, error) {
	return r.storage.RuleExists(ctx, projectID, normalize(t))
}

// ListOverrides returns a recipient's explicit overrides.
func (r *Resolver) ListOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) ([]Override, error) {
	if recipientID == "" {
		return nil, ErrRecipientRequired
	}
	return r.storage.ListOverrides(ctx, projectID, recipientID)
}

// DeleteRecipientOverrides removes every override owned by a recipient. It
// matches the registry's cascade hook signature.
func (r *Resolver) DeleteRecipientOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) error {
	_, err := r.storage.DeleteOverrides(ctx, projectID, recipientID)
	return err
}

// mostSpecific picks the winning rule among those matching the candidate:
// highest specificity first, most recently created among ties.
func mostSpecific(rules []ProjectRule, candidate target.Target) *ProjectRule {
	var best *ProjectRule
	bestRank := -1

	for i := range rules {
		rule := &rules[i]
		if !target.Matches(candidate, rule.Target) {
			continue
		}

		rank := target.Specificity(rule.Target)
		switch {
		case rank > bestRank:
			best, bestRank = rule, rank
		case rank == bestRank && rule.CreatedAt.After(best.CreatedAt):
			best = rule
		}
	}

	return best
}

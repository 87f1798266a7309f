package preference

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/target"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	rules     map[uuid.UUID][]ProjectRule        // projectID -> rules
	overrides map[uuid.UUID]map[string][]Override // projectID -> recipientID -> overrides
	mu        sync.RWMutex
}

// NewMemoryStorage creates a new in-memory preference storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		rules:     make(map[uuid.UUID][]ProjectRule),
		overrides: make(map[uuid.UUID]map[string][]Override),
	}
}

func (s *MemoryStorage) CreateRule(ctx context.Context, rule ProjectRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules[rule.ProjectID] {
		if existing.Target == rule.Target {
			return ErrDuplicateRule
		}
	}

	s.rules[rule.ProjectID] = append(s.rules[rule.ProjectID], rule)
	return nil
}

func (s *MemoryStorage) ListRules(ctx context.Context, projectID uuid.UUID) ([]ProjectRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProjectRule, len(s.rules[projectID]))
	copy(out, s.rules[projectID])

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *MemoryStorage) DeleteRule(ctx context.Context, projectID, ruleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := s.rules[projectID]
	for i, rule := range rules {
		if rule.ID == ruleID {
			s.rules[projectID] = append(rules[:i], rules[i+1:]...)
			return nil
		}
	}

	return ErrRuleNotFound
}

func (s *MemoryStorage) RuleExists(ctx context.Context, projectID uuid.UUID, t target.Target) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules[projectID] {
		if rule.Target == t {
			return true, nil
		}
	}

	return false, nil
}

func (s *MemoryStorage) UpsertOverride(ctx context.Context, ov Override) (*Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.overrides[ov.ProjectID]
	if !ok {
		project = make(map[string][]Override)
		s.overrides[ov.ProjectID] = project
	}

	for i, existing := range project[ov.RecipientID] {
		if existing.Target == ov.Target {
			existing.Enabled = ov.Enabled
			existing.UpdatedAt = time.Now().UTC()
			project[ov.RecipientID][i] = existing

			out := existing
			return &out, nil
		}
	}

	project[ov.RecipientID] = append(project[ov.RecipientID], ov)

	out := ov
	return &out, nil
}

func (s *MemoryStorage) GetOverride(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target) (*Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ov := range s.overrides[projectID][recipientID] {
		if ov.Target == t {
			out := ov
			return &out, nil
		}
	}

	return nil, ErrOverrideNotFound
}

func (s *MemoryStorage) ListOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) ([]Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.overrides[projectID][recipientID]
	out := make([]Override, len(src))
	copy(out, src)

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *MemoryStorage) DeleteOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.overrides[projectID][recipientID])
	delete(s.overrides[projectID], recipientID)
	return n, nil
}

func (s *MemoryStorage) CountOverridesForTarget(ctx context.Context, projectID uuid.UUID, t target.Target) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ovs := range s.overrides[projectID] {
		for _, ov := range ovs {
			if ov.Target == t {
				count++
				break
			}
		}
	}

	return count, nil
}

package recipient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	recipients map[uuid.UUID]map[string]Recipient // projectID -> id -> recipient
	mu         sync.RWMutex
}

// NewMemoryStorage creates a new in-memory recipient storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		recipients: make(map[uuid.UUID]map[string]Recipient),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, rec Recipient) error {
	if rec.ID == "" {
		return ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.recipients[rec.ProjectID]
	if !ok {
		project = make(map[string]Recipient)
		s.recipients[rec.ProjectID] = project
	}

	if _, exists := project[rec.ID]; exists {
		return ErrAlreadyExists
	}

	project[rec.ID] = rec
	return nil
}

func (s *MemoryStorage) Upsert(ctx context.Context, rec Recipient) (bool, error) {
	if rec.ID == "" {
		return false, ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.recipients[rec.ProjectID]
	if !ok {
		project = make(map[string]Recipient)
		s.recipients[rec.ProjectID] = project
	}

	existing, exists := project[rec.ID]
	if !exists {
		project[rec.ID] = rec
		return true, nil
	}

	if rec.Name != "" {
		existing.Name = rec.Name
	}
	existing.UpdatedAt = time.Now().UTC()
	project[rec.ID] = existing
	return false, nil
}

func (s *MemoryStorage) Get(ctx context.Context, projectID uuid.UUID, id string) (*Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recipients[projectID][id]
	if !ok {
		return nil, ErrNotFound
	}

	// Copy prevents external mutation of stored data.
	out := rec
	return &out, nil
}

func (s *MemoryStorage) UpdateName(ctx context.Context, projectID uuid.UUID, id, name string) (*Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recipients[projectID][id]
	if !ok {
		return nil, ErrNotFound
	}

	rec.Name = name
	rec.UpdatedAt = time.Now().UTC()
	s.recipients[projectID][id] = rec

	out := rec
	return &out, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, projectID uuid.UUID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipients[projectID][id]; !ok {
		return ErrNotFound
	}

	delete(s.recipients[projectID], id)
	return nil
}

func (s *MemoryStorage) List(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]Recipient, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Recipient, 0, len(s.recipients[projectID]))
	for _, rec := range s.recipients[projectID] {
		all = append(all, rec)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	offset, limit := opts.normalize()
	if offset >= total {
		return []Recipient{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return all[offset:end], total, nil
}

func (s *MemoryStorage) ListIDs(ctx context.Context, projectID uuid.UUID, afterID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.recipients[projectID]))
	for id := range s.recipients[projectID] {
		if id > afterID {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

func (s *MemoryStorage) TotalCount(ctx context.Context, projectID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recipients[projectID]), nil
}

package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroadcastStorage is an in-memory BroadcastStorage implementation.
type MemoryBroadcastStorage struct {
	byProject map[uuid.UUID]map[uuid.UUID]Broadcast
	order     map[uuid.UUID][]uuid.UUID
	processed map[uuid.UUID]map[string]struct{}
	mu        sync.RWMutex
}

// NewMemoryBroadcastStorage creates a new in-memory broadcast store.
func NewMemoryBroadcastStorage() *MemoryBroadcastStorage {
	return &MemoryBroadcastStorage{
		byProject: make(map[uuid.UUID]map[uuid.UUID]Broadcast),
		order:     make(map[uuid.UUID][]uuid.UUID),
		processed: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (s *MemoryBroadcastStorage) Create(ctx context.Context, b Broadcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byProject[b.ProjectID] == nil {
		s.byProject[b.ProjectID] = make(map[uuid.UUID]Broadcast)
	}
	s.byProject[b.ProjectID][b.ID] = b
	s.order[b.ProjectID] = append(s.order[b.ProjectID], b.ID)
	return nil
}

func (s *MemoryBroadcastStorage) Get(ctx context.Context, projectID, id uuid.UUID) (*Broadcast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byProject[projectID][id]
	if !ok {
		return nil, ErrBroadcastMissing
	}
	return &b, nil
}

func (s *MemoryBroadcastStorage) Complete(ctx context.Context, projectID, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byProject[projectID][id]
	if !ok {
		return ErrBroadcastMissing
	}
	at = at.UTC()
	b.CompletedAt = &at
	b.UpdatedAt = at
	s.byProject[projectID][id] = b
	return nil
}

func (s *MemoryBroadcastStorage) List(ctx context.Context, projectID uuid.UUID, c Cursor) ([]Broadcast, bool, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[projectID]
	broadcasts := make([]Broadcast, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if b, ok := s.byProject[projectID][ids[i]]; ok {
			broadcasts = append(broadcasts, b)
		}
	}
	return pageByCursor(broadcasts, c, func(b Broadcast) uuid.UUID { return b.ID })
}

func (s *MemoryBroadcastStorage) MarkProcessed(ctx context.Context, broadcastID uuid.UUID, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processed[broadcastID] == nil {
		s.processed[broadcastID] = make(map[string]struct{})
	}
	if _, seen := s.processed[broadcastID][recipientID]; seen {
		return false, nil
	}
	s.processed[broadcastID][recipientID] = struct{}{}
	return true, nil
}

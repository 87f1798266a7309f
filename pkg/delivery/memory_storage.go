package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/recipient"
)

type feedKey struct {
	project   uuid.UUID
	recipient string
}

// MemoryStorage is an in-memory Storage implementation. Suitable for
// development, testing, and single-process deployments.
type MemoryStorage struct {
	byID  map[uuid.UUID]map[uuid.UUID]Notification
	order map[feedKey][]uuid.UUID
	mu    sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:  make(map[uuid.UUID]map[uuid.UUID]Notification),
		order: make(map[feedKey][]uuid.UUID),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byID[n.ProjectID] == nil {
		s.byID[n.ProjectID] = make(map[uuid.UUID]Notification)
	}
	s.byID[n.ProjectID][n.ID] = n

	key := feedKey{project: n.ProjectID, recipient: n.RecipientID}
	s.order[key] = append(s.order[key], n.ID)
	return nil
}

func (s *MemoryStorage) Finalize(ctx context.Context, projectID, id uuid.UUID, outcome Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[projectID][id]
	if !ok {
		return ErrNotificationMissing
	}
	if err := n.Transition(outcome); err != nil {
		return err
	}
	if err := n.Complete(at); err != nil {
		return err
	}
	s.byID[projectID][id] = n
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, projectID uuid.UUID, recipientID string, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[projectID][id]
	if !ok || n.RecipientID != recipientID {
		return nil, ErrNotificationMissing
	}
	return &n, nil
}

// visibleFeed returns the recipient's delivered notifications newest-first.
// Callers must hold at least a read lock.
func (s *MemoryStorage) visibleFeed(projectID uuid.UUID, recipientID string) []Notification {
	ids := s.order[feedKey{project: projectID, recipient: recipientID}]
	feed := make([]Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		n, ok := s.byID[projectID][ids[i]]
		if ok && n.Status == StatusDelivered {
			feed = append(feed, n)
		}
	}
	return feed
}

func (s *MemoryStorage) ListForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string, c Cursor) ([]Notification, bool, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	feed := s.visibleFeed(projectID, recipientID)
	return pageByCursor(feed, c, func(n Notification) uuid.UUID { return n.ID })
}

func (s *MemoryStorage) UnreadCount(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.visibleFeed(projectID, recipientID) {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) UpdateState(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID, change StateChange) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	updated := 0
	for _, id := range ids {
		n, ok := s.byID[projectID][id]
		if !ok || n.RecipientID != recipientID {
			continue
		}
		if change.Read != nil {
			n.Read = *change.Read
			if *change.Read {
				at := now
				n.ReadAt = &at
			} else {
				n.ReadAt = nil
			}
		}
		if change.Opened != nil {
			n.Opened = *change.Opened
			if *change.Opened {
				at := now
				n.OpenedAt = &at
			} else {
				n.OpenedAt = nil
			}
		}
		n.UpdatedAt = now
		s.byID[projectID][id] = n
		updated++
	}
	return updated, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		n, ok := s.byID[projectID][id]
		if !ok || n.RecipientID != recipientID {
			continue
		}
		delete(s.byID[projectID], id)
		deleted++
	}
	s.compactOrder(projectID, recipientID)
	return deleted, nil
}

func (s *MemoryStorage) DeleteForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := feedKey{project: projectID, recipient: recipientID}
	deleted := 0
	for _, id := range s.order[key] {
		if _, ok := s.byID[projectID][id]; ok {
			delete(s.byID[projectID], id)
			deleted++
		}
	}
	delete(s.order, key)
	return deleted, nil
}

func (s *MemoryStorage) CountForRecipients(ctx context.Context, projectID uuid.UUID, recipientIDs []string) (map[string]recipient.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]recipient.Counts)
	for _, rid := range recipientIDs {
		var c recipient.Counts
		for _, n := range s.visibleFeed(projectID, rid) {
			if n.BroadcastID != nil {
				c.Broadcast++
			} else {
				c.Direct++
			}
		}
		if c.Direct > 0 || c.Broadcast > 0 {
			counts[rid] = c
		}
	}
	return counts, nil
}

// compactOrder drops dangling IDs after deletions. Callers must hold the
// write lock.
func (s *MemoryStorage) compactOrder(projectID uuid.UUID, recipientID string) {
	key := feedKey{project: projectID, recipient: recipientID}
	kept := s.order[key][:0]
	for _, id := range s.order[key] {
		if _, ok := s.byID[projectID][id]; ok {
			kept = append(kept, id)
		}
	}
	s.order[key] = kept
}

// pageByCursor slices a newest-first listing by the cursor. The cursor entry
// itself is excluded from the page.
func pageByCursor[T any](items []T, c Cursor, id func(T) uuid.UUID) ([]T, bool, error) {
	locate := func(want uuid.UUID) (int, bool) {
		for i, item := range items {
			if id(item) == want {
				return i, true
			}
		}
		return 0, false
	}

	var window []T
	var hasMore bool

	switch {
	case c.Before != nil:
		i, ok := locate(*c.Before)
		if !ok {
			return nil, false, ErrInvalidCursor
		}
		window = items[i+1:]
		hasMore = len(window) > c.Limit
		if hasMore {
			window = window[:c.Limit]
		}
	case c.After != nil:
		i, ok := locate(*c.After)
		if !ok {
			return nil, false, ErrInvalidCursor
		}
		window = items[:i]
		hasMore = len(window) > c.Limit
		if hasMore {
			window = window[len(window)-c.Limit:]
		}
	default:
		window = items
		hasMore = len(window) > c.Limit
		if hasMore {
			window = window[:c.Limit]
		}
	}

	page := make([]T, len(window))
	copy(page, window)
	return page, hasMore, nil
}

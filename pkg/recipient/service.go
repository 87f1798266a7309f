package recipient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/herald-labs/herald/pkg/logger"
)

// MaxBatchSize caps a single BatchCreate request.
const MaxBatchSize = 1000

// CascadeFunc removes records owned by a recipient. Hooks run inside the
// per-recipient critical section so a concurrent override write cannot slip
// between the delete and its cascades.
type CascadeFunc func(ctx context.Context, projectID uuid.UUID, recipientID string) error

// CountsFunc supplies derived notification counts for a page of recipients.
type CountsFunc func(ctx context.Context, projectID uuid.UUID, recipientIDs []string) (map[string]Counts, error)

// Service is the recipient registry.
type Service struct {
	storage  Storage
	cascades []CascadeFunc
	counts   CountsFunc
	logger   *slog.Logger

	// keyed mutexes serialize writes per (project, recipient)
	keys sync.Map // string -> *sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = log
	}
}

// WithCascade registers a cascade hook executed on recipient deletion.
func WithCascade(fns ...CascadeFunc) ServiceOption {
	return func(s *Service) {
		for _, fn := range fns {
			if fn != nil {
				s.cascades = append(s.cascades, fn)
			}
		}
	}
}

// WithCounts registers the derived-counts aggregator used by List.
func WithCounts(fn CountsFunc) ServiceOption {
	return func(s *Service) {
		s.counts = fn
	}
}

// NewService creates a recipient registry backed by the given storage.
func NewService(storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		storage: storage,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) lock(projectID uuid.UUID, id string) func() {
	key := projectID.String() + "/" + id
	muAny, _ := s.keys.LoadOrStore(key, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create registers a new recipient. Fails with ErrAlreadyExists when the ID
// is taken; callers that want create-or-update semantics use CreateIfNotExists
// or BatchCreate.
func (s *Service) Create(ctx context.Context, projectID uuid.UUID, in CreateInput) (*Recipient, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	name := ""
	if in.Name != nil {
		name = *in.Name
	}

	rec := New(projectID, in.ID, name)

	unlock := s.lock(projectID, in.ID)
	defer unlock()

	if err := s.storage.Create(ctx, rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// CreateIfNotExists registers the recipient when missing and returns the
// stored row either way. Direct sends use it so a notification can address a
// recipient that was never explicitly created.
func (s *Service) CreateIfNotExists(ctx context.Context, projectID uuid.UUID, in CreateInput) (*Recipient, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	name := ""
	if in.Name != nil {
		name = *in.Name
	}

	unlock := s.lock(projectID, in.ID)
	defer unlock()

	rec := New(projectID, in.ID, name)
	if err := s.storage.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.storage.Get(ctx, projectID, in.ID)
		}
		return nil, fmt.Errorf("create recipient: %w", err)
	}

	return &rec, nil
}

// Get retrieves a recipient by external ID.
func (s *Service) Get(ctx context.Context, projectID uuid.UUID, id string) (*Recipient, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return s.storage.Get(ctx, projectID, id)
}

// Update changes a recipient's display name.
func (s *Service) Update(ctx context.Context, projectID uuid.UUID, id, name string) (*Recipient, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	unlock := s.lock(projectID, id)
	defer unlock()

	return s.storage.UpdateName(ctx, projectID, id, name)
}

// Delete removes a recipient and runs every registered cascade hook. The
// whole operation holds the per-recipient lock so no preference or
// notification write can interleave with the cascade.
func (s *Service) Delete(ctx context.Context, projectID uuid.UUID, id string) error {
	if id == "" {
		return ErrIDRequired
	}

	unlock := s.lock(projectID, id)
	defer unlock()

	if err := s.storage.Delete(ctx, projectID, id); err != nil {
		return err
	}

	for _, cascade := range s.cascades {
		if err := cascade(ctx, projectID, id); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "Recipient cascade failed",
				logger.ProjectID(projectID),
				logger.RecipientID(id),
				logger.Error(err),
			)
			return errors.Join(ErrCascadeFailed, err)
		}
	}

	return nil
}

// List returns a page of recipients with derived notification counts.
func (s *Service) List(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]ListItem, int, error) {
	recs, total, err := s.storage.List(ctx, projectID, opts)
	if err != nil {
		return nil, 0, errors.Join(ErrStorageFailure, err)
	}

	items := make([]ListItem, len(recs))
	for i, rec := range recs {
		items[i] = ListItem{Recipient: rec}
	}

	if s.counts != nil && len(recs) > 0 {
		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID
		}

		counts, err := s.counts(ctx, projectID, ids)
		if err != nil {
			// Derived counts are decoration; the listing still stands.
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to aggregate recipient counts",
				logger.ProjectID(projectID),
				logger.Error(err),
			)
		} else {
			for i := range items {
				items[i].Counts = counts[items[i].ID]
			}
		}
	}

	return items, total, nil
}

// TotalCount returns the number of recipients in a project.
func (s *Service) TotalCount(ctx context.Context, projectID uuid.UUID) (int, error) {
	return s.storage.TotalCount(ctx, projectID)
}

// ListIDs pages external recipient IDs in stable ascending order, starting
// strictly after afterID. Broadcast fan-out walks the whole project with it.
func (s *Service) ListIDs(ctx context.Context, projectID uuid.UUID, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.storage.ListIDs(ctx, projectID, afterID, limit)
}

// BatchCreate upserts up to MaxBatchSize recipients with per-item outcomes.
// Invalid items land in Failed with their original index; the rest are
// partitioned into Created and Updated. The call only errors on an empty or
// oversized batch, or a storage failure.
func (s *Service) BatchCreate(ctx context.Context, projectID uuid.UUID, inputs []CreateInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(inputs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	result := &BatchResult{
		Created: []BatchCreated{},
		Updated: []BatchUpdated{},
		Failed:  []BatchFailed{},
	}

	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			result.Failed = append(result.Failed, BatchFailed{
				RecipientID: in.ID,
				BatchIndex:  i,
				Err:         err,
			})
			continue
		}

		name := ""
		if in.Name != nil {
			name = *in.Name
		}

		created, err := s.storage.Upsert(ctx, New(projectID, in.ID, name))
		if err != nil {
			return nil, errors.Join(ErrStorageFailure, err)
		}

		if created {
			result.Created = append(result.Created, BatchCreated{RecipientID: in.ID})
		} else {
			result.Updated = append(result.Updated, BatchUpdated{RecipientID: in.ID})
		}
	}

	return result, nil
}

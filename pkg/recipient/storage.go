package recipient

import (
	"context"

	"github.com/google/uuid"
)

// Storage handles recipient persistence.
type Storage interface {
	// Create stores a new recipient. Returns ErrAlreadyExists when the
	// (project, id) pair is taken.
	Create(ctx context.Context, rec Recipient) error

	// Upsert stores a recipient, merging name onto an existing row.
	// Reports whether a new row was created.
	Upsert(ctx context.Context, rec Recipient) (created bool, err error)

	// Get retrieves a recipient by external ID.
	Get(ctx context.Context, projectID uuid.UUID, id string) (*Recipient, error)

	// UpdateName updates the display name.
	UpdateName(ctx context.Context, projectID uuid.UUID, id, name string) (*Recipient, error)

	// Delete removes a recipient. Dependent records are removed by the
	// service's cascade hooks, not here.
	Delete(ctx context.Context, projectID uuid.UUID, id string) error

	// List returns a page of recipients ordered by creation time descending.
	List(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]Recipient, int, error)

	// ListIDs returns external IDs in stable ascending order, starting
	// strictly after afterID. The fan-out engine pages with it.
	ListIDs(ctx context.Context, projectID uuid.UUID, afterID string, limit int) ([]string, error)

	// TotalCount returns the number of recipients in a project.
	TotalCount(ctx context.Context, projectID uuid.UUID) (int, error)
}

// ListOptions provides offset pagination for registry listings.
type ListOptions struct {
	Page  int // 1-based page number (0 = first page)
	Limit int // page size (0 = default of 20)
}

func (o ListOptions) normalize() (offset, limit int) {
	limit = o.Limit
	if limit <= 0 {
		limit = 20
	}
	page := o.Page
	if page <= 0 {
		page = 1
	}
	return (page - 1) * limit, limit
}

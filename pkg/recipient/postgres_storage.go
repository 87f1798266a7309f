package recipient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herald-labs/herald/pkg/pg"
)

// PostgresStorage is the production Storage implementation on pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a recipient store on the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Create(ctx context.Context, rec Recipient) error {
	query := `
		INSERT INTO recipients (project_id, id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query, rec.ProjectID, rec.ID, rec.Name, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PostgresStorage) Upsert(ctx context.Context, rec Recipient) (bool, error) {
	// xmax = 0 distinguishes a fresh insert from a conflict update.
	query := `
		INSERT INTO recipients (project_id, id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, id) DO UPDATE
		SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`
	var inserted bool
	err := s.pool.QueryRow(ctx, query, rec.ProjectID, rec.ID, rec.Name, rec.CreatedAt, rec.UpdatedAt).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *PostgresStorage) Get(ctx context.Context, projectID uuid.UUID, id string) (*Recipient, error) {
	query := `
		SELECT project_id, id, name, created_at, updated_at
		FROM recipients
		WHERE project_id = $1 AND id = $2
	`
	var rec Recipient
	err := s.pool.QueryRow(ctx, query, projectID, id).
		Scan(&rec.ProjectID, &rec.ID, &rec.Name, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStorage) UpdateName(ctx context.Context, projectID uuid.UUID, id, name string) (*Recipient, error) {
	query := `
		UPDATE recipients
		SET name = $3, updated_at = now()
		WHERE project_id = $1 AND id = $2
		RETURNING project_id, id, name, created_at, updated_at
	`
	var rec Recipient
	err := s.pool.QueryRow(ctx, query, projectID, id, name).
		Scan(&rec.ProjectID, &rec.ID, &rec.Name, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, projectID uuid.UUID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recipients WHERE project_id = $1 AND id = $2`, projectID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) List(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]Recipient, int, error) {
	offset, limit := opts.normalize()

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM recipients WHERE project_id = $1`, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT project_id, id, name, created_at, updated_at
		FROM recipients
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.ProjectID, &rec.ID, &rec.Name, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}

func (s *PostgresStorage) ListIDs(ctx context.Context, projectID uuid.UUID, afterID string, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM recipients
		WHERE project_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, projectID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStorage) TotalCount(ctx context.Context, projectID uuid.UUID) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM recipients WHERE project_id = $1`, projectID).Scan(&total)
	return total, err
}

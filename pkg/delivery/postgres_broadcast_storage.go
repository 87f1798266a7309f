package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herald-labs/herald/pkg/pg"
)

// PostgresBroadcastStorage is the production BroadcastStorage on pgx.
type PostgresBroadcastStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresBroadcastStorage creates a broadcast store on the given pool.
func NewPostgresBroadcastStorage(pool *pgxpool.Pool) *PostgresBroadcastStorage {
	return &PostgresBroadcastStorage{pool: pool}
}

func (s *PostgresBroadcastStorage) Create(ctx context.Context, b Broadcast) error {
	query := `
		INSERT INTO broadcasts
			(id, project_id, channel, topic, event, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		b.ID, b.ProjectID,
		b.Target.Channel, b.Target.Topic, b.Target.Event,
		b.Payload, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *PostgresBroadcastStorage) Get(ctx context.Context, projectID, id uuid.UUID) (*Broadcast, error) {
	query := `
		SELECT id, project_id, channel, topic, event, payload, created_at, updated_at, completed_at
		FROM broadcasts
		WHERE project_id = $1 AND id = $2
	`
	var b Broadcast
	err := s.pool.QueryRow(ctx, query, projectID, id).Scan(
		&b.ID, &b.ProjectID,
		&b.Target.Channel, &b.Target.Topic, &b.Target.Event,
		&b.Payload, &b.CreatedAt, &b.UpdatedAt, &b.CompletedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrBroadcastMissing
		}
		return nil, err
	}
	return &b, nil
}

func (s *PostgresBroadcastStorage) Complete(ctx context.Context, projectID, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE broadcasts SET completed_at = $3, updated_at = $3 WHERE project_id = $1 AND id = $2`,
		projectID, id, at.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBroadcastMissing
	}
	return nil
}

func (s *PostgresBroadcastStorage) List(ctx context.Context, projectID uuid.UUID, c Cursor) ([]Broadcast, bool, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, false, err
	}

	base := `
		SELECT id, project_id, channel, topic, event, payload, created_at, updated_at, completed_at
		FROM broadcasts
		WHERE project_id = $1
	`
	args := []any{projectID}
	ascending := false

	cursorAt := func(id uuid.UUID) (time.Time, error) {
		var at time.Time
		err := s.pool.QueryRow(ctx,
			`SELECT created_at FROM broadcasts WHERE project_id = $1 AND id = $2`,
			projectID, id,
		).Scan(&at)
		if pg.IsNotFoundError(err) {
			return time.Time{}, ErrInvalidCursor
		}
		return at, err
	}

	switch {
	case c.Before != nil:
		at, err := cursorAt(*c.Before)
		if err != nil {
			return nil, false, err
		}
		base += ` AND (created_at, id) < ($2, $3) ORDER BY created_at DESC, id DESC LIMIT $4`
		args = append(args, at, *c.Before, c.Limit+1)
	case c.After != nil:
		at, err := cursorAt(*c.After)
		if err != nil {
			return nil, false, err
		}
		base += ` AND (created_at, id) > ($2, $3) ORDER BY created_at ASC, id ASC LIMIT $4`
		args = append(args, at, *c.After, c.Limit+1)
		ascending = true
	default:
		base += ` ORDER BY created_at DESC, id DESC LIMIT $2`
		args = append(args, c.Limit+1)
	}

	rows, err := s.pool.Query(ctx, base, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var page []Broadcast
	for rows.Next() {
		var b Broadcast
		if err := rows.Scan(
			&b.ID, &b.ProjectID,
			&b.Target.Channel, &b.Target.Topic, &b.Target.Event,
			&b.Payload, &b.CreatedAt, &b.UpdatedAt, &b.CompletedAt,
		); err != nil {
			return nil, false, err
		}
		page = append(page, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(page) > c.Limit
	if hasMore {
		page = page[:c.Limit]
	}
	if ascending {
		for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
			page[i], page[j] = page[j], page[i]
		}
	}

	return page, hasMore, nil
}

func (s *PostgresBroadcastStorage) MarkProcessed(ctx context.Context, broadcastID uuid.UUID, recipientID string) (bool, error) {
	// ON CONFLICT DO NOTHING makes the marker race-safe across workers; zero
	// rows affected means somebody else got there first.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO broadcast_deliveries (broadcast_id, recipient_id)
		VALUES ($1, $2)
		ON CONFLICT (broadcast_id, recipient_id) DO NOTHING`,
		broadcastID, recipientID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

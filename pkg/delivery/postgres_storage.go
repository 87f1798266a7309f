package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herald-labs/herald/pkg/pg"
	"github.com/herald-labs/herald/pkg/recipient"
)

// PostgresStorage is the production notification Storage on pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a notification store on the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const notificationColumns = `
	id, project_id, recipient_id, broadcast_id,
	channel, topic, event, payload, status,
	read, read_at, opened, opened_at,
	created_at, updated_at, completed_at
`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.ProjectID, &n.RecipientID, &n.BroadcastID,
		&n.Target.Channel, &n.Target.Topic, &n.Target.Event, &n.Payload, &n.Status,
		&n.Read, &n.ReadAt, &n.Opened, &n.OpenedAt,
		&n.CreatedAt, &n.UpdatedAt, &n.CompletedAt,
	)
	return n, err
}

func (s *PostgresStorage) Create(ctx context.Context, n Notification) error {
	query := `
		INSERT INTO notifications
			(id, project_id, recipient_id, broadcast_id,
			channel, topic, event, payload, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		n.ID, n.ProjectID, n.RecipientID, n.BroadcastID,
		n.Target.Channel, n.Target.Topic, n.Target.Event, n.Payload, n.Status,
		n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (s *PostgresStorage) Finalize(ctx context.Context, projectID, id uuid.UUID, outcome Status, at time.Time) error {
	// The status guard makes the finalize idempotent against replays and
	// rejects out-of-order transitions at the row level.
	query := `
		UPDATE notifications
		SET status = $3, completed_at = $4, updated_at = $4
		WHERE project_id = $1 AND id = $2 AND status = $5
	`
	tag, err := s.pool.Exec(ctx, query, projectID, id, outcome, at.UTC(), StatusEnqueued)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, projectID uuid.UUID, recipientID string, id uuid.UUID) (*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE project_id = $1 AND recipient_id = $2 AND id = $3
	`
	n, err := scanNotification(s.pool.QueryRow(ctx, query, projectID, recipientID, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotificationMissing
		}
		return nil, err
	}
	return &n, nil
}

// cursorPosition loads the (created_at, id) sort key of the cursor row.
func (s *PostgresStorage) cursorPosition(ctx context.Context, projectID uuid.UUID, recipientID string, id uuid.UUID) (time.Time, error) {
	var createdAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT created_at FROM notifications
		WHERE project_id = $1 AND recipient_id = $2 AND id = $3 AND status = 'delivered'`,
		projectID, recipientID, id,
	).Scan(&createdAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return time.Time{}, ErrInvalidCursor
		}
		return time.Time{}, err
	}
	return createdAt, nil
}

func (s *PostgresStorage) ListForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string, c Cursor) ([]Notification, bool, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, false, err
	}

	base := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE project_id = $1 AND recipient_id = $2 AND status = 'delivered'
	`
	args := []any{projectID, recipientID}
	ascending := false

	switch {
	case c.Before != nil:
		at, err := s.cursorPosition(ctx, projectID, recipientID, *c.Before)
		if err != nil {
			return nil, false, err
		}
		base += ` AND (created_at, id) < ($3, $4) ORDER BY created_at DESC, id DESC LIMIT $5`
		args = append(args, at, *c.Before, c.Limit+1)
	case c.After != nil:
		at, err := s.cursorPosition(ctx, projectID, recipientID, *c.After)
		if err != nil {
			return nil, false, err
		}
		base += ` AND (created_at, id) > ($3, $4) ORDER BY created_at ASC, id ASC LIMIT $5`
		args = append(args, at, *c.After, c.Limit+1)
		ascending = true
	default:
		base += ` ORDER BY created_at DESC, id DESC LIMIT $3`
		args = append(args, c.Limit+1)
	}

	rows, err := s.pool.Query(ctx, base, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var page []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, false, err
		}
		page = append(page, n)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(page) > c.Limit
	if hasMore {
		page = page[:c.Limit]
	}
	if ascending {
		// the After branch scans oldest-first; flip back to newest-first
		for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
			page[i], page[j] = page[j], page[i]
		}
	}

	return page, hasMore, nil
}

func (s *PostgresStorage) UnreadCount(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	query := `
		SELECT count(*)
		FROM notifications
		WHERE project_id = $1 AND recipient_id = $2 AND status = 'delivered' AND read = FALSE
	`
	var count int
	err := s.pool.QueryRow(ctx, query, projectID, recipientID).Scan(&count)
	return count, err
}

func (s *PostgresStorage) UpdateState(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID, change StateChange) (int, error) {
	query := `
		UPDATE notifications
		SET read = COALESCE($4::boolean, read),
			read_at = CASE
				WHEN $4::boolean IS NULL THEN read_at
				WHEN $4::boolean THEN now()
				ELSE NULL
			END,
			opened = COALESCE($5::boolean, opened),
			opened_at = CASE
				WHEN $5::boolean IS NULL THEN opened_at
				WHEN $5::boolean THEN now()
				ELSE NULL
			END,
			updated_at = now()
		WHERE project_id = $1 AND recipient_id = $2 AND id = ANY($3)
	`
	tag, err := s.pool.Exec(ctx, query, projectID, recipientID, ids, change.Read, change.Opened)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) Delete(ctx context.Context, projectID uuid.UUID, recipientID string, ids []uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE project_id = $1 AND recipient_id = $2 AND id = ANY($3)`,
		projectID, recipientID, ids,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) DeleteForRecipient(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE project_id = $1 AND recipient_id = $2`,
		projectID, recipientID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) CountForRecipients(ctx context.Context, projectID uuid.UUID, recipientIDs []string) (map[string]recipient.Counts, error) {
	query := `
		SELECT recipient_id,
			count(*) FILTER (WHERE broadcast_id IS NULL) AS direct,
			count(*) FILTER (WHERE broadcast_id IS NOT NULL) AS broadcast
		FROM notifications
		WHERE project_id = $1 AND recipient_id = ANY($2) AND status = 'delivered'
		GROUP BY recipient_id
	`
	rows, err := s.pool.Query(ctx, query, projectID, recipientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]recipient.Counts)
	for rows.Next() {
		var rid string
		var c recipient.Counts
		if err := rows.Scan(&rid, &c.Direct, &c.Broadcast); err != nil {
			return nil, err
		}
		counts[rid] = c
	}
	return counts, rows.Err()
}

package preference

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herald-labs/herald/pkg/pg"
	"github.com/herald-labs/herald/pkg/target"
)

// PostgresStorage is the production Storage implementation on pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a preference store on the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) CreateRule(ctx context.Context, rule ProjectRule) error {
	query := `
		INSERT INTO preference_rules
			(id, project_id, channel, topic, event, label, default_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		rule.ID, rule.ProjectID,
		rule.Target.Channel, rule.Target.Topic, rule.Target.Event,
		rule.Label, rule.DefaultEnabled, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDuplicateRule
		}
		return err
	}
	return nil
}

func (s *PostgresStorage) ListRules(ctx context.Context, projectID uuid.UUID) ([]ProjectRule, error) {
	query := `
		SELECT id, project_id, channel, topic, event, label, default_enabled, created_at, updated_at
		FROM preference_rules
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []ProjectRule
	for rows.Next() {
		var rule ProjectRule
		if err := rows.Scan(
			&rule.ID, &rule.ProjectID,
			&rule.Target.Channel, &rule.Target.Topic, &rule.Target.Event,
			&rule.Label, &rule.DefaultEnabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *PostgresStorage) DeleteRule(ctx context.Context, projectID, ruleID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM preference_rules WHERE project_id = $1 AND id = $2`,
		projectID, ruleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresStorage) RuleExists(ctx context.Context, projectID uuid.UUID, t target.Target) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM preference_rules
			WHERE project_id = $1 AND channel = $2 AND topic = $3 AND event = $4
		)
	`
	var exists bool
	err := s.pool.QueryRow(ctx, query, projectID, t.Channel, t.Topic, t.Event).Scan(&exists)
	return exists, err
}

func (s *PostgresStorage) UpsertOverride(ctx context.Context, ov Override) (*Override, error) {
	query := `
		INSERT INTO preference_overrides
			(id, project_id, recipient_id, channel, topic, event, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (project_id, recipient_id, channel, topic, event) DO UPDATE
		SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
		RETURNING id, project_id, recipient_id, channel, topic, event, enabled, created_at, updated_at
	`
	var stored Override
	err := s.pool.QueryRow(ctx, query,
		ov.ID, ov.ProjectID, ov.RecipientID,
		ov.Target.Channel, ov.Target.Topic, ov.Target.Event,
		ov.Enabled, ov.CreatedAt, ov.UpdatedAt,
	).Scan(
		&stored.ID, &stored.ProjectID, &stored.RecipientID,
		&stored.Target.Channel, &stored.Target.Topic, &stored.Target.Event,
		&stored.Enabled, &stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *PostgresStorage) GetOverride(ctx context.Context, projectID uuid.UUID, recipientID string, t target.Target) (*Override, error) {
	query := `
		SELECT id, project_id, recipient_id, channel, topic, event, enabled, created_at, updated_at
		FROM preference_overrides
		WHERE project_id = $1 AND recipient_id = $2 AND channel = $3 AND topic = $4 AND event = $5
	`
	var ov Override
	err := s.pool.QueryRow(ctx, query, projectID, recipientID, t.Channel, t.Topic, t.Event).Scan(
		&ov.ID, &ov.ProjectID, &ov.RecipientID,
		&ov.Target.Channel, &ov.Target.Topic, &ov.Target.Event,
		&ov.Enabled, &ov.CreatedAt, &ov.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrOverrideNotFound
		}
		return nil, err
	}
	return &ov, nil
}

func (s *PostgresStorage) ListOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) ([]Override, error) {
	query := `
		SELECT id, project_id, recipient_id, channel, topic, event, enabled, created_at, updated_at
		FROM preference_overrides
		WHERE project_id = $1 AND recipient_id = $2
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, query, projectID, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		var ov Override
		if err := rows.Scan(
			&ov.ID, &ov.ProjectID, &ov.RecipientID,
			&ov.Target.Channel, &ov.Target.Topic, &ov.Target.Event,
			&ov.Enabled, &ov.CreatedAt, &ov.UpdatedAt,
		); err != nil {
			return nil, err
		}
		overrides = append(overrides, ov)
	}
	return overrides, rows.Err()
}

func (s *PostgresStorage) DeleteOverrides(ctx context.Context, projectID uuid.UUID, recipientID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM preference_overrides WHERE project_id = $1 AND recipient_id = $2`,
		projectID, recipientID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) CountOverridesForTarget(ctx context.Context, projectID uuid.UUID, t target.Target) (int, error) {
	query := `
		SELECT count(*)
		FROM preference_overrides
		WHERE project_id = $1 AND channel = $2 AND topic = $3 AND event = $4
	`
	var count int
	err := s.pool.QueryRow(ctx, query, projectID, t.Channel, t.Topic, t.Event).Scan(&count)
	return count, err
}

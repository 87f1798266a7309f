package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herald-labs/herald/pkg/pg"
)

// PostgresSubscriptionStore is the production SubscriptionStore on pgx.
type PostgresSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionStore creates a subscription store on the given pool.
func NewPostgresSubscriptionStore(pool *pgxpool.Pool) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{pool: pool}
}

func (s *PostgresSubscriptionStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	query := `
		SELECT user_id, plan_id, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`
	var sub Subscription
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&sub.UserID, &sub.PlanID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return &sub, nil
}

func (s *PostgresSubscriptionStore) Upsert(ctx context.Context, sub Subscription) error {
	query := `
		INSERT INTO subscriptions
			(user_id, plan_id, current_period_start, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE
		SET plan_id = EXCLUDED.plan_id,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = now()
	`
	_, err := s.pool.Exec(ctx, query,
		sub.UserID, sub.PlanID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

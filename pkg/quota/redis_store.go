package quota

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// consumeScript performs the bounded check-and-increment server-side so it
// is atomic across every client. KEYS[1] is the period counter,
// ARGV[1] the amount, ARGV[2] the limit (-1 for unlimited), ARGV[3] the
// unix timestamp the key expires at (counters die with their period).
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if limit >= 0 and current + amount > limit then
	return 0
end
redis.call('INCRBY', KEYS[1], amount)
if tonumber(ARGV[3]) > 0 then
	redis.call('EXPIREAT', KEYS[1], ARGV[3])
end
return 1
`)

// RedisUsageStore is a Redis-backed UsageStore for multi-process
// deployments. Atomicity of Consume comes from running the check and the
// increment inside one Lua script.
type RedisUsageStore struct {
	client redis.UniversalClient
}

// NewRedisUsageStore creates a usage store on the given Redis client.
func NewRedisUsageStore(client redis.UniversalClient) *RedisUsageStore {
	return &RedisUsageStore{client: client}
}

func (s *RedisUsageStore) Consume(ctx context.Context, userID uuid.UUID, metric Metric, amount, limit int64, periodStart, periodEnd time.Time) (bool, error) {
	key := usageKey(userID, metric, periodStart)

	// Keys linger a day past period end so late reads still see the final
	// counter before it is garbage collected.
	expireAt := periodEnd.Add(24 * time.Hour).Unix()

	res, err := consumeScript.Run(ctx, s.client, []string{key}, amount, limit, expireAt).Int()
	if err != nil {
		return false, errors.Join(ErrStoreFailure, err)
	}

	return res == 1, nil
}

func (s *RedisUsageStore) Used(ctx context.Context, userID uuid.UUID, metric Metric, periodStart time.Time) (int64, error) {
	key := usageKey(userID, metric, periodStart)

	val, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, errors.Join(ErrStoreFailure, err)
	}

	return val, nil
}

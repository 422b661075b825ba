package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "audit:dedup:"
	// redisExpiryIndex is a sorted set of event ids scored by expiry (unix ms).
	redisExpiryIndex = "audit:dedup:expiry"
)

// markScript stores the entry hash with a TTL and indexes its expiry.
// KEYS[1] = entry key, KEYS[2] = expiry index
// ARGV[1] = event id, ARGV[2] = source service, ARGV[3] = created ms, ARGV[4] = expires ms, ARGV[5] = ttl ms
var markScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'source_service', ARGV[2], 'created_at', ARGV[3], 'expires_at', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[1])
return 1
`)

// sweepScript removes index members whose expiry is before now along with any
// entry keys that outlived their TTL.
// KEYS[1] = expiry index
// ARGV[1] = now ms (exclusive), ARGV[2] = key prefix
var sweepScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('DEL', ARGV[2] .. id)
end
if #ids > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
end
return #ids
`)

// RedisStore implements Store with one hash per event id. Redis key expiry
// enforces the TTL; the index lets DeleteExpired report what it removed.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Exists(ctx context.Context, eventID string, now time.Time) (bool, error) {
	exp, err := s.rdb.HGet(ctx, redisKeyPrefix+eventID, "expires_at").Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exp > now.UnixMilli(), nil
}

func (s *RedisStore) Insert(ctx context.Context, e Entry) error {
	ttl := e.ExpiresAt.Sub(e.CreatedAt)
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	return markScript.Run(ctx, s.rdb,
		[]string{redisKeyPrefix + e.EventID, redisExpiryIndex},
		e.EventID, e.SourceService, e.CreatedAt.UnixMilli(), e.ExpiresAt.UnixMilli(), ttl.Milliseconds(),
	).Err()
}

func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return sweepScript.Run(ctx, s.rdb, []string{redisExpiryIndex}, now.UnixMilli(), redisKeyPrefix).Int64()
}

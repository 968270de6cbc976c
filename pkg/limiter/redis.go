package limiter

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "shiphook:ratelimit:"

// allowScript prunes, checks, and records in one atomic round trip so two
// concurrent requests cannot both be admitted past the threshold.
//
// KEYS[1] window sorted set; ARGV[1] cutoff score, ARGV[2] threshold,
// ARGV[3] now score, ARGV[4] unique member (same-instant requests must
// count separately), ARGV[5] key TTL in ms.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter implements the sliding window over one sorted set per
// identifier, for deployments with more than one shiphook instance.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a limiter backed by the Redis instance at url.
func NewRedisLimiter(url string, cfg Config, logger *slog.Logger) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return &RedisLimiter{
		client: redis.NewClient(opts),
		cfg:    cfg.withDefaults(),
		logger: logger.With("module", "rate_limiter", "backend", "redis"),
		now:    time.Now,
	}, nil
}

// Allow admits or rejects a request for id atomically on the Redis side.
func (l *RedisLimiter) Allow(ctx context.Context, id string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	admitted, err := allowScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + id},
		cutoff.UnixNano(),
		l.cfg.MaxRequests,
		now.UnixNano(),
		uuid.NewString(),
		l.cfg.Window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}

	if admitted == 0 {
		l.logger.Warn("Rate limit exceeded", "identifier", id)

		return false, nil
	}

	return true, nil
}

// Stats scans the limiter keyspace and sums in-window request counts.
// Expired identifiers age out via key TTLs, so no sweep goroutine is needed.
func (l *RedisLimiter) Stats(ctx context.Context) (Stats, error) {
	cutoffScore := strconv.FormatInt(l.now().Add(-l.cfg.Window).UnixNano(), 10)

	var stats Stats

	iter := l.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count, err := l.client.ZCount(ctx, iter.Val(), cutoffScore, "+inf").Result()
		if err != nil {
			return Stats{}, err
		}

		stats.TrackedIdentifiers++
		stats.InWindowRequests += count
	}

	if err := iter.Err(); err != nil {
		return Stats{}, err
	}

	return stats, nil
}

// Close releases the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

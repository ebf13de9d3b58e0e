// pkg/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"quiz-practice/internal/models"
)

const leaderboardKey = "leaderboard:points"

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another holder")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// AddPoints increments the user's running total on the global leaderboard.
func (c *RedisCache) AddPoints(ctx context.Context, userID uint, points int) error {
	if points == 0 {
		return nil
	}
	member := strconv.FormatUint(uint64(userID), 10)
	return c.client.ZIncrBy(ctx, leaderboardKey, float64(points), member).Err()
}

// GetLeaderboard returns the top entries, highest score first.
func (c *RedisCache) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:     uint(id),
			TotalScore: int(z.Score),
		})
	}
	return entries, nil
}

// Lock is a held distributed lock.
type Lock struct {
	cache *RedisCache
	key   string
	token string
}

// AcquireLock sets key with a unique token if it is absent. The ttl bounds how
// long a crashed holder can block others.
func (c *RedisCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{cache: c, key: "lock:" + key, token: token}, nil
}

func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.cache.client, []string{l.key}, l.token).Err()
}

// SessionCompleted adds the session's points to the leaderboard.
func (c *RedisCache) SessionCompleted(ctx context.Context, res models.SessionResult) error {
	return c.AddPoints(ctx, res.UserID, res.Points)
}

package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/mentalmath/internal/store"
)

const (
	keyScores  = "mentalmath:leaderboard:scores"
	keyEntries = "mentalmath:leaderboard:entries"

	// levelSlots must exceed the highest level so a level never spills into
	// the score part of a composite.
	levelSlots = 16
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps ranked users in a sorted set scored by
// Composite(score, level), with display data in a hash.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Composite folds score and level into one sorted-set score so that equal
// scores order by level.
func Composite(score, level int) float64 {
	return float64(score*levelSlots + level)
}

type cachedEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Level int    `json:"level"`
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, e store.LeaderboardEntry) error {
	data, err := json.Marshal(cachedEntry{Name: e.Name, Score: e.Score, Level: e.Level})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, keyScores, redis.Z{Score: Composite(e.Score, e.Level), Member: member(e.UserID)})
	pipe.HSet(ctx, keyEntries, member(e.UserID), data)
	_, err = pipe.Exec(ctx)
	return err
}

// Remove implements Cache.
func (c *RedisCache) Remove(ctx context.Context, userID int64) error {
	pipe := c.client.TxPipeline()
	pipe.ZRem(ctx, keyScores, member(userID))
	pipe.HDel(ctx, keyEntries, member(userID))
	_, err := pipe.Exec(ctx)
	return err
}

// Top implements Cache.
func (c *RedisCache) Top(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	ids, err := c.client.ZRevRange(ctx, keyScores, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := c.client.HMGet(ctx, keyEntries, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]store.LeaderboardEntry, 0, len(ids))
	for i, v := range data {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("entry for %s missing", ids[i])
		}
		e, err := decodeEntry(ids[i], str)
		if err != nil {
			return nil, err
		}
		e.Position = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, nil
}

// Entry implements Cache.
func (c *RedisCache) Entry(ctx context.Context, userID int64) (store.LeaderboardEntry, error) {
	str, err := c.client.HGet(ctx, keyEntries, member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return store.LeaderboardEntry{}, ErrNotCached
	}
	if err != nil {
		return store.LeaderboardEntry{}, err
	}
	return decodeEntry(member(userID), str)
}

// Better implements Cache.
func (c *RedisCache) Better(ctx context.Context, score, level int) (int, error) {
	lo := "(" + strconv.FormatFloat(Composite(score, level), 'f', 0, 64)
	n, err := c.client.ZCount(ctx, keyScores, lo, "+inf").Result()
	return int(n), err
}

// Len implements Cache.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	n, err := c.client.ZCard(ctx, keyScores).Result()
	return int(n), err
}

func decodeEntry(id, raw string) (store.LeaderboardEntry, error) {
	var ce cachedEntry
	if err := json.Unmarshal([]byte(raw), &ce); err != nil {
		return store.LeaderboardEntry{}, fmt.Errorf("decode entry %s: %w", id, err)
	}
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return store.LeaderboardEntry{}, fmt.Errorf("decode member %q: %w", id, err)
	}
	return store.LeaderboardEntry{UserID: userID, Name: ce.Name, Score: ce.Score, Level: ce.Level}, nil
}

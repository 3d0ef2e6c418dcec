// Package leaderboard serves the score ranking, optionally mirrored in a
// Redis sorted set so hot reads skip the database.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abhisek/mentalmath/internal/store"
)

// warmLimit bounds how many ranked users Warm copies into the cache.
const warmLimit = 100_000

// ErrNotCached is returned by a Cache that holds no entry for a user.
var ErrNotCached = errors.New("leaderboard: user not cached")

// Source is the authoritative ranking, normally *store.Store.
type Source interface {
	GetUser(ctx context.Context, userID int64) (*store.User, error)
	GetLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
	GetRank(ctx context.Context, userID int64) (store.Rank, error)
}

// Cache mirrors the ranking of users with a positive score.
type Cache interface {
	Put(ctx context.Context, e store.LeaderboardEntry) error
	Remove(ctx context.Context, userID int64) error
	Top(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
	Entry(ctx context.Context, userID int64) (store.LeaderboardEntry, error)

	// Better counts cached users strictly better than score at level.
	Better(ctx context.Context, score, level int) (int, error)
	Len(ctx context.Context) (int, error)
}

// Service answers ranking queries. With a nil cache every call goes to
// the source.
type Service struct {
	source Source
	cache  Cache
	logger *slog.Logger
}

// NewService creates a ranking service. cache may be nil.
func NewService(source Source, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, logger: logger}
}

// Top returns the best limit users.
func (s *Service) Top(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = store.DefaultLeaderboardLimit
	}
	if s.cache != nil {
		entries, err := s.cache.Top(ctx, limit)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("leaderboard cache read failed, using store", "error", err)
	}
	return s.source.GetLeaderboard(ctx, limit)
}

// Rank returns the user's position.
func (s *Service) Rank(ctx context.Context, userID int64) (store.Rank, error) {
	if s.cache != nil {
		rank, err := s.cachedRank(ctx, userID)
		if err == nil {
			return rank, nil
		}
		if !errors.Is(err, ErrNotCached) {
			s.logger.Warn("leaderboard cache rank failed, using store", "user_id", userID, "error", err)
		}
	}
	return s.source.GetRank(ctx, userID)
}

// Users without a score are not cached; their rank also counts zero-score
// users on higher levels, which only the store knows.
func (s *Service) cachedRank(ctx context.Context, userID int64) (store.Rank, error) {
	e, err := s.cache.Entry(ctx, userID)
	if err != nil {
		return store.Rank{}, err
	}
	better, err := s.cache.Better(ctx, e.Score, e.Level)
	if err != nil {
		return store.Rank{}, err
	}
	total, err := s.cache.Len(ctx)
	if err != nil {
		return store.Rank{}, err
	}
	return store.Rank{Position: better + 1, TotalUsers: total, Score: e.Score, Level: e.Level}, nil
}

// Record refreshes the user's cached entry from the source. Cache failures
// are logged and swallowed; the store stays authoritative.
func (s *Service) Record(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	u, err := s.source.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("leaderboard record: load user failed", "user_id", userID, "error", err)
		return
	}
	if u.TotalScore <= 0 {
		err = s.cache.Remove(ctx, userID)
	} else {
		err = s.cache.Put(ctx, store.LeaderboardEntry{
			UserID: u.ID,
			Name:   u.DisplayName(),
			Score:  u.TotalScore,
			Level:  u.CurrentLevel,
		})
	}
	if err != nil {
		s.logger.Warn("leaderboard cache write failed", "user_id", userID, "error", err)
	}
}

// Warm copies the ranked users from the source into the cache.
func (s *Service) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	entries, err := s.source.GetLeaderboard(ctx, warmLimit)
	if err != nil {
		return fmt.Errorf("load leaderboard: %w", err)
	}
	for _, e := range entries {
		if err := s.cache.Put(ctx, e); err != nil {
			return fmt.Errorf("cache user %d: %w", e.UserID, err)
		}
	}
	s.logger.Info("leaderboard cache warmed", "users", len(entries))
	return nil
}

package achievements

import (
	"context"
	"fmt"
	"log/slog"
)

// Repository is the persistence the award service needs.
type Repository interface {
	History(ctx context.Context, userID int64) (History, error)
	Catalog(ctx context.Context) ([]Definition, error)
	EarnedAchievementIDs(ctx context.Context, userID int64) (map[int64]bool, error)

	// AwardAchievements records the awards and returns the IDs that were
	// actually inserted. Awards the user already holds are skipped.
	AwardAchievements(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

// Service evaluates a user's history and persists newly earned badges.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates an award service backed by repo.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// EvaluateAndAward awards every badge the user now qualifies for and returns
// the ones that were newly earned. A second call with unchanged history
// returns nothing.
func (s *Service) EvaluateAndAward(ctx context.Context, userID int64) ([]Definition, error) {
	history, err := s.repo.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	catalog, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	earned, err := s.repo.EarnedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load earned achievements: %w", err)
	}

	candidates := Evaluate(history, catalog, earned)
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(candidates))
	for i, def := range candidates {
		ids[i] = def.ID
	}
	inserted, err := s.repo.AwardAchievements(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("award achievements: %w", err)
	}

	// A concurrent award for the same user may have won the insert.
	won := make(map[int64]bool, len(inserted))
	for _, id := range inserted {
		won[id] = true
	}
	var awarded []Definition
	for _, def := range candidates {
		if won[def.ID] {
			awarded = append(awarded, def)
			s.logger.Info("achievement earned",
				"user_id", userID,
				"achievement", def.Name,
			)
		}
	}
	return awarded, nil
}

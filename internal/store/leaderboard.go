package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// DefaultLeaderboardLimit is the number of rows shown when no limit is given.
const DefaultLeaderboardLimit = 10

// GetLeaderboard returns users with a positive score, best first. Equal
// scores are ordered by level.
func (s *Store) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	b := s.builder()
	query, args := b.Select("id", "username", "first_name", "total_score", "current_level").
		From(b.Table("users")).
		Where(entsql.GT("total_score", 0)).
		OrderBy(entsql.Desc("total_score"), entsql.Desc("current_level"), "id").
		Limit(limit).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var (
			e                   LeaderboardEntry
			username, firstName sql.NullString
		)
		if err := rows.Scan(&e.UserID, &username, &firstName, &e.Score, &e.Level); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Position = len(entries) + 1
		e.Name = Profile{ID: e.UserID, Username: username.String, FirstName: firstName.String}.DisplayName()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRank returns the user's position: one more than the number of users
// strictly better, where better means a higher score, or an equal score and
// a higher level.
func (s *Store) GetRank(ctx context.Context, userID int64) (Rank, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return Rank{}, err
	}

	b := s.builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table("users")).
		Where(entsql.Or(
			entsql.GT("total_score", user.TotalScore),
			entsql.And(
				entsql.EQ("total_score", user.TotalScore),
				entsql.GT("current_level", user.CurrentLevel),
			),
		)).
		Query()
	var better int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&better); err != nil {
		return Rank{}, fmt.Errorf("count better users: %w", err)
	}

	total, err := s.RankedUsers(ctx)
	if err != nil {
		return Rank{}, err
	}
	return Rank{
		Position:   better + 1,
		TotalUsers: total,
		Score:      user.TotalScore,
		Level:      user.CurrentLevel,
	}, nil
}

// RankedUsers counts users with a positive score.
func (s *Store) RankedUsers(ctx context.Context) (int, error) {
	b := s.builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table("users")).
		Where(entsql.GT("total_score", 0)).
		Query()
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ranked users: %w", err)
	}
	return n, nil
}

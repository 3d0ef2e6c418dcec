package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/settings"
)

// GetSettings returns the user's settings, or the defaults when the user
// never changed any. Stored values are clamped into bounds.
func (s *Store) GetSettings(ctx context.Context, userID int64) (settings.Settings, error) {
	b := s.builder()
	query, args := b.Select("time_per_problem", "problems_per_session").
		From(b.Table("user_settings")).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var st settings.Settings
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.SecondsPerProblem, &st.ProblemsPerSession)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.Settings{}, fmt.Errorf("get settings for %d: %w", userID, err)
	}
	return settings.Clamp(st), nil
}

// UpdateSetting validates and stores one setting and returns the resulting
// settings. Validation errors come from settings.Set.
func (s *Store) UpdateSetting(ctx context.Context, userID int64, key settings.Key, value int) (settings.Settings, error) {
	current, err := s.GetSettings(ctx, userID)
	if err != nil {
		return settings.Settings{}, err
	}
	next, err := settings.Set(current, key, value)
	if err != nil {
		return current, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return current, err
	}

	column := string(key)
	query, args := s.builder().Insert("user_settings").
		Columns("user_id", "time_per_problem", "problems_per_session", "updated_at").
		Values(userID, next.SecondsPerProblem, next.ProblemsPerSession, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded(column)
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return current, fmt.Errorf("update setting %s for %d: %w", key, userID, err)
	}

	s.logger.Info("setting updated", "user_id", userID, "key", string(key), "value", value)
	return next, nil
}

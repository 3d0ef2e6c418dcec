package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/achievements"
)

// Catalog returns every achievement definition ordered by id.
func (s *Store) Catalog(ctx context.Context) ([]achievements.Definition, error) {
	b := s.builder()
	query, args := b.Select("id", "name", "description", "icon", "condition_type", "condition_value").
		From(b.Table("achievements")).
		OrderBy("id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var defs []achievements.Definition
	for rows.Next() {
		var d achievements.Definition
		var cond string
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Icon, &cond, &d.Threshold); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		d.Condition = achievements.ConditionType(cond)
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// EarnedAchievementIDs returns the set of achievement ids the user holds.
func (s *Store) EarnedAchievementIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	b := s.builder()
	query, args := b.Select("achievement_id").
		From(b.Table("user_achievements")).
		Where(entsql.EQ("user_id", userID)).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query earned achievements: %w", err)
	}
	defer rows.Close()

	earned := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan earned achievement: %w", err)
		}
		earned[id] = true
	}
	return earned, rows.Err()
}

// AwardAchievements grants ids to the user and returns the ids that were
// newly inserted. Ids the user already holds are skipped silently.
func (s *Store) AwardAchievements(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var inserted []int64
	for _, id := range ids {
		query, args := s.builder().Insert("user_achievements").
			Columns("user_id", "achievement_id", "earned_at").
			Values(userID, id, now).
			OnConflict(entsql.ConflictColumns("user_id", "achievement_id"), entsql.DoNothing()).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("award achievement %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted = append(inserted, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// EarnedAchievements lists the user's achievements in the order they were
// earned.
func (s *Store) EarnedAchievements(ctx context.Context, userID int64) ([]achievements.Earned, error) {
	b := s.builder()
	a := b.Table("achievements")
	ua := b.Table("user_achievements")
	query, args := b.Select(a.C("id"), a.C("name"), a.C("description"), a.C("icon"),
		a.C("condition_type"), a.C("condition_value"), ua.C("earned_at")).
		From(ua).
		Join(a).On(ua.C("achievement_id"), a.C("id")).
		Where(entsql.EQ(ua.C("user_id"), userID)).
		OrderBy(ua.C("earned_at"), ua.C("id")).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query earned achievements: %w", err)
	}
	defer rows.Close()

	var out []achievements.Earned
	for rows.Next() {
		var e achievements.Earned
		var cond string
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Icon, &cond, &e.Threshold, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("scan earned achievement: %w", err)
		}
		e.Condition = achievements.ConditionType(cond)
		out = append(out, e)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var userColumns = []string{
	"id", "username", "first_name", "last_name",
	"current_level", "total_score", "created_at", "last_activity",
}

// GetOrCreateUser registers p if needed and refreshes its profile fields.
// Progress columns are never touched.
func (s *Store) GetOrCreateUser(ctx context.Context, p Profile) (*User, error) {
	now := time.Now().UTC()
	query, args := s.builder().Insert("users").
		Columns("id", "username", "first_name", "last_name", "current_level", "total_score", "created_at", "last_activity").
		Values(p.ID, p.Username, p.FirstName, p.LastName, 1, 0, now, now).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("username")
				u.SetExcluded("first_name")
				u.SetExcluded("last_name")
				u.SetExcluded("last_activity")
			}),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("upsert user %d: %w", p.ID, err)
	}
	return s.GetUser(ctx, p.ID)
}

// GetUser loads a user by ID. It returns ErrUserNotFound for unknown IDs.
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	return getUser(ctx, s.db, s.builder(), userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getUser(ctx context.Context, q queryRower, b *entsql.DialectBuilder, userID int64) (*User, error) {
	query, args := b.Select(userColumns...).
		From(b.Table("users")).
		Where(entsql.EQ("id", userID)).
		Query()

	var (
		u                              User
		username, firstName, lastName sql.NullString
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &username, &firstName, &lastName,
		&u.CurrentLevel, &u.TotalScore, &u.CreatedAt, &u.LastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	return &u, nil
}

// ResetProgress puts the user back on level 1 with no score, and deletes
// their sessions, attempts and achievements. Settings are kept.
func (s *Store) ResetProgress(ctx context.Context, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	b := s.builder()
	if _, err := getUser(ctx, tx, b, userID); err != nil {
		return err
	}

	query, args := b.Select("id").From(b.Table("learning_sessions")).
		Where(entsql.EQ("user_id", userID)).Query()
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var sessionIDs []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan session id: %w", err)
		}
		sessionIDs = append(sessionIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	var stmts []*entsql.DeleteBuilder
	if len(sessionIDs) > 0 {
		stmts = append(stmts, b.Delete("problems").Where(entsql.In("session_id", sessionIDs...)))
	}
	stmts = append(stmts,
		b.Delete("learning_sessions").Where(entsql.EQ("user_id", userID)),
		b.Delete("user_achievements").Where(entsql.EQ("user_id", userID)),
	)
	for _, del := range stmts {
		query, args := del.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
	}

	query, args = b.Update("users").
		Set("current_level", 1).
		Set("total_score", 0).
		Set("last_activity", time.Now().UTC()).
		Where(entsql.EQ("id", userID)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("progress reset", "user_id", userID)
	return nil
}

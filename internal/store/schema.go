package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/achievements"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		current_level INTEGER NOT NULL DEFAULT 1,
		total_score INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		last_activity DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		time_per_problem INTEGER NOT NULL,
		problems_per_session INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learning_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		level INTEGER NOT NULL,
		problems_solved INTEGER NOT NULL,
		correct_answers INTEGER NOT NULL,
		total_time REAL NOT NULL,
		completed BOOLEAN NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS learning_sessions_user_id ON learning_sessions(user_id)`,
	`CREATE TABLE IF NOT EXISTS problems (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES learning_sessions(id) ON DELETE CASCADE,
		level INTEGER NOT NULL,
		problem_text TEXT NOT NULL,
		correct_answer INTEGER NOT NULL,
		user_answer INTEGER,
		is_correct BOOLEAN NOT NULL,
		time_taken REAL NOT NULL,
		answered_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS problems_session_id ON problems(session_id)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		icon TEXT NOT NULL,
		condition_type TEXT NOT NULL,
		condition_value INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_achievements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		achievement_id INTEGER NOT NULL REFERENCES achievements(id),
		earned_at DATETIME NOT NULL,
		UNIQUE (user_id, achievement_id)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		current_level INTEGER NOT NULL DEFAULT 1,
		total_score BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		last_activity TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		time_per_problem INTEGER NOT NULL,
		problems_per_session INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learning_sessions (
		id BIGSERIAL PRIMARY KEY,
		session_key TEXT NOT NULL UNIQUE,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		level INTEGER NOT NULL,
		problems_solved INTEGER NOT NULL,
		correct_answers INTEGER NOT NULL,
		total_time DOUBLE PRECISION NOT NULL,
		completed BOOLEAN NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS learning_sessions_user_id ON learning_sessions(user_id)`,
	`CREATE TABLE IF NOT EXISTS problems (
		id BIGSERIAL PRIMARY KEY,
		session_id BIGINT NOT NULL REFERENCES learning_sessions(id) ON DELETE CASCADE,
		level INTEGER NOT NULL,
		problem_text TEXT NOT NULL,
		correct_answer INTEGER NOT NULL,
		user_answer INTEGER,
		is_correct BOOLEAN NOT NULL,
		time_taken DOUBLE PRECISION NOT NULL,
		answered_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS problems_session_id ON problems(session_id)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		icon TEXT NOT NULL,
		condition_type TEXT NOT NULL,
		condition_value INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_achievements (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		achievement_id BIGINT NOT NULL REFERENCES achievements(id),
		earned_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, achievement_id)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// seedCatalog inserts the default achievements that are not present yet,
// matched by name.
func (s *Store) seedCatalog(ctx context.Context) error {
	for _, def := range achievements.DefaultCatalog() {
		query, args := s.builder().Insert("achievements").
			Columns("name", "description", "icon", "condition_type", "condition_value").
			Values(def.Name, def.Description, def.Icon, string(def.Condition), def.Threshold).
			OnConflict(entsql.ConflictColumns("name"), entsql.DoNothing()).
			Query()
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("seed %s: %w", def.Name, err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// PostgreSQL through pgx's database/sql adapter.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Config selects and configures the backing database.
type Config struct {
	// DSN is a postgres:// or postgresql:// URL, or a SQLite file path.
	DSN string

	Logger *slog.Logger
}

// Store is the user progress store. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

// Open connects to the database named by cfg.DSN, creates missing tables and
// seeds the achievement catalog.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	driver, name, dsn := resolveDriver(cfg.DSN)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if name == dialect.SQLite {
		// One connection keeps per-connection pragmas in effect and
		// serializes writers.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	} else if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dialect: name, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.seedCatalog(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed achievements: %w", err)
	}

	logger.Info("store opened", "dialect", name)
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name of the connection.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// resolveDriver maps a DSN to the database/sql driver, ent dialect and the
// DSN the driver expects.
func resolveDriver(dsn string) (driver, name, out string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", dialect.Postgres, dsn
	}
	return "sqlite", dialect.SQLite, dsn
}

// applyPragmas configures SQLite for a small concurrent workload.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite file path in priority order:
// 1. MENTALMATH_DB environment variable
// 2. $XDG_DATA_HOME/mentalmath/mentalmath.db
// 3. ~/.local/share/mentalmath/mentalmath.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("MENTALMATH_DB"); p != "" {
		if IsPostgresDSN(p) {
			return p, nil
		}
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "mentalmath", "mentalmath.db")
	return p, ensureDir(p)
}

// IsPostgresDSN reports whether dsn selects the PostgreSQL dialect.
func IsPostgresDSN(dsn string) bool {
	_, name, _ := resolveDriver(dsn)
	return name == dialect.Postgres
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

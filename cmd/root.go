package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/config"
	"github.com/abhisek/mentalmath/internal/leaderboard"
	"github.com/abhisek/mentalmath/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mentalmath",
	Short: "Timed mental arithmetic trainer",
	Long: "mentalmath runs timed arithmetic sessions across ten difficulty levels, " +
		"as a Telegram bot or in the terminal, and keeps score, levels and achievements.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (default $XDG_CONFIG_HOME/mentalmath/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite file or postgres:// URL (overrides MENTALMATH_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the configuration with flags taking priority over the
// environment and the config file, and builds the logger it names.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.DSN = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStore opens the configured database, defaulting to the SQLite file
// under the user's data directory.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	dsn := cfg.Database.DSN
	if dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		dsn = p
	}
	st, err := store.Open(ctx, store.Config{DSN: dsn, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// newRanking builds the leaderboard service. Without a reachable Redis it
// reads straight from the store.
func newRanking(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*leaderboard.Service, func()) {
	if cfg.Redis.Addr == "" {
		return leaderboard.NewService(st, nil, logger), func() {}
	}
	rc, err := leaderboard.NewRedisCache(ctx, leaderboard.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis unavailable, leaderboard reads go to the database", "error", err)
		return leaderboard.NewService(st, nil, logger), func() {}
	}
	return leaderboard.NewService(st, rc, logger), func() { rc.Close() }
}

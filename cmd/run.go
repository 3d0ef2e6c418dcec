package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/bot"
	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd)
	},
}

// runBot opens the store, builds dependencies, and serves Telegram updates
// until interrupted.
func runBot(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ranking, closeRanking := newRanking(ctx, cfg, st, logger)
	defer closeRanking()
	if err := ranking.Warm(ctx); err != nil {
		logger.Warn("leaderboard warm-up failed", "error", err)
	}

	client := telegram.NewClient(telegram.ClientConfig{
		Token:         cfg.Telegram.Token,
		BaseURL:       cfg.Telegram.BaseURL,
		Timeout:       time.Duration(cfg.Telegram.PollTimeout+cfg.Telegram.RequestTimeout) * time.Second,
		RetryAttempts: cfg.Telegram.RetryAttempts,
		RetryDelay:    time.Second,
		Logger:        logger,
	})
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("check bot token: %w", err)
	}

	engine, err := session.NewEngine(session.Config{
		Store:        st,
		Awarder:      achievements.NewService(st, logger),
		Ranking:      ranking,
		Generator:    problemgen.New(nil),
		Renderer:     bot.NewRenderer(client),
		Logger:       logger,
		StoreTimeout: time.Duration(cfg.Session.StoreTimeout) * time.Second,
	})
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	b := bot.New(bot.Config{
		PollTimeout:      cfg.Telegram.PollTimeout,
		ErrorBackoff:     time.Duration(cfg.Bot.ErrorBackoff) * time.Second,
		MaxConcurrent:    cfg.Bot.MaxConcurrent,
		LeaderboardLimit: cfg.Bot.LeaderboardLimit,
		Logger:           logger,
	}, client, client, engine, st, ranking)

	logger.Info("bot started", "username", me.Username, "dialect", st.Dialect())
	err = b.Run(ctx)
	logger.Info("bot stopped")
	return err
}

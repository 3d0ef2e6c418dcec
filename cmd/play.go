package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/console"
	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/store"
)

// localUserID keeps the terminal player apart from Telegram users, whose
// IDs are positive.
const localUserID = -1

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Practice in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetInt("level")
		userID, _ := cmd.Flags().GetInt64("user")
		if level != 0 && !problemgen.ValidLevel(level) {
			return fmt.Errorf("level must be between 1 and %d", problemgen.MaxLevel)
		}

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
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

		user, err := st.GetOrCreateUser(ctx, store.Profile{ID: userID, Username: os.Getenv("USER")})
		if err != nil {
			return fmt.Errorf("load player: %w", err)
		}
		if level > user.CurrentLevel {
			return fmt.Errorf("level %d is locked, you can play levels 1 to %d", level, user.CurrentLevel)
		}

		renderer := console.NewRenderer()
		engine, err := session.NewEngine(session.Config{
			Store:        st,
			Awarder:      achievements.NewService(st, logger),
			Ranking:      ranking,
			Generator:    problemgen.New(nil),
			Renderer:     renderer,
			Logger:       logger,
			StoreTimeout: time.Duration(cfg.Session.StoreTimeout) * time.Second,
		})
		if err != nil {
			return err
		}
		defer engine.Shutdown()

		model := console.New(console.Options{
			Engine:   engine,
			UserID:   user.ID,
			Name:     user.DisplayName(),
			Unlocked: user.CurrentLevel,
			Level:    level,
			Context:  ctx,
		})
		return console.Run(ctx, model, renderer)
	},
}

func init() {
	playCmd.Flags().Int("level", 0, "Start a session at this level right away")
	playCmd.Flags().Int64("user", localUserID, "Player ID to record progress under")
}

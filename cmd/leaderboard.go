package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/store"
	"github.com/abhisek/mentalmath/internal/ui/theme"
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the top players",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		ranking, closeRanking := newRanking(ctx, cfg, st, logger)
		defer closeRanking()

		entries, err := ranking.Top(ctx, limit)
		if err != nil {
			return fmt.Errorf("load leaderboard: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No ranked players yet.")
			return nil
		}

		fmt.Fprintln(out, theme.TableHeader.Render(fmt.Sprintf("%-4s  %-24s  %7s  %5s", "#", "Name", "Score", "Level")))
		for _, e := range entries {
			name := e.Name
			if len([]rune(name)) > 24 {
				name = string([]rune(name)[:21]) + "..."
			}
			fmt.Fprintf(out, "%-4d  %-24s  %7d  %5d\n", e.Position, name, e.Score, e.Level)
		}
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().Int("limit", store.DefaultLeaderboardLimit, "Number of players to show")
}

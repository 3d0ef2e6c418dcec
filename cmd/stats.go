package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/store"
	"github.com/abhisek/mentalmath/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats <user-id>",
	Short: "Show a user's progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
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

		user, err := st.GetUser(ctx, userID)
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("no user with ID %d", userID)
		}
		if err != nil {
			return err
		}
		stats, err := st.GetStats(ctx, userID)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}
		earned, err := st.EarnedAchievements(ctx, userID)
		if err != nil {
			return fmt.Errorf("load achievements: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Title.Render(user.DisplayName()))
		fmt.Fprintln(out, theme.Row("Level", strconv.Itoa(stats.Level)))
		fmt.Fprintln(out, theme.Row("Score", strconv.Itoa(stats.TotalScore)))
		fmt.Fprintln(out, theme.Row("Sessions", fmt.Sprintf("%d (%d completed)", stats.TotalSessions, stats.CompletedSessions)))
		fmt.Fprintln(out, theme.Row("Problems", fmt.Sprintf("%d (%d correct)", stats.TotalProblems, stats.CorrectAnswers)))
		fmt.Fprintln(out, theme.Row("Accuracy", fmt.Sprintf("%.1f%%", stats.Accuracy)))
		fmt.Fprintln(out, theme.Row("Achievements", strconv.Itoa(stats.AchievementsCount)))
		for _, e := range earned {
			fmt.Fprintf(out, "  %s %s %s\n", e.Icon, e.Name, theme.Subtitle.Render(e.EarnedAt.Local().Format("2006-01-02")))
		}
		return nil
	},
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", s, err)
	}
	return id, nil
}

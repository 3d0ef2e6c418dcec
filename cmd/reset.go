package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mentalmath/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Reset a user's level, score, sessions and achievements",
	Long:  "Reset a user's level, score, sessions and achievements. Settings are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("this deletes the progress of user %d; pass --yes to confirm", userID)
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

		if _, err := st.GetUser(ctx, userID); errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("no user with ID %d", userID)
		} else if err != nil {
			return err
		}
		if err := st.ResetProgress(ctx, userID); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}

		ranking, closeRanking := newRanking(ctx, cfg, st, logger)
		defer closeRanking()
		ranking.Record(ctx, userID)

		fmt.Fprintf(cmd.OutOrStdout(), "Progress of user %d was reset.\n", userID)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
}

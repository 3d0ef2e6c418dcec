package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mentalmath/internal/store"
)

// execute runs the root command against a temp SQLite file.
func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MENTALMATH_REDIS_ADDR", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedUser(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{DSN: dbPath})
	require.NoError(t, err)
	defer st.Close()

	_, err = st.GetOrCreateUser(ctx, store.Profile{ID: 42, FirstName: "Ada"})
	require.NoError(t, err)
	now := time.Now().UTC()
	answer := 2
	_, err = st.SaveSession(ctx, store.SessionInput{
		SessionKey: uuid.NewString(),
		UserID:     42,
		Level:      1,
		Target:     1,
		Completed:  true,
		StartedAt:  now.Add(-2 * time.Second),
		FinishedAt: now,
		Problems: []store.ProblemInput{{
			Text: "1 + 1 = ?", CorrectAnswer: 2, UserAnswer: &answer, IsCorrect: true,
			TimeTaken: 2 * time.Second, AnsweredAt: now,
		}},
	})
	require.NoError(t, err)
}

func TestParseUserID(t *testing.T) {
	id, err := parseUserID("-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), id)

	_, err = parseUserID("alice")
	assert.ErrorContains(t, err, `invalid user ID "alice"`)
}

func TestStatsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mm.db")
	seedUser(t, dbPath)

	out, err := execute(t, dbPath, "stats", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "100.0%")

	_, err = execute(t, dbPath, "stats", "7")
	assert.ErrorContains(t, err, "no user with ID 7")
}

func TestLeaderboardCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mm.db")
	out, err := execute(t, dbPath, "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "No ranked players yet.")

	seedUser(t, dbPath)
	out, err = execute(t, dbPath, "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
}

func TestResetCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mm.db")
	seedUser(t, dbPath)

	_, err := execute(t, dbPath, "reset", "42")
	assert.ErrorContains(t, err, "--yes")

	out, err := execute(t, dbPath, "reset", "42", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Progress of user 42 was reset.")

	out, err = execute(t, dbPath, "stats", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "0.0%")
}

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/settings"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *Store, id int64, name string) *User {
	t.Helper()
	u, err := s.GetOrCreateUser(context.Background(), Profile{ID: id, FirstName: name})
	require.NoError(t, err)
	return u
}

// sessionInput builds a session of target problems where the first correct
// ones are answered correctly.
func sessionInput(userID int64, level, target, correct int) SessionInput {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := SessionInput{
		SessionKey: uuid.NewString(),
		UserID:     userID,
		Level:      level,
		Target:     target,
		Completed:  true,
		StartedAt:  start,
		FinishedAt: start.Add(time.Duration(target) * 8 * time.Second),
	}
	for i := 0; i < target; i++ {
		answer := 7
		p := ProblemInput{
			Text:          "3 + 4 = ?",
			CorrectAnswer: 7,
			IsCorrect:     i < correct,
			TimeTaken:     8 * time.Second,
			AnsweredAt:    start.Add(time.Duration(i+1) * 8 * time.Second),
		}
		if !p.IsCorrect {
			answer = 6
		}
		p.UserAnswer = &answer
		in.Problems = append(in.Problems, p)
	}
	return in
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpen_SeedsCatalogOnce(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "seed.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		s, err := Open(ctx, Config{DSN: dsn})
		require.NoError(t, err)
		defs, err := s.Catalog(ctx)
		require.NoError(t, err)
		assert.Len(t, defs, len(achievements.DefaultCatalog()))
		require.NoError(t, s.Close())
	}
}

func TestResolveDriver(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
	}{
		{"postgres://u:p@localhost/db", "pgx"},
		{"postgresql://localhost/db", "pgx"},
		{"/var/lib/mentalmath.db", "sqlite"},
		{"file:test.db?cache=shared", "sqlite"},
	}
	for _, tt := range tests {
		driver, _, _ := resolveDriver(tt.dsn)
		assert.Equal(t, tt.driver, driver, tt.dsn)
	}
	assert.True(t, IsPostgresDSN("postgres://x"))
	assert.False(t, IsPostgresDSN("x.db"))
}

func TestGetOrCreateUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := createUser(t, s, 42, "Ada")
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, 1, u.CurrentLevel)
	assert.Equal(t, 0, u.TotalScore)

	_, err := s.SaveSession(ctx, sessionInput(42, 1, 3, 3))
	require.NoError(t, err)

	// A second call refreshes the profile but keeps progress.
	u, err = s.GetOrCreateUser(ctx, Profile{ID: 42, FirstName: "Ada L.", Username: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", u.FirstName)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, 2, u.CurrentLevel)
	assert.Equal(t, 45, u.TotalScore)
}

func TestGetUser_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetUser(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestScoreFor(t *testing.T) {
	tests := []struct {
		correct, target int
		gained          int
		accuracy        float64
	}{
		{3, 3, 45, 1},
		{4, 5, 65, 0.8},
		{3, 5, 30, 0.6},
		{0, 5, 0, 0},
		{8, 10, 130, 0.8},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		gained, accuracy := ScoreFor(tt.correct, tt.target)
		assert.Equal(t, tt.gained, gained, "ScoreFor(%d, %d)", tt.correct, tt.target)
		assert.InDelta(t, tt.accuracy, accuracy, 1e-9, "ScoreFor(%d, %d)", tt.correct, tt.target)
	}
}

func TestSaveSession_PerfectRunPromotes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	res, err := s.SaveSession(ctx, sessionInput(1, 1, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, 45, res.ScoreGained)
	assert.InDelta(t, 1.0, res.Accuracy, 1e-9)
	assert.True(t, res.Promoted)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, 45, res.TotalScore)
	assert.NotZero(t, res.SessionID)
}

func TestSaveSession_ReplayDoesNotPromote(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	// Climb to level 4.
	for level := 1; level <= 3; level++ {
		res, err := s.SaveSession(ctx, sessionInput(1, level, 3, 3))
		require.NoError(t, err)
		require.True(t, res.Promoted)
	}

	res, err := s.SaveSession(ctx, sessionInput(1, 3, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, 75, res.ScoreGained)
	assert.False(t, res.Promoted)
	assert.Equal(t, 4, res.NewLevel)
}

func TestSaveSession_BelowThreshold(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	res, err := s.SaveSession(ctx, sessionInput(1, 1, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, 30, res.ScoreGained)
	assert.False(t, res.Promoted)
	assert.Equal(t, 1, res.NewLevel)
}

func TestSaveSession_MaxLevelStays(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")
	_, err := s.DB().Exec("UPDATE users SET current_level = 10 WHERE id = 1")
	require.NoError(t, err)

	res, err := s.SaveSession(ctx, sessionInput(1, 10, 3, 3))
	require.NoError(t, err)
	assert.False(t, res.Promoted)
	assert.Equal(t, 10, res.NewLevel)
}

func TestSaveSession_TimedOutAttempt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	in := sessionInput(1, 1, 3, 2)
	in.Problems[2].UserAnswer = nil
	_, err := s.SaveSession(ctx, in)
	require.NoError(t, err)

	var nulls int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM problems WHERE user_answer IS NULL").Scan(&nulls))
	assert.Equal(t, 1, nulls)
}

func TestSaveSession_UnknownUser(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveSession(context.Background(), sessionInput(7, 1, 3, 3))
	assert.True(t, errors.Is(err, ErrUserNotFound))

	var sessions int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM learning_sessions").Scan(&sessions))
	assert.Zero(t, sessions)
}

func TestGetStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	_, err := s.SaveSession(ctx, sessionInput(1, 1, 5, 5))
	require.NoError(t, err)
	stopped := sessionInput(1, 2, 5, 1)
	stopped.Problems = stopped.Problems[:2]
	stopped.Completed = false
	_, err = s.SaveSession(ctx, stopped)
	require.NoError(t, err)

	st, err := s.GetStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Level)
	assert.Equal(t, 75+10, st.TotalScore)
	assert.Equal(t, 2, st.TotalSessions)
	assert.Equal(t, 1, st.CompletedSessions)
	assert.Equal(t, 7, st.TotalProblems)
	assert.Equal(t, 6, st.CorrectAnswers)
	assert.InDelta(t, 600.0/7, st.Accuracy, 1e-9)
}

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	st, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), st)

	st, err = s.UpdateSetting(ctx, 1, settings.KeySecondsPerProblem, 45)
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{SecondsPerProblem: 45, ProblemsPerSession: 5}, st)

	st, err = s.UpdateSetting(ctx, 1, settings.KeyProblemsPerSession, 12)
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{SecondsPerProblem: 45, ProblemsPerSession: 12}, st)

	st, err = s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{SecondsPerProblem: 45, ProblemsPerSession: 12}, st)
}

func TestSettings_RejectsOutOfRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	_, err := s.UpdateSetting(ctx, 1, settings.KeySecondsPerProblem, 500)
	assert.True(t, errors.Is(err, settings.ErrOutOfRange))

	st, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), st)
}

func TestLeaderboard_TieBreakByLevel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	db := s.DB()

	for i, row := range []struct {
		score, level int
	}{
		{100, 2},
		{100, 5},
		{200, 1},
		{0, 9},
		{50, 3},
	} {
		id := int64(i + 1)
		createUser(t, s, id, fmt.Sprintf("user%d", id))
		_, err := db.Exec("UPDATE users SET total_score = ?, current_level = ? WHERE id = ?", row.score, row.level, id)
		require.NoError(t, err)
	}

	board, err := s.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 4, "zero-score users are excluded")
	got := []int64{board[0].UserID, board[1].UserID, board[2].UserID, board[3].UserID}
	assert.Equal(t, []int64{3, 2, 1, 5}, got)
	for i, e := range board {
		assert.Equal(t, i+1, e.Position)
	}
	assert.Equal(t, "user3", board[0].Name)

	board, err = s.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)

	tests := []struct {
		userID   int64
		position int
	}{
		{3, 1},
		{2, 2},
		{1, 3},
		{5, 4},
		{4, 5},
	}
	for _, tt := range tests {
		rank, err := s.GetRank(ctx, tt.userID)
		require.NoError(t, err)
		assert.Equal(t, tt.position, rank.Position, "user %d", tt.userID)
		assert.Equal(t, 4, rank.TotalUsers)
	}
}

func TestAwardAchievements_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	defs, err := s.Catalog(ctx)
	require.NoError(t, err)
	ids := []int64{defs[0].ID, defs[1].ID}

	inserted, err := s.AwardAchievements(ctx, 1, ids)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, inserted)

	inserted, err = s.AwardAchievements(ctx, 1, ids)
	require.NoError(t, err)
	assert.Empty(t, inserted)

	earned, err := s.EarnedAchievementIDs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, earned, 2)

	list, err := s.EarnedAchievements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, defs[0].Name, list[0].Name)
	assert.False(t, list[0].EarnedAt.IsZero())
}

func TestHistoryFeedsEvaluator(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	for i := 0; i < 2; i++ {
		_, err := s.SaveSession(ctx, sessionInput(1, 1, 5, 5))
		require.NoError(t, err)
	}

	h, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, h.Sessions, 2)
	assert.Equal(t, 5, h.Sessions[0].ProblemsSolved)
	assert.Len(t, h.Sessions[1].Problems, 5)
	assert.Equal(t, 10, achievements.LongestStreak(h))

	svc := achievements.NewService(s, nil)
	first, err := svc.EvaluateAndAward(ctx, 1)
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, d := range first {
		names[d.Name] = true
	}
	assert.True(t, names["Novice"])
	assert.True(t, names["Accuracy"])
	assert.False(t, names["Speed"], "8s answers are not fast enough")

	second, err := svc.EvaluateAndAward(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestResetProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "Ada")

	_, err := s.SaveSession(ctx, sessionInput(1, 1, 3, 3))
	require.NoError(t, err)
	_, err = s.UpdateSetting(ctx, 1, settings.KeyProblemsPerSession, 10)
	require.NoError(t, err)
	_, err = achievements.NewService(s, nil).EvaluateAndAward(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.ResetProgress(ctx, 1))

	u, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, u.CurrentLevel)
	assert.Equal(t, 0, u.TotalScore)

	st, err := s.GetStats(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, st.TotalSessions)
	assert.Zero(t, st.AchievementsCount)

	var problems int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM problems").Scan(&problems))
	assert.Zero(t, problems)

	cfg, err := s.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ProblemsPerSession, "settings survive a reset")

	assert.True(t, errors.Is(s.ResetProgress(ctx, 99), ErrUserNotFound))
}

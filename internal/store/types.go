package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound is returned when an operation names a user that was never
// registered.
var ErrUserNotFound = errors.New("user not found")

// Profile is the identity a transport knows about a user.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the name shown on leaderboards.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "":
		return p.FirstName
	case p.Username != "":
		return p.Username
	default:
		return fmt.Sprintf("User %d", p.ID)
	}
}

// User is a persisted user row.
type User struct {
	Profile
	CurrentLevel int
	TotalScore   int
	CreatedAt    time.Time
	LastActivity time.Time
}

// ProblemInput is one attempt of a finished session.
type ProblemInput struct {
	Text          string
	CorrectAnswer int
	UserAnswer    *int // nil when the problem timed out
	IsCorrect     bool
	TimeTaken     time.Duration
	AnsweredAt    time.Time
}

// SessionInput is everything SaveSession persists for one session.
type SessionInput struct {
	SessionKey string // unique per session, generated by the engine
	UserID     int64
	Level      int
	Target     int // number of problems the session was planned with
	Problems   []ProblemInput
	Completed  bool // false when the session was stopped early
	StartedAt  time.Time
	FinishedAt time.Time
}

// Correct returns the number of correct attempts.
func (in SessionInput) Correct() int {
	n := 0
	for _, p := range in.Problems {
		if p.IsCorrect {
			n++
		}
	}
	return n
}

// SaveResult reports the effect of SaveSession on the user.
type SaveResult struct {
	SessionID   int64
	ScoreGained int
	Accuracy    float64 // fraction of Target answered correctly, 0..1
	Promoted    bool
	NewLevel    int // current level after the save
	TotalScore  int
}

// Stats summarizes a user's activity.
type Stats struct {
	Level             int
	TotalScore        int
	TotalSessions     int
	CompletedSessions int
	TotalProblems     int
	CorrectAnswers    int
	Accuracy          float64 // percent, 0..100
	AchievementsCount int
}

// LeaderboardEntry is one row of the ranking.
type LeaderboardEntry struct {
	Position int
	UserID   int64
	Name     string
	Score    int
	Level    int
}

// Rank is a user's position in the ranking.
type Rank struct {
	Position   int
	TotalUsers int // users with a positive score
	Score      int
	Level      int
}

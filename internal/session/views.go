package session

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/mentalmath/internal/achievements"
)

// ProblemRef names one issued problem: the leading characters of its
// session's ID and its index in that session. Transports put it on answer
// buttons so a press can only answer the problem it was shown with.
type ProblemRef struct {
	Session string
	Index   int
}

// refSessionLen is how much of the session ID a ProblemRef keeps.
const refSessionLen = 8

// ErrStaleProblem is returned by SubmitAnswerFor when the referenced problem
// is no longer open.
var ErrStaleProblem = errors.New("session: problem is no longer open")

// ProblemView asks the user to solve a problem.
type ProblemView struct {
	Ref         ProblemRef
	Text        string
	Answer      int // for transports that offer answer choices
	Index       int
	Total       int
	SecondsLeft int
	Level       int
	Paused      bool // the countdown is suspended; Text is still the open problem
}

// FeedbackView reports the outcome of one attempt.
type FeedbackView struct {
	Correct       bool
	TimedOut      bool
	UserAnswer    int
	CorrectAnswer int
	ProblemText   string
}

// ResultView summarizes a finished session.
type ResultView struct {
	Level       int
	Correct     int
	Total       int // planned number of problems
	Attempted   int
	Accuracy    float64 // Correct / Total, 0..1
	TotalTime   time.Duration
	ScoreGained int
	TotalScore  int
	Promoted    bool
	NewLevel    int
	NewlyEarned []achievements.Definition

	// Saved is false when the results could not be persisted.
	Saved bool
	// Stopped is true when the user ended the session early.
	Stopped bool
	// Discarded is true when a session was stopped before any answer and
	// nothing was recorded.
	Discarded bool

	// CanAdvance is true when the next level may be offered.
	CanAdvance bool
}

// AverageTime returns the mean time per attempted problem.
func (r ResultView) AverageTime() time.Duration {
	if r.Attempted == 0 {
		return 0
	}
	return r.TotalTime / time.Duration(r.Attempted)
}

// ErrorKind classifies an ErrorView.
type ErrorKind int

const (
	ErrorValidation ErrorKind = iota // bad user input, nothing changed
	ErrorNoSession                   // the user has no live session
	ErrorPaused                      // the session is paused
	ErrorStorage                     // the store failed
	ErrorInternal                    // a bug; the session was closed
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorValidation:
		return "validation"
	case ErrorNoSession:
		return "no_session"
	case ErrorPaused:
		return "paused"
	case ErrorStorage:
		return "storage"
	case ErrorInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ErrorView reports a rejected request.
type ErrorView struct {
	Kind    ErrorKind
	Message string
}

// Renderer delivers engine output to the user. Implementations are called
// with the user's lock held and must not call back into the Engine
// synchronously.
type Renderer interface {
	RenderProblem(ctx context.Context, userID int64, v ProblemView) error
	RenderFeedback(ctx context.Context, userID int64, v FeedbackView) error
	RenderResult(ctx context.Context, userID int64, v ResultView) error
	RenderError(ctx context.Context, userID int64, v ErrorView) error
}

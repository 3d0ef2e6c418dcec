package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/settings"
	"github.com/abhisek/mentalmath/internal/store"
	"github.com/abhisek/mentalmath/internal/timer"
)

// defaultStoreTimeout bounds every store call the engine makes.
const defaultStoreTimeout = 10 * time.Second

// Store is the part of the progress store the engine uses.
type Store interface {
	GetSettings(ctx context.Context, userID int64) (settings.Settings, error)
	GetUser(ctx context.Context, userID int64) (*store.User, error)
	SaveSession(ctx context.Context, in store.SessionInput) (store.SaveResult, error)
}

// Awarder evaluates achievements after a session was saved.
type Awarder interface {
	EvaluateAndAward(ctx context.Context, userID int64) ([]achievements.Definition, error)
}

// Ranking is told about every saved session.
type Ranking interface {
	Record(ctx context.Context, userID int64)
}

// ProblemSource produces problems for a level.
type ProblemSource interface {
	Generate(level int) problemgen.Problem
}

// Config wires an Engine. Store, Generator and Renderer are required.
type Config struct {
	Store     Store
	Awarder   Awarder // optional
	Ranking   Ranking // optional
	Generator ProblemSource
	Renderer  Renderer
	Scheduler timer.Scheduler  // defaults to timer.NewScheduler()
	Table     *Table           // defaults to NewTable()
	Now       func() time.Time // defaults to time.Now
	Logger    *slog.Logger

	// BaseContext is used for work started by the countdown, which has no
	// request context of its own.
	BaseContext  context.Context
	StoreTimeout time.Duration
}

// Engine runs timed sessions for many users concurrently. Every operation
// on a user runs under that user's lock, so an answer and an expiring
// countdown for the same user never interleave.
type Engine struct {
	store        Store
	awarder      Awarder
	ranking      Ranking
	gen          ProblemSource
	render       Renderer
	sched        timer.Scheduler
	table        *Table
	now          func() time.Time
	logger       *slog.Logger
	baseCtx      context.Context
	storeTimeout time.Duration

	tokens atomic.Uint64

	// closed stops new countdown callbacks from starting; inflight counts
	// the ones already running so Shutdown can wait for them.
	lifeMu   sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Generator == nil || cfg.Renderer == nil {
		return nil, fmt.Errorf("session: store, generator and renderer are required")
	}
	e := &Engine{
		store:        cfg.Store,
		awarder:      cfg.Awarder,
		ranking:      cfg.Ranking,
		gen:          cfg.Generator,
		render:       cfg.Renderer,
		sched:        cfg.Scheduler,
		table:        cfg.Table,
		now:          cfg.Now,
		logger:       cfg.Logger,
		baseCtx:      cfg.BaseContext,
		storeTimeout: cfg.StoreTimeout,
	}
	if e.sched == nil {
		e.sched = timer.NewScheduler()
	}
	if e.table == nil {
		e.table = NewTable()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.baseCtx == nil {
		e.baseCtx = context.Background()
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = defaultStoreTimeout
	}
	return e, nil
}

// withUser runs fn under the user's lock. A panic inside fn closes the
// user's session and is reported as an internal error.
func (e *Engine) withUser(ctx context.Context, userID int64, fn func()) {
	l := e.table.lockUser(userID)
	defer e.table.unlockUser(userID, l)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.logger.Error("session engine panic",
			"user_id", userID,
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()),
		)
		if s := e.table.remove(userID); s != nil {
			s.cancelTimer()
		}
		e.renderError(ctx, userID, ErrorInternal, "Something went wrong and the session was closed. Please start again.")
	}()
	fn()
}

// Start begins a session at level, replacing any live session of the user
// without saving it.
func (e *Engine) Start(ctx context.Context, userID int64, level int) {
	e.withUser(ctx, userID, func() {
		if !problemgen.ValidLevel(level) {
			e.renderError(ctx, userID, ErrorValidation,
				fmt.Sprintf("Level must be between 1 and %d.", problemgen.MaxLevel))
			return
		}

		sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		cfg, err := e.store.GetSettings(sctx, userID)
		cancel()
		if err != nil {
			e.logger.Error("load settings failed", "user_id", userID, "error", err)
			e.renderError(ctx, userID, ErrorStorage, "Could not load your settings. Please try again later.")
			return
		}
		cfg = settings.Clamp(cfg)

		if old := e.table.remove(userID); old != nil {
			old.cancelTimer()
			e.logger.Info("session superseded",
				"user_id", userID,
				"session_id", old.ID,
				"answered", len(old.Attempts),
			)
		}

		s := &Session{
			ID:                uuid.NewString(),
			UserID:            userID,
			Level:             level,
			Target:            cfg.ProblemsPerSession,
			SecondsPerProblem: cfg.SecondsPerProblem,
			StartedAt:         e.now(),
		}
		e.table.put(s)
		e.logger.Info("session started",
			"user_id", userID,
			"session_id", s.ID,
			"level", level,
			"target", s.Target,
		)
		e.advance(ctx, s)
	})
}

// advance issues the next problem and arms its countdown.
func (e *Engine) advance(ctx context.Context, s *Session) {
	s.Index++
	p := e.gen.Generate(s.Level)
	s.Current = &p
	s.IssuedAt = e.now()
	e.arm(s, s.limit())

	e.renderProblem(ctx, s, s.SecondsPerProblem)
}

// arm schedules the countdown for the current problem. Tokens are unique
// across all sessions so a countdown left over from a replaced session can
// never match a newer one.
func (e *Engine) arm(s *Session, d time.Duration) {
	s.cancelTimer()
	token := e.tokens.Add(1)
	s.token = token
	userID := s.UserID
	s.timer = e.sched.Schedule(d, func() {
		if !e.enter() {
			return
		}
		defer e.inflight.Done()
		e.timeout(userID, token)
	})
}

// enter registers a running countdown callback. It fails once Shutdown
// has begun.
func (e *Engine) enter() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.closed {
		return false
	}
	e.inflight.Add(1)
	return true
}

// SubmitAnswer scores raw as the answer to the user's open problem.
func (e *Engine) SubmitAnswer(ctx context.Context, userID int64, raw string) {
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok || s.Current == nil {
			e.renderError(ctx, userID, ErrorNoSession, "You have no active session. Choose a level to start.")
			return
		}
		e.answer(ctx, s, raw)
	})
}

// SubmitAnswerFor scores raw as the answer to the problem ref names. When
// that problem is no longer open, because it was answered, timed out or its
// session ended, nothing is rendered and ErrStaleProblem is returned.
func (e *Engine) SubmitAnswerFor(ctx context.Context, userID int64, ref ProblemRef, raw string) error {
	var err error
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok || s.Current == nil || s.ref() != ref {
			err = ErrStaleProblem
			return
		}
		e.answer(ctx, s, raw)
	})
	return err
}

func (e *Engine) answer(ctx context.Context, s *Session, raw string) {
	if s.Paused {
		e.renderError(ctx, s.UserID, ErrorPaused, "The session is paused. Resume it to keep answering.")
		return
	}

	value, err := problemgen.ParseAnswer(raw)
	if err != nil {
		e.renderError(ctx, s.UserID, ErrorValidation, "Please answer with a whole number.")
		return
	}

	s.cancelTimer()
	now := e.now()
	e.record(ctx, s, &value, now.Sub(s.IssuedAt), now)
}

// timeout is run by the countdown. It does nothing unless the countdown is
// still the current one for a live, running session.
func (e *Engine) timeout(userID int64, token uint64) {
	ctx := e.baseCtx
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok || s.Paused || s.Current == nil || s.token != token {
			return
		}
		s.timer = nil
		e.record(ctx, s, nil, s.limit(), e.now())
	})
}

// record appends the attempt for the open problem and moves on.
func (e *Engine) record(ctx context.Context, s *Session, answer *int, taken time.Duration, at time.Time) {
	p := s.Current
	correct := answer != nil && problemgen.CheckAnswer(*answer, *p)

	s.Attempts = append(s.Attempts, Attempt{
		ProblemText:   p.Text,
		UserAnswer:    answer,
		CorrectAnswer: p.Answer,
		IsCorrect:     correct,
		TimeTaken:     taken,
		AnsweredAt:    at,
	})
	if correct {
		s.Correct++
	}
	s.Current = nil

	fb := FeedbackView{
		Correct:       correct,
		TimedOut:      answer == nil,
		CorrectAnswer: p.Answer,
		ProblemText:   p.Text,
	}
	if answer != nil {
		fb.UserAnswer = *answer
	}
	if err := e.render.RenderFeedback(ctx, s.UserID, fb); err != nil {
		e.logger.Warn("render feedback failed", "user_id", s.UserID, "error", err)
	}

	if s.Index >= s.Target {
		e.complete(ctx, s, false)
		return
	}
	e.advance(ctx, s)
}

// complete detaches the session, persists it, awards achievements and
// renders the result.
func (e *Engine) complete(ctx context.Context, s *Session, stopped bool) {
	e.table.remove(s.UserID)
	s.cancelTimer()

	finished := e.now()
	in := store.SessionInput{
		SessionKey: s.ID,
		UserID:     s.UserID,
		Level:      s.Level,
		Target:     s.Target,
		Completed:  !stopped,
		StartedAt:  s.StartedAt,
		FinishedAt: finished,
	}
	for _, a := range s.Attempts {
		in.Problems = append(in.Problems, store.ProblemInput{
			Text:          a.ProblemText,
			CorrectAnswer: a.CorrectAnswer,
			UserAnswer:    a.UserAnswer,
			IsCorrect:     a.IsCorrect,
			TimeTaken:     a.TimeTaken,
			AnsweredAt:    a.AnsweredAt,
		})
	}

	_, accuracy := store.ScoreFor(s.Correct, s.Target)
	view := ResultView{
		Level:      s.Level,
		Correct:    s.Correct,
		Total:      s.Target,
		Attempted:  len(s.Attempts),
		Accuracy:   accuracy,
		TotalTime:  finished.Sub(s.StartedAt),
		NewLevel:   s.Level,
		Stopped:    stopped,
		CanAdvance: store.MeetsPromotionAccuracy(s.Correct, s.Target) && s.Level < problemgen.MaxLevel,
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	res, err := e.store.SaveSession(sctx, in)
	if err != nil {
		e.logger.Error("save session failed, results lost",
			"user_id", s.UserID,
			"session_id", s.ID,
			"level", s.Level,
			"correct", s.Correct,
			"target", s.Target,
			"error", err,
		)
	} else {
		view.Saved = true
		view.ScoreGained = res.ScoreGained
		view.TotalScore = res.TotalScore
		view.Promoted = res.Promoted
		view.NewLevel = res.NewLevel

		if e.awarder != nil {
			earned, err := e.awarder.EvaluateAndAward(sctx, s.UserID)
			if err != nil {
				e.logger.Error("evaluate achievements failed", "user_id", s.UserID, "error", err)
			}
			view.NewlyEarned = earned
		}
		if e.ranking != nil {
			e.ranking.Record(sctx, s.UserID)
		}
	}

	e.table.setLast(s.UserID, lastRun{Level: s.Level, CanAdvance: view.CanAdvance})
	e.logger.Info("session finished",
		"user_id", s.UserID,
		"session_id", s.ID,
		"level", s.Level,
		"correct", s.Correct,
		"target", s.Target,
		"stopped", stopped,
		"saved", view.Saved,
	)
	if err := e.render.RenderResult(ctx, s.UserID, view); err != nil {
		e.logger.Warn("render result failed", "user_id", s.UserID, "error", err)
	}
}

// Stop ends the user's session early and saves the answers given so far.
// A session without a single answer is dropped without saving.
func (e *Engine) Stop(ctx context.Context, userID int64) {
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok {
			e.renderError(ctx, userID, ErrorNoSession, "You have no active session.")
			return
		}
		if len(s.Attempts) == 0 {
			e.table.remove(userID)
			s.cancelTimer()
			e.logger.Info("session discarded", "user_id", userID, "session_id", s.ID)
			view := ResultView{Level: s.Level, Total: s.Target, NewLevel: s.Level, Stopped: true, Discarded: true}
			if err := e.render.RenderResult(ctx, userID, view); err != nil {
				e.logger.Warn("render result failed", "user_id", userID, "error", err)
			}
			return
		}
		e.complete(ctx, s, true)
	})
}

// Pause suspends the countdown of the open problem.
func (e *Engine) Pause(ctx context.Context, userID int64) {
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok || s.Current == nil {
			e.renderError(ctx, userID, ErrorNoSession, "You have no active session.")
			return
		}
		if s.Paused {
			e.renderError(ctx, userID, ErrorPaused, "The session is already paused.")
			return
		}
		e.pause(ctx, s)
	})
}

// Resume restarts the countdown with the time that was left.
func (e *Engine) Resume(ctx context.Context, userID int64) {
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok || s.Current == nil {
			e.renderError(ctx, userID, ErrorNoSession, "You have no active session.")
			return
		}
		if !s.Paused {
			e.renderError(ctx, userID, ErrorValidation, "The session is not paused.")
			return
		}
		e.resume(ctx, s)
	})
}

// TogglePause pauses a running session and resumes a paused one.
func (e *Engine) TogglePause(ctx context.Context, userID int64) {
	e.withUser(ctx, userID, func() {
		s, ok := e.table.get(userID)
		if !ok || s.Current == nil {
			e.renderError(ctx, userID, ErrorNoSession, "You have no active session.")
			return
		}
		if s.Paused {
			e.resume(ctx, s)
		} else {
			e.pause(ctx, s)
		}
	})
}

func (e *Engine) pause(ctx context.Context, s *Session) {
	s.cancelTimer()
	now := e.now()
	s.Remaining = max(s.limit()-now.Sub(s.IssuedAt), 0)
	s.Paused = true
	s.PausedAt = now
	e.logger.Info("session paused", "user_id", s.UserID, "session_id", s.ID, "remaining", s.Remaining)
	e.renderProblem(ctx, s, secondsCeil(s.Remaining))
}

func (e *Engine) resume(ctx context.Context, s *Session) {
	now := e.now()
	// Solving time excludes the pause.
	s.IssuedAt = s.IssuedAt.Add(now.Sub(s.PausedAt))
	s.Paused = false
	s.PausedAt = time.Time{}
	e.arm(s, s.Remaining)
	e.logger.Info("session resumed", "user_id", s.UserID, "session_id", s.ID, "remaining", s.Remaining)
	e.renderProblem(ctx, s, secondsCeil(s.Remaining))
}

// Repeat starts the level of the user's last finished session again.
func (e *Engine) Repeat(ctx context.Context, userID int64) {
	last, ok := e.table.lastRun(userID)
	if !ok {
		e.withUser(ctx, userID, func() {
			e.renderError(ctx, userID, ErrorValidation, "There is no finished session to repeat.")
		})
		return
	}
	e.Start(ctx, userID, last.Level)
}

// Advance starts the level after the user's last finished session. The
// level must already be unlocked in the store at the time of the call.
func (e *Engine) Advance(ctx context.Context, userID int64) {
	last, ok := e.table.lastRun(userID)
	next := last.Level + 1

	allowed := false
	if ok && last.CanAdvance && next <= problemgen.MaxLevel {
		sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		u, err := e.store.GetUser(sctx, userID)
		cancel()
		if err != nil {
			e.logger.Error("load user failed", "user_id", userID, "error", err)
			e.withUser(ctx, userID, func() {
				e.renderError(ctx, userID, ErrorStorage, "Could not load your progress. Please try again later.")
			})
			return
		}
		allowed = next <= u.CurrentLevel
	}

	if !allowed {
		e.withUser(ctx, userID, func() {
			e.renderError(ctx, userID, ErrorValidation, "The next level is not unlocked yet.")
		})
		return
	}
	e.Start(ctx, userID, next)
}

// Active returns a copy of the user's live session.
func (e *Engine) Active(userID int64) (Snapshot, bool) {
	l := e.table.lockUser(userID)
	defer e.table.unlockUser(userID, l)
	s, ok := e.table.get(userID)
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// IfIdle runs fn under the user's lock when the user has no live session,
// and reports whether it ran. No session can start or finish while fn runs.
func (e *Engine) IfIdle(userID int64, fn func()) bool {
	l := e.table.lockUser(userID)
	defer e.table.unlockUser(userID, l)
	if _, ok := e.table.get(userID); ok {
		return false
	}
	fn()
	return true
}

// Shutdown cancels every live countdown and waits for countdowns that
// already fired to finish, including the save of a session they completed.
// Live sessions are dropped without saving.
func (e *Engine) Shutdown() {
	e.lifeMu.Lock()
	e.closed = true
	e.lifeMu.Unlock()

	e.table.mu.Lock()
	sessions := e.table.sessions
	e.table.sessions = make(map[int64]*Session)
	e.table.mu.Unlock()

	for _, s := range sessions {
		l := e.table.lockUser(s.UserID)
		s.cancelTimer()
		e.table.unlockUser(s.UserID, l)
	}
	e.inflight.Wait()
	if len(sessions) > 0 {
		e.logger.Info("engine shut down", "dropped_sessions", len(sessions))
	}
}

func (e *Engine) renderProblem(ctx context.Context, s *Session, secondsLeft int) {
	v := ProblemView{
		Ref:         s.ref(),
		Text:        s.Current.Text,
		Answer:      s.Current.Answer,
		Index:       s.Index,
		Total:       s.Target,
		SecondsLeft: secondsLeft,
		Level:       s.Level,
		Paused:      s.Paused,
	}
	if err := e.render.RenderProblem(ctx, s.UserID, v); err != nil {
		e.logger.Warn("render problem failed", "user_id", s.UserID, "error", err)
	}
}

func (e *Engine) renderError(ctx context.Context, userID int64, kind ErrorKind, msg string) {
	if err := e.render.RenderError(ctx, userID, ErrorView{Kind: kind, Message: msg}); err != nil {
		e.logger.Warn("render error failed", "user_id", userID, "error", err)
	}
}

func secondsCeil(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// Package bot connects the session engine and the progress store to a
// Telegram chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/settings"
	"github.com/abhisek/mentalmath/internal/store"
	"github.com/abhisek/mentalmath/internal/telegram"
)

// Engine is the part of the session engine the bot drives.
type Engine interface {
	Start(ctx context.Context, userID int64, level int)
	SubmitAnswer(ctx context.Context, userID int64, raw string)
	SubmitAnswerFor(ctx context.Context, userID int64, ref session.ProblemRef, raw string) error
	Stop(ctx context.Context, userID int64)
	TogglePause(ctx context.Context, userID int64)
	Repeat(ctx context.Context, userID int64)
	Advance(ctx context.Context, userID int64)
	Active(userID int64) (session.Snapshot, bool)
	IfIdle(userID int64, fn func()) bool
}

// Store is the part of the progress store the bot reads and writes directly.
type Store interface {
	GetOrCreateUser(ctx context.Context, p store.Profile) (*store.User, error)
	GetStats(ctx context.Context, userID int64) (store.Stats, error)
	EarnedAchievements(ctx context.Context, userID int64) ([]achievements.Earned, error)
	Catalog(ctx context.Context) ([]achievements.Definition, error)
	GetSettings(ctx context.Context, userID int64) (settings.Settings, error)
	UpdateSetting(ctx context.Context, userID int64, key settings.Key, value int) (settings.Settings, error)
	ResetProgress(ctx context.Context, userID int64) error
}

// Ranking serves the leaderboard.
type Ranking interface {
	Top(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
	Rank(ctx context.Context, userID int64) (store.Rank, error)
	Record(ctx context.Context, userID int64)
}

// Poller delivers updates until ctx is done.
type Poller interface {
	Poll(ctx context.Context, timeoutSecs int, errorBackoff time.Duration, handle telegram.Handler) error
}

// Config tunes the update loop.
type Config struct {
	PollTimeout      int // seconds
	ErrorBackoff     time.Duration
	MaxConcurrent    int
	LeaderboardLimit int
	Logger           *slog.Logger
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		PollTimeout:      30,
		ErrorBackoff:     5 * time.Second,
		MaxConcurrent:    64,
		LeaderboardLimit: store.DefaultLeaderboardLimit,
	}
}

// Bot routes updates to the engine and the store.
type Bot struct {
	cfg     Config
	poller  Poller
	send    Sender
	engine  Engine
	store   Store
	ranking Ranking
	logger  *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	// pending holds the setting a user was asked to type a value for.
	pendingMu sync.Mutex
	pending   map[int64]settings.Key
}

// New creates a Bot.
func New(cfg Config, poller Poller, send Sender, engine Engine, st Store, ranking Ranking) *Bot {
	def := DefaultConfig()
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = def.LeaderboardLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bot{
		cfg:     cfg,
		poller:  poller,
		send:    send,
		engine:  engine,
		store:   st,
		ranking: ranking,
		logger:  cfg.Logger,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		pending: make(map[int64]settings.Key),
	}
}

// Run polls for updates until ctx is cancelled, handling each on its own
// goroutine, and waits for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context) error {
	err := b.poller.Poll(ctx, b.cfg.PollTimeout, b.cfg.ErrorBackoff, b.dispatch)
	b.wg.Wait()
	return err
}

func (b *Bot) dispatch(ctx context.Context, u telegram.Update) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.sem }()
		b.HandleUpdate(ctx, u)
	}()
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panic",
				"update_id", u.UpdateID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	}
}

func isPrivate(msg *telegram.Message) bool {
	return msg != nil && msg.Chat != nil && msg.Chat.Type == "private"
}

// register keeps the user's row and names current. Every inbound event
// passes through it, so the engine never saves a session for an unknown user.
func (b *Bot) register(ctx context.Context, from *telegram.User) (*store.User, error) {
	u, err := b.store.GetOrCreateUser(ctx, store.Profile{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		b.logger.Error("register user failed", "user_id", from.ID, "error", err)
		b.reply(ctx, from.ID, "😔 Something went wrong. Please try again later.", nil)
		return nil, err
	}
	return u, nil
}

func (b *Bot) reply(ctx context.Context, chatID int64, html string, kb *telegram.InlineKeyboardMarkup) {
	if _, err := b.send.SendHTML(ctx, chatID, html, kb); err != nil {
		b.logger.Warn("send message failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) setPending(userID int64, k settings.Key) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pending[userID] = k
}

func (b *Bot) takePending(userID int64) (settings.Key, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	k, ok := b.pending[userID]
	delete(b.pending, userID)
	return k, ok
}

func (b *Bot) clearPending(userID int64) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	delete(b.pending, userID)
}

// storageFailed logs err and tells the user.
func (b *Bot) storageFailed(ctx context.Context, userID int64, what string, err error) {
	b.logger.Error(what+" failed", "user_id", userID, "error", err)
	b.reply(ctx, userID, "😔 Could not load your data. Please try again later.", nil)
}

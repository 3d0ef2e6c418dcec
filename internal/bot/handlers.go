package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/settings"
	"github.com/abhisek/mentalmath/internal/store"
	"github.com/abhisek/mentalmath/internal/telegram"
)

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot || !isPrivate(msg) {
		return
	}
	user, err := b.register(ctx, msg.From)
	if err != nil {
		return
	}
	userID := user.ID

	cmd, args := telegram.Command(msg)
	if cmd != "" {
		b.clearPending(userID)
	}
	switch cmd {
	case "start":
		b.reply(ctx, userID, welcomeText(user.DisplayName()), menuKeyboard())
	case "help":
		b.reply(ctx, userID, helpText(), nil)
	case "learn":
		if args == "" {
			b.showLevels(ctx, user)
			return
		}
		level, err := strconv.Atoi(args)
		if err != nil {
			b.reply(ctx, userID, fmt.Sprintf("⚠️ Level must be a number from 1 to %d.", problemgen.MaxLevel), nil)
			return
		}
		b.startLevel(ctx, user, level)
	case "stats":
		b.showStats(ctx, userID)
	case "achievements":
		b.showAchievements(ctx, userID)
	case "leaderboard", "top":
		b.showLeaderboard(ctx, userID)
	case "settings":
		b.showSettings(ctx, userID)
	case "set":
		key, value, _ := strings.Cut(args, " ")
		b.updateSetting(ctx, userID, key, value)
	case "stop":
		b.engine.Stop(ctx, userID)
	case "pause":
		b.engine.TogglePause(ctx, userID)
	case "reset":
		b.confirmReset(ctx, userID)
	case "":
		b.handleText(ctx, userID, msg.Text)
	default:
		b.reply(ctx, userID, "🤔 Unknown command. Send /help to see what I can do.", nil)
	}
}

// handleText treats free text as an answer while a session runs, and as the
// value of a setting the user was asked for otherwise.
func (b *Bot) handleText(ctx context.Context, userID int64, text string) {
	if _, live := b.engine.Active(userID); live {
		b.clearPending(userID)
		b.engine.SubmitAnswer(ctx, userID, text)
		return
	}
	if key, ok := b.takePending(userID); ok {
		b.updateSetting(ctx, userID, string(key), text)
		return
	}
	b.reply(ctx, userID, "ℹ️ You have no active session. Send /learn to start.", nil)
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if q.From == nil || q.From.IsBot {
		return
	}
	toast := ""
	defer func() {
		if err := b.send.AnswerCallbackQuery(ctx, q.ID, toast); err != nil {
			b.logger.Warn("answer callback failed", "query_id", q.ID, "error", err)
		}
	}()

	user, err := b.register(ctx, q.From)
	if err != nil {
		return
	}
	userID := user.ID
	data := q.Data

	switch {
	case data == cbLevelLocked:
		toast = "🔒 This level is locked. Pass the previous levels to unlock it."
	case strings.HasPrefix(data, cbLevelPrefix):
		level, err := strconv.Atoi(strings.TrimPrefix(data, cbLevelPrefix))
		if err != nil {
			toast = "Unknown level."
			return
		}
		b.startLevel(ctx, user, level)
	case strings.HasPrefix(data, cbAnswerPrefix):
		ref, value, ok := parseAnswerData(data)
		if !ok {
			toast = "This problem is already closed."
			return
		}
		err := b.engine.SubmitAnswerFor(ctx, userID, ref, value)
		if errors.Is(err, session.ErrStaleProblem) {
			toast = "This problem is already closed."
		}
	case strings.HasPrefix(data, cbSetPrefix):
		key, err := settings.ParseKey(strings.TrimPrefix(data, cbSetPrefix))
		if err != nil {
			toast = "Unknown setting."
			return
		}
		b.promptSetting(ctx, userID, key)
	default:
		b.clearPending(userID)
		toast = b.handleAction(ctx, user, data)
	}
}

// handleAction runs the fixed callbacks and returns a toast, if any.
func (b *Bot) handleAction(ctx context.Context, user *store.User, data string) string {
	userID := user.ID
	switch data {
	case cbStop:
		b.engine.Stop(ctx, userID)
	case cbPause:
		b.engine.TogglePause(ctx, userID)
	case cbRepeat:
		b.engine.Repeat(ctx, userID)
	case cbNext:
		b.engine.Advance(ctx, userID)
	case cbMenu:
		b.reply(ctx, userID, "🏠 <b>Main menu</b>\n\nChoose an action:", menuKeyboard())
	case cbLearn:
		b.showLevels(ctx, user)
	case cbStats:
		b.showStats(ctx, userID)
	case cbLeaderboard:
		b.showLeaderboard(ctx, userID)
	case cbAchievements:
		b.showAchievements(ctx, userID)
	case cbSettings:
		b.showSettings(ctx, userID)
	case cbReset:
		b.confirmReset(ctx, userID)
	case cbResetConfirm:
		b.resetProgress(ctx, userID)
	case cbCancel:
		return "Cancelled."
	default:
		b.logger.Debug("unknown callback", "user_id", userID, "data", data)
		return "This button is no longer supported."
	}
	return ""
}

func (b *Bot) showLevels(ctx context.Context, user *store.User) {
	b.reply(ctx, user.ID, levelMenuText(), levelKeyboard(user.CurrentLevel))
}

// startLevel starts a session at level if the user has unlocked it.
func (b *Bot) startLevel(ctx context.Context, user *store.User, level int) {
	if problemgen.ValidLevel(level) && level > user.CurrentLevel {
		b.reply(ctx, user.ID, fmt.Sprintf("🔒 Level %d is locked. You can play levels 1 to %d.", level, user.CurrentLevel), nil)
		return
	}
	// The engine validates the range itself.
	b.engine.Start(ctx, user.ID, level)
}

func (b *Bot) showStats(ctx context.Context, userID int64) {
	stats, err := b.store.GetStats(ctx, userID)
	if err != nil {
		b.storageFailed(ctx, userID, "load stats", err)
		return
	}
	b.reply(ctx, userID, statsText(stats), nil)
}

func (b *Bot) showAchievements(ctx context.Context, userID int64) {
	earned, err := b.store.EarnedAchievements(ctx, userID)
	if err != nil {
		b.storageFailed(ctx, userID, "load achievements", err)
		return
	}
	catalog, err := b.store.Catalog(ctx)
	if err != nil {
		b.storageFailed(ctx, userID, "load catalog", err)
		return
	}
	b.reply(ctx, userID, achievementsText(earned, catalog), nil)
}

func (b *Bot) showLeaderboard(ctx context.Context, userID int64) {
	entries, err := b.ranking.Top(ctx, b.cfg.LeaderboardLimit)
	if err != nil {
		b.storageFailed(ctx, userID, "load leaderboard", err)
		return
	}
	var rank *store.Rank
	if r, err := b.ranking.Rank(ctx, userID); err != nil {
		b.logger.Warn("load rank failed", "user_id", userID, "error", err)
	} else {
		rank = &r
	}
	b.reply(ctx, userID, leaderboardText(entries, rank), nil)
}

func (b *Bot) showSettings(ctx context.Context, userID int64) {
	s, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.storageFailed(ctx, userID, "load settings", err)
		return
	}
	b.reply(ctx, userID, settingsText(s), settingsKeyboard())
}

func (b *Bot) promptSetting(ctx context.Context, userID int64, key settings.Key) {
	s, err := b.store.GetSettings(ctx, userID)
	if err != nil {
		b.storageFailed(ctx, userID, "load settings", err)
		return
	}
	b.setPending(userID, key)
	b.reply(ctx, userID, settingPromptText(key, s.Value(key)), nil)
}

// updateSetting validates and stores a setting. Invalid input changes
// nothing. A running session keeps the settings it started with.
func (b *Bot) updateSetting(ctx context.Context, userID int64, rawKey, rawValue string) {
	key, err := settings.ParseKey(rawKey)
	if err != nil {
		names := make([]string, 0, 2)
		for _, k := range settings.AllKeys() {
			names = append(names, "<code>"+string(k)+"</code>")
		}
		b.reply(ctx, userID, "⚠️ Usage: /set <i>key value</i>\nKeys: "+strings.Join(names, ", "), nil)
		return
	}
	value, err := strconv.Atoi(strings.TrimSpace(rawValue))
	if err != nil {
		lo, hi := key.Bounds()
		b.reply(ctx, userID, fmt.Sprintf("⚠️ %s must be a whole number from %d to %d.", key.DisplayName(), lo, hi), nil)
		return
	}

	s, err := b.store.UpdateSetting(ctx, userID, key, value)
	var rangeErr *settings.RangeError
	switch {
	case errors.As(err, &rangeErr):
		b.reply(ctx, userID, fmt.Sprintf("⚠️ %s must be between %d and %d.", key.DisplayName(), rangeErr.Min, rangeErr.Max), nil)
	case err != nil:
		b.logger.Error("update setting failed", "user_id", userID, "key", string(key), "error", err)
		b.reply(ctx, userID, "😔 Could not save the setting. Please try again later.", nil)
	default:
		b.logger.Info("setting updated", "user_id", userID, "key", string(key), "value", value)
		b.reply(ctx, userID, fmt.Sprintf("✅ %s set to <b>%d</b>.", key.DisplayName(), s.Value(key)), nil)
	}
}

func (b *Bot) confirmReset(ctx context.Context, userID int64) {
	b.reply(ctx, userID, "⚠️ <b>Reset progress?</b>\n\nYour level, score, sessions and achievements will be deleted. Settings are kept.", confirmResetKeyboard())
}

// resetProgress deletes the user's progress. The reset runs under the
// engine's user lock, so no session can start or be saved meanwhile.
func (b *Bot) resetProgress(ctx context.Context, userID int64) {
	var err error
	idle := b.engine.IfIdle(userID, func() {
		err = b.store.ResetProgress(ctx, userID)
	})
	if !idle {
		b.reply(ctx, userID, "ℹ️ Finish or stop your running session first.", nil)
		return
	}
	if err != nil {
		b.logger.Error("reset progress failed", "user_id", userID, "error", err)
		b.reply(ctx, userID, "😔 Could not reset your progress. Please try again later.", nil)
		return
	}
	b.ranking.Record(ctx, userID)
	b.logger.Info("progress reset", "user_id", userID)
	b.reply(ctx, userID, "✅ Your progress was reset. Send /learn to start from level 1.", nil)
}

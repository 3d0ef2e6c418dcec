package bot

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/settings"
	"github.com/abhisek/mentalmath/internal/store"
)

const progressBarWidth = 10

// progressBar renders "[████░░░░░░] 4/10".
func progressBar(current, total int) string {
	if total <= 0 {
		total = 1
	}
	filled := min(max(current*progressBarWidth/total, 0), progressBarWidth)
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("█", filled), strings.Repeat("░", progressBarWidth-filled), current, total)
}

// accuracyEmoji grades a percentage.
func accuracyEmoji(percent float64) string {
	switch {
	case percent >= 95:
		return "🌟"
	case percent >= 85:
		return "⭐"
	case percent >= 75:
		return "🎯"
	case percent >= 60:
		return "📈"
	default:
		return "💪"
	}
}

func levelEmoji(level int) string {
	switch {
	case level >= 10:
		return "👑"
	case level >= 8:
		return "💎"
	case level >= 6:
		return "🏆"
	case level >= 4:
		return "🥇"
	case level >= 2:
		return "🥈"
	default:
		return "🥉"
	}
}

func resultMessage(percent float64) string {
	switch {
	case percent >= 90:
		return "Outstanding! You are a real math genius! 🌟"
	case percent >= 80:
		return "Very good! Keep it up! ⭐"
	case percent >= 70:
		return "Good result, there is room to grow! 📈"
	case percent >= 50:
		return "Not bad! More practice will get you there! 💪"
	default:
		return "Don't give up! Every master was once a beginner! 🎯"
	}
}

// formatDuration renders 45s, 2m 5s or 1h 3m.
func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, secs%3600/60)
	}
}

func roundTenth(f float64) float64 {
	return math.Round(f*10) / 10
}

func welcomeText(name string) string {
	return fmt.Sprintf(`🧮 <b>Welcome to Mental Math!</b>

Hi, <b>%s</b>! 👋

I will help you train fast arithmetic in your head.

🎯 <b>%d levels</b> from simple sums to multi-step challenges
⚡ <b>Timed problems</b> to build speed
🏆 <b>Achievements</b> for your milestones
📊 <b>Statistics</b> to follow your progress

<i>Send /learn to start training.</i> 💪`, html.EscapeString(name), problemgen.MaxLevel)
}

func helpText() string {
	return `❓ <b>Help</b>

/learn - choose a level and solve problems
/learn <i>N</i> - start level N right away
/stats - your progress
/achievements - your badges
/leaderboard - the overall ranking
/settings - time per problem and session length
/set <i>key value</i> - change a setting
/pause - pause or resume the running session
/stop - finish the running session early
/reset - start over from level 1

<b>Levels</b>
🟢 1-2: simple addition and subtraction
🟡 3-5: bigger numbers and three terms
🟠 6-8: mixed operations and multiplication
🔴 9-10: expert challenges

While a session runs, tap an answer or just type the number.`
}

func levelMenuText() string {
	return "📚 <b>Choose a level:</b>\n\n🟢 Easy • 🟡 Medium • 🟠 Hard • 🔴 Expert\n\n<i>Pick an unlocked level or replay one you passed.</i>"
}

func problemText(v session.ProblemView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧮 <b>Problem %d/%d</b> · %s level %d\n\n", v.Index, v.Total, problemgen.DifficultyIcon(v.Level), v.Level)
	fmt.Fprintf(&b, "%s\n\n", progressBar(v.Index, v.Total))
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(v.Text))
	if v.Paused {
		fmt.Fprintf(&b, "⏸ <b>Paused</b> with %ds left. Tap resume to continue.", v.SecondsLeft)
	} else {
		fmt.Fprintf(&b, "⏱ Time left: <b>%ds</b>\n\n<i>Pick an answer or type it:</i>", v.SecondsLeft)
	}
	return b.String()
}

func feedbackText(v session.FeedbackView) string {
	switch {
	case v.Correct:
		return "✅ <b>Correct!</b>"
	case v.TimedOut:
		return fmt.Sprintf("⏰ <b>Time is up!</b> The answer was <b>%d</b>.", v.CorrectAnswer)
	default:
		return fmt.Sprintf("❌ <b>Wrong.</b> You said %d, the answer was <b>%d</b>.", v.UserAnswer, v.CorrectAnswer)
	}
}

func resultText(v session.ResultView) string {
	if v.Discarded {
		return "⏹ <b>Session stopped.</b>\n\nNothing was answered, so nothing was saved."
	}

	percent := roundTenth(v.Accuracy * 100)
	headline := "💪"
	switch {
	case percent >= 80:
		headline = "🎉"
	case percent >= 60:
		headline = "👍"
	}
	title := "Session complete!"
	if v.Stopped {
		title = "Session stopped."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", headline, title)
	fmt.Fprintf(&b, "📚 <b>Level:</b> %d\n", v.Level)
	fmt.Fprintf(&b, "🎯 <b>Result:</b> %d/%d correct\n", v.Correct, v.Total)
	fmt.Fprintf(&b, "%s <b>Accuracy:</b> %.1f%%\n", accuracyEmoji(percent), percent)
	fmt.Fprintf(&b, "⏱ <b>Average time:</b> %.1fs per problem\n", v.AverageTime().Seconds())
	fmt.Fprintf(&b, "🕐 <b>Total time:</b> %s\n", formatDuration(v.TotalTime))

	if !v.Saved {
		b.WriteString("\n⚠️ <b>Your results could not be saved.</b> Please try again later.\n")
	} else {
		fmt.Fprintf(&b, "💎 <b>Points:</b> +%d (total %d)\n", v.ScoreGained, v.TotalScore)
		if v.Promoted {
			fmt.Fprintf(&b, "\n🚀 <b>Level %d unlocked!</b>\n", v.NewLevel)
		}
	}
	for _, a := range v.NewlyEarned {
		fmt.Fprintf(&b, "\n🎉 <b>New achievement:</b> %s %s\n<i>%s</i>\n",
			a.Icon, html.EscapeString(a.Name), html.EscapeString(a.Description))
	}
	fmt.Fprintf(&b, "\n<i>%s</i>", resultMessage(percent))
	return b.String()
}

func errorText(v session.ErrorView) string {
	icon := "⚠️"
	switch v.Kind {
	case session.ErrorPaused:
		icon = "⏸"
	case session.ErrorNoSession:
		icon = "ℹ️"
	case session.ErrorInternal, session.ErrorStorage:
		icon = "😔"
	}
	return icon + " " + html.EscapeString(v.Message)
}

func statsText(s store.Stats) string {
	return fmt.Sprintf(`📊 <b>Your statistics</b>

%s <b>Current level:</b> %d
🎯 <b>Total score:</b> %d points

📈 <b>Training:</b>
├ 🎮 Sessions: %d
├ ✅ Completed: %d
├ 🧮 Problems solved: %d
└ 🎯 Correct answers: %d

%s <b>Accuracy:</b> %.1f%%
🏆 <b>Achievements:</b> %d

<i>Keep practicing!</i> 💪`,
		levelEmoji(s.Level), s.Level, s.TotalScore,
		s.TotalSessions, s.CompletedSessions, s.TotalProblems, s.CorrectAnswers,
		accuracyEmoji(s.Accuracy), s.Accuracy, s.AchievementsCount)
}

// achievementsText lists earned badges, then the ones still locked.
func achievementsText(earned []achievements.Earned, catalog []achievements.Definition) string {
	var b strings.Builder
	b.WriteString("🏆 <b>Your achievements</b>\n\n")
	if len(earned) == 0 {
		b.WriteString("You have no achievements yet.\nSolve a few problems to earn your first badge! 💪\n")
	}
	have := make(map[int64]bool, len(earned))
	for _, e := range earned {
		have[e.ID] = true
		fmt.Fprintf(&b, "%s <b>%s</b> (%s)\n<i>%s</i>\n\n",
			e.Icon, html.EscapeString(e.Name), e.EarnedAt.Format("02.01.2006"), html.EscapeString(e.Description))
	}

	var locked []string
	for _, d := range catalog {
		if !have[d.ID] {
			locked = append(locked, fmt.Sprintf("🔒 %s: <i>%s</i>", html.EscapeString(d.Name), html.EscapeString(d.Description)))
		}
	}
	if len(locked) > 0 {
		b.WriteString("\n<b>Still to earn:</b>\n")
		b.WriteString(strings.Join(locked, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func leaderboardText(entries []store.LeaderboardEntry, rank *store.Rank) string {
	if len(entries) == 0 {
		return "🏆 <b>Leaderboard</b>\n\nThe leaderboard is empty.\nSolve problems to get into the top! 💪"
	}

	var b strings.Builder
	b.WriteString("🏆 <b>Leaderboard</b>\n\n")
	for _, e := range entries {
		pos := fmt.Sprintf("%d.", e.Position)
		switch e.Position {
		case 1:
			pos = "🥇"
		case 2:
			pos = "🥈"
		case 3:
			pos = "🥉"
		}
		fmt.Fprintf(&b, "%s <b>%s</b>\n    💎 %d points %s lvl %d\n\n",
			pos, html.EscapeString(e.Name), e.Score, levelEmoji(e.Level), e.Level)
	}

	if rank != nil && rank.Score > 0 {
		b.WriteString(strings.Repeat("─", 25) + "\n")
		fmt.Fprintf(&b, "📍 <b>Your position:</b> %d/%d\n", rank.Position, rank.TotalUsers)
		fmt.Fprintf(&b, "💎 <b>Your points:</b> %d\n", rank.Score)
		fmt.Fprintf(&b, "%s <b>Your level:</b> %d", levelEmoji(rank.Level), rank.Level)
	}
	return strings.TrimRight(b.String(), "\n")
}

func settingsText(s settings.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Settings</b>\n\n")
	for _, k := range settings.AllKeys() {
		lo, hi := k.Bounds()
		fmt.Fprintf(&b, "• %s: <b>%d</b> (%d-%d)\n  <code>/set %s %d</code>\n", k.DisplayName(), s.Value(k), lo, hi, k, s.Value(k))
	}
	b.WriteString("\n<i>Tap a setting to change it, or use /set.</i>")
	return b.String()
}

func settingPromptText(k settings.Key, current int) string {
	lo, hi := k.Bounds()
	return fmt.Sprintf("⚙️ <b>%s</b>\n\nCurrent value: <b>%d</b>\n\nSend a whole number from %d to %d.",
		k.DisplayName(), current, lo, hi)
}

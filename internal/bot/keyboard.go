package bot

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/settings"
	"github.com/abhisek/mentalmath/internal/telegram"
)

// Callback data values.
const (
	cbLevelLocked  = "level_locked"
	cbLevelPrefix  = "level_"
	cbAnswerPrefix = "answer_"
	cbSetPrefix    = "setting_"
	cbStop         = "stop"
	cbPause        = "pause"
	cbRepeat       = "repeat"
	cbNext         = "next"
	cbMenu         = "menu"
	cbLearn        = "learn"
	cbStats        = "stats"
	cbLeaderboard  = "leaderboard"
	cbAchievements = "achievements"
	cbSettings     = "settings"
	cbReset        = "reset"
	cbResetConfirm = "reset_confirm"
	cbCancel       = "cancel"
)

const optionCount = 4

// answerOptions returns the correct answer and three distinct non-negative
// distractors within 10 of it, shuffled. The result depends only on the
// problem, so a re-rendered problem shows the same buttons.
func answerOptions(text string, answer int) []int {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, uint64(answer)))

	opts := []int{answer}
	seen := map[int]bool{answer: true}
	for len(opts) < optionCount {
		n := answer + rng.IntN(21) - 10
		if n < 0 || seen[n] {
			continue
		}
		seen[n] = true
		opts = append(opts, n)
	}
	rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	return opts
}

// answerData encodes an answer button as answer_<session>_<index>_<value>.
// The problem reference keeps a tap on an old message from answering any
// other problem.
func answerData(ref session.ProblemRef, value int) string {
	return fmt.Sprintf("%s%s_%d_%d", cbAnswerPrefix, ref.Session, ref.Index, value)
}

func parseAnswerData(data string) (ref session.ProblemRef, value string, ok bool) {
	rest, found := strings.CutPrefix(data, cbAnswerPrefix)
	if !found {
		return ref, "", false
	}
	parts := strings.SplitN(rest, "_", 3)
	if len(parts) != 3 || parts[0] == "" {
		return ref, "", false
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return ref, "", false
	}
	return session.ProblemRef{Session: parts[0], Index: index}, parts[2], true
}

func problemKeyboard(ref session.ProblemRef, options []int) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	for i := 0; i < len(options); i += 2 {
		var row []telegram.InlineKeyboardButton
		for _, o := range options[i:min(i+2, len(options))] {
			row = append(row, telegram.Button(strconv.Itoa(o), answerData(ref, o)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, []telegram.InlineKeyboardButton{
		telegram.Button("⏸ Pause", cbPause),
		telegram.Button("⏹ Stop", cbStop),
	})
	return telegram.Keyboard(rows...)
}

func pausedKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard([]telegram.InlineKeyboardButton{
		telegram.Button("▶️ Resume", cbPause),
		telegram.Button("⏹ Stop", cbStop),
	})
}

// levelKeyboard shows every level, three per row. Levels above current are
// locked.
func levelKeyboard(current int) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	var row []telegram.InlineKeyboardButton
	for level := 1; level <= problemgen.MaxLevel; level++ {
		var btn telegram.InlineKeyboardButton
		switch {
		case level == current:
			btn = telegram.Button(fmt.Sprintf("⭐ Level %d", level), cbLevelPrefix+strconv.Itoa(level))
		case level < current:
			btn = telegram.Button(fmt.Sprintf("📚 Level %d", level), cbLevelPrefix+strconv.Itoa(level))
		default:
			btn = telegram.Button(fmt.Sprintf("🔒 Level %d", level), cbLevelLocked)
		}
		row = append(row, btn)
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []telegram.InlineKeyboardButton{telegram.Button("🔙 Back", cbMenu)})
	return telegram.Keyboard(rows...)
}

func resultKeyboard(canAdvance bool) *telegram.InlineKeyboardMarkup {
	first := []telegram.InlineKeyboardButton{telegram.Button("🔄 Repeat level", cbRepeat)}
	if canAdvance {
		first = append(first, telegram.Button("➡️ Next level", cbNext))
	}
	return telegram.Keyboard(
		first,
		[]telegram.InlineKeyboardButton{
			telegram.Button("📊 Statistics", cbStats),
			telegram.Button("🏅 Leaderboard", cbLeaderboard),
		},
		[]telegram.InlineKeyboardButton{telegram.Button("🏠 Menu", cbMenu)},
	)
}

func menuKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard(
		[]telegram.InlineKeyboardButton{
			telegram.Button("🧮 Start training", cbLearn),
			telegram.Button("📊 Statistics", cbStats),
		},
		[]telegram.InlineKeyboardButton{
			telegram.Button("🏆 Achievements", cbAchievements),
			telegram.Button("🏅 Leaderboard", cbLeaderboard),
		},
		[]telegram.InlineKeyboardButton{telegram.Button("⚙️ Settings", cbSettings)},
	)
}

func settingsKeyboard() *telegram.InlineKeyboardMarkup {
	var row []telegram.InlineKeyboardButton
	for _, k := range settings.AllKeys() {
		row = append(row, telegram.Button(k.DisplayName(), cbSetPrefix+string(k)))
	}
	return telegram.Keyboard(
		row,
		[]telegram.InlineKeyboardButton{
			telegram.Button("🔄 Reset progress", cbReset),
			telegram.Button("🔙 Back", cbMenu),
		},
	)
}

func confirmResetKeyboard() *telegram.InlineKeyboardMarkup {
	return telegram.Keyboard([]telegram.InlineKeyboardButton{
		telegram.Button("✅ Yes, reset", cbResetConfirm),
		telegram.Button("❌ No", cbCancel),
	})
}

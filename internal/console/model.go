package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/mentalmath/internal/problemgen"
	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/ui/layout"
	"github.com/abhisek/mentalmath/internal/ui/theme"
)

// Engine is the part of the session engine the console drives.
type Engine interface {
	Start(ctx context.Context, userID int64, level int)
	SubmitAnswer(ctx context.Context, userID int64, raw string)
	Stop(ctx context.Context, userID int64)
	TogglePause(ctx context.Context, userID int64)
	Repeat(ctx context.Context, userID int64)
	Advance(ctx context.Context, userID int64)
}

// Options configures a Model.
type Options struct {
	Engine Engine
	UserID int64
	Name   string

	// Unlocked is the highest level the user may pick.
	Unlocked int
	// Level starts a session right away when positive.
	Level int

	// Context is passed to engine calls. Defaults to context.Background().
	Context context.Context
}

type phase int

const (
	phaseMenu phase = iota
	phasePlaying
	phaseResult
)

type tickMsg struct{ seq int }

// Model is the Bubble Tea model for a local player.
type Model struct {
	engine   Engine
	ctx      context.Context
	userID   int64
	name     string
	unlocked int
	startAt  int

	phase       phase
	input       textinput.Model
	problem     session.ProblemView
	secondsLeft int
	tickSeq     int
	feedback    *session.FeedbackView
	result      *session.ResultView
	notice      string
	width       int
}

// New creates a Model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	unlocked := opts.Unlocked
	if unlocked < 1 {
		unlocked = 1
	}

	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("level 1-%d", unlocked)
	ti.CharLimit = 12
	ti.Focus()

	return Model{
		engine:   opts.Engine,
		ctx:      ctx,
		userID:   opts.UserID,
		name:     opts.Name,
		unlocked: unlocked,
		startAt:  opts.Level,
		input:    ti,
	}
}

func (m Model) Init() tea.Cmd {
	if m.startAt > 0 {
		return m.start(m.startAt)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case problemMsg:
		v := session.ProblemView(msg)
		if v.Index == 1 && !v.Paused {
			m.feedback = nil
		}
		m.phase = phasePlaying
		m.problem = v
		m.result = nil
		m.notice = ""
		m.secondsLeft = v.SecondsLeft
		m.tickSeq++
		m.input.Reset()
		m.input.Placeholder = "your answer"
		if v.Paused {
			return m, nil
		}
		return m, m.tick()

	case feedbackMsg:
		v := session.FeedbackView(msg)
		m.feedback = &v
		return m, nil

	case resultMsg:
		v := session.ResultView(msg)
		m.phase = phaseResult
		m.result = &v
		m.tickSeq++
		if v.Promoted && v.NewLevel > m.unlocked {
			m.unlocked = v.NewLevel
		}
		return m, nil

	case errorMsg:
		m.notice = msg.Message
		if msg.Kind == session.ErrorInternal || msg.Kind == session.ErrorNoSession {
			m.toMenu()
		}
		return m, nil

	case tickMsg:
		if msg.seq != m.tickSeq || m.phase != phasePlaying || m.problem.Paused {
			return m, nil
		}
		if m.secondsLeft > 0 {
			m.secondsLeft--
		}
		if m.secondsLeft == 0 {
			return m, nil
		}
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.phase {
	case phaseResult:
		switch key {
		case "r":
			return m, m.call(m.engine.Repeat)
		case "n":
			if m.result != nil && m.result.CanAdvance && m.result.Saved {
				return m, m.call(m.engine.Advance)
			}
		case "m", "esc":
			m.toMenu()
		case "q":
			return m, tea.Quit
		}
		return m, nil

	case phasePlaying:
		switch key {
		case "esc":
			return m, m.call(m.engine.Stop)
		case "ctrl+p":
			return m, m.call(m.engine.TogglePause)
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, nil
			}
			m.input.Reset()
			return m, func() tea.Msg {
				m.engine.SubmitAnswer(m.ctx, m.userID, raw)
				return nil
			}
		}

	default:
		switch key {
		case "esc":
			return m, tea.Quit
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			level, err := strconv.Atoi(raw)
			if err != nil || !problemgen.ValidLevel(level) {
				m.notice = fmt.Sprintf("Pick a level from 1 to %d.", m.unlocked)
				return m, nil
			}
			if level > m.unlocked {
				m.notice = fmt.Sprintf("Level %d is locked. You can play levels 1 to %d.", level, m.unlocked)
				return m, nil
			}
			m.notice = ""
			return m, m.start(level)
		}
	}

	// Only whole numbers are ever valid input.
	if t := msg.Text; t != "" && strings.Trim(t, "-0123456789") != "" {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// call runs an engine operation off the event loop. The engine renders
// back into the program, which would deadlock if called from Update.
func (m Model) call(op func(context.Context, int64)) tea.Cmd {
	ctx, userID := m.ctx, m.userID
	return func() tea.Msg {
		op(ctx, userID)
		return nil
	}
}

func (m Model) start(level int) tea.Cmd {
	ctx, userID, engine := m.ctx, m.userID, m.engine
	return func() tea.Msg {
		engine.Start(ctx, userID, level)
		return nil
	}
}

func (m Model) tick() tea.Cmd {
	seq := m.tickSeq
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{seq: seq}
	})
}

func (m *Model) toMenu() {
	m.phase = phaseMenu
	m.result = nil
	m.feedback = nil
	m.tickSeq++
	m.input.Reset()
	m.input.Placeholder = fmt.Sprintf("level 1-%d", m.unlocked)
	m.input.Focus()
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	v.SetContent(m.render())
	return v
}

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(layout.RenderHeader("Mental Math", m.unlocked, m.width))
	b.WriteString("\n\n")

	switch m.phase {
	case phasePlaying:
		b.WriteString(m.renderProblem())
	case phaseResult:
		b.WriteString(m.renderResult())
	default:
		b.WriteString(m.renderMenu())
	}

	if m.notice != "" {
		b.WriteString("\n\n")
		b.WriteString(theme.Incorrect.Render(m.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(layout.RenderFooter(m.hints(), m.width))
	return b.String()
}

func (m Model) renderMenu() string {
	var b strings.Builder
	if m.name != "" {
		fmt.Fprintf(&b, "Hi %s! ", m.name)
	}
	b.WriteString("Choose a level:\n\n")
	for level := 1; level <= problemgen.MaxLevel; level++ {
		line := fmt.Sprintf("%2d. %s %s", level, problemgen.DifficultyIcon(level), problemgen.Describe(level))
		if level > m.unlocked {
			b.WriteString(theme.Hint.Render("🔒 " + line))
		} else {
			b.WriteString(theme.Body.Render("   " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) renderProblem() string {
	var b strings.Builder
	if f := m.feedback; f != nil {
		b.WriteString(feedbackLine(*f))
		b.WriteString("\n\n")
	}

	p := m.problem
	fmt.Fprintf(&b, "Level %d · Problem %d/%d\n", p.Level, p.Index, p.Total)
	b.WriteString(progressBar(p.Index-1, p.Total, 20))
	b.WriteString("\n\n")

	card := theme.Card
	if m.width > 0 {
		card = card.Width(min(m.width-4, 40))
	}
	b.WriteString(card.Render(theme.Selected.Render(p.Text)))
	b.WriteString("\n\n")

	if p.Paused {
		b.WriteString(theme.Subtitle.Render(fmt.Sprintf("⏸ Paused with %ds left", m.secondsLeft)))
		return b.String()
	}
	clock := fmt.Sprintf("⏱ %ds", m.secondsLeft)
	if m.secondsLeft <= 5 {
		b.WriteString(theme.Incorrect.Render(clock))
	} else {
		b.WriteString(theme.Body.Render(clock))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) renderResult() string {
	r := m.result
	if r == nil {
		return ""
	}
	var b strings.Builder
	if f := m.feedback; f != nil && !r.Discarded {
		b.WriteString(feedbackLine(*f))
		b.WriteString("\n\n")
	}
	switch {
	case r.Discarded:
		b.WriteString(theme.Subtitle.Render("Session stopped before any answer. Nothing was saved."))
		return b.String()
	case r.Stopped:
		b.WriteString(theme.Selected.Render("Session stopped."))
	default:
		b.WriteString(theme.Selected.Render("Session complete!"))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Correct:  %d/%d (%.1f%%)\n", r.Correct, r.Total, r.Accuracy*100)
	fmt.Fprintf(&b, "Time:     %s (%.1fs per problem)\n", r.TotalTime.Round(time.Second), r.AverageTime().Seconds())
	if !r.Saved {
		b.WriteString(theme.Incorrect.Render("Your results could not be saved."))
		return b.String()
	}
	fmt.Fprintf(&b, "Points:   +%d (total %d)\n", r.ScoreGained, r.TotalScore)
	if r.Promoted {
		b.WriteString("\n")
		b.WriteString(theme.Correct.Render(fmt.Sprintf("🎉 Level %d unlocked!", r.NewLevel)))
	}
	for _, a := range r.NewlyEarned {
		b.WriteString("\n")
		b.WriteString(theme.Correct.Render(fmt.Sprintf("🏅 %s %s: %s", a.Icon, a.Name, a.Description)))
	}
	return b.String()
}

func (m Model) hints() []layout.KeyHint {
	switch m.phase {
	case phasePlaying:
		return []layout.KeyHint{
			{Key: "Enter", Description: "answer"},
			{Key: "Ctrl+P", Description: "pause"},
			{Key: "Esc", Description: "stop"},
		}
	case phaseResult:
		hints := []layout.KeyHint{{Key: "R", Description: "repeat"}}
		if m.result != nil && m.result.CanAdvance && m.result.Saved {
			hints = append(hints, layout.KeyHint{Key: "N", Description: "next level"})
		}
		return append(hints,
			layout.KeyHint{Key: "M", Description: "menu"},
			layout.KeyHint{Key: "Q", Description: "quit"},
		)
	default:
		return []layout.KeyHint{
			{Key: "Enter", Description: "start"},
			{Key: "Esc", Description: "quit"},
		}
	}
}

func feedbackLine(f session.FeedbackView) string {
	switch {
	case f.Correct:
		return theme.Correct.Render("✓ Correct!")
	case f.TimedOut:
		return theme.Incorrect.Render(fmt.Sprintf("⏰ Time is up. The answer was %d.", f.CorrectAnswer))
	default:
		return theme.Incorrect.Render(fmt.Sprintf("✗ You said %d, the answer was %d.", f.UserAnswer, f.CorrectAnswer))
	}
}

func progressBar(done, total, width int) string {
	if total <= 0 {
		return ""
	}
	filled := done * width / total
	return theme.ProgressFilled.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", width-filled)) +
		lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf(" %d/%d", done, total))
}

// Package console plays sessions in the terminal with Bubble Tea.
package console

import (
	"context"
	"sync"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/mentalmath/internal/session"
)

type (
	problemMsg  session.ProblemView
	feedbackMsg session.FeedbackView
	resultMsg   session.ResultView
	errorMsg    session.ErrorView
)

// Renderer forwards engine output into a running program. Output that
// arrives while no program is attached is dropped.
type Renderer struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

var _ session.Renderer = (*Renderer)(nil)

// NewRenderer creates a detached Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Attach routes output to send, usually (*tea.Program).Send. A nil send
// detaches the renderer.
func (r *Renderer) Attach(send func(tea.Msg)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send = send
}

func (r *Renderer) deliver(msg tea.Msg) {
	r.mu.RLock()
	send := r.send
	r.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (r *Renderer) RenderProblem(_ context.Context, _ int64, v session.ProblemView) error {
	r.deliver(problemMsg(v))
	return nil
}

func (r *Renderer) RenderFeedback(_ context.Context, _ int64, v session.FeedbackView) error {
	r.deliver(feedbackMsg(v))
	return nil
}

func (r *Renderer) RenderResult(_ context.Context, _ int64, v session.ResultView) error {
	r.deliver(resultMsg(v))
	return nil
}

func (r *Renderer) RenderError(_ context.Context, _ int64, v session.ErrorView) error {
	r.deliver(errorMsg(v))
	return nil
}

// Run shows m until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Model, r *Renderer) error {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	r.Attach(p.Send)
	defer r.Attach(nil)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

package bot

import (
	"context"

	"github.com/abhisek/mentalmath/internal/session"
	"github.com/abhisek/mentalmath/internal/telegram"
)

// Sender is the part of the Bot API client the bot uses.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, html string, kb *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, queryID, text string) error
}

// Renderer delivers engine output as chat messages. The bot only serves
// private chats, where the chat ID equals the user ID.
type Renderer struct {
	send Sender
}

// NewRenderer creates a Renderer sending through s.
func NewRenderer(s Sender) *Renderer {
	return &Renderer{send: s}
}

var _ session.Renderer = (*Renderer)(nil)

func (r *Renderer) RenderProblem(ctx context.Context, userID int64, v session.ProblemView) error {
	kb := pausedKeyboard()
	if !v.Paused {
		kb = problemKeyboard(v.Ref, answerOptions(v.Text, v.Answer))
	}
	_, err := r.send.SendHTML(ctx, userID, problemText(v), kb)
	return err
}

func (r *Renderer) RenderFeedback(ctx context.Context, userID int64, v session.FeedbackView) error {
	_, err := r.send.SendHTML(ctx, userID, feedbackText(v), nil)
	return err
}

func (r *Renderer) RenderResult(ctx context.Context, userID int64, v session.ResultView) error {
	kb := resultKeyboard(v.CanAdvance && v.Saved)
	if v.Discarded {
		kb = menuKeyboard()
	}
	_, err := r.send.SendHTML(ctx, userID, resultText(v), kb)
	return err
}

func (r *Renderer) RenderError(ctx context.Context, userID int64, v session.ErrorView) error {
	_, err := r.send.SendHTML(ctx, userID, errorText(v), nil)
	return err
}

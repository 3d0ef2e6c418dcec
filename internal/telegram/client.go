package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.telegram.org"

// ClientConfig configures a Client.
type ClientConfig struct {
	Token   string
	BaseURL string // defaults to DefaultBaseURL

	// Timeout must exceed the long polling timeout.
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Logger        *slog.Logger
}

// DefaultClientConfig returns the settings used by the bot.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:         token,
		BaseURL:       DefaultBaseURL,
		Timeout:       60 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// Client calls the Bot API over HTTP.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
	}
}

// SendMessageParams are the arguments of sendMessage.
type SendMessageParams struct {
	ChatID      int64
	Text        string
	ParseMode   string
	ReplyMarkup *InlineKeyboardMarkup
}

// SendMessage posts a message to a chat.
func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	body := map[string]any{
		"chat_id": p.ChatID,
		"text":    p.Text,
	}
	if p.ParseMode != "" {
		body["parse_mode"] = p.ParseMode
	}
	if p.ReplyMarkup != nil {
		body["reply_markup"] = p.ReplyMarkup
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendHTML posts an HTML message with an optional keyboard.
func (c *Client) SendHTML(ctx context.Context, chatID int64, html string, kb *InlineKeyboardMarkup) (*Message, error) {
	return c.SendMessage(ctx, SendMessageParams{ChatID: chatID, Text: html, ParseMode: "HTML", ReplyMarkup: kb})
}

// EditMessageText replaces the text and keyboard of a message sent by the bot.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, html string, kb *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       html,
		"parse_mode": "HTML",
	}
	if kb != nil {
		body["reply_markup"] = kb
	}
	return c.call(ctx, "editMessageText", body, nil)
}

// AnswerCallbackQuery acknowledges a button press. A non-empty text is shown
// to the user as a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	body := map[string]any{"callback_query_id": queryID}
	if text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSecs int) ([]Update, error) {
	body := map[string]any{
		"timeout":         timeoutSecs,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		body["offset"] = offset
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", body, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// GetMe returns the bot's own account. It doubles as a token check.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// call performs method, retrying rate limits and server errors with
// exponential backoff.
func (c *Client) call(ctx context.Context, method string, body map[string]any, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
				delay = time.Duration(apiErr.RetryAfter) * time.Second
			}
			if err := wait(ctx, delay); err != nil {
				return err
			}
		}

		err := c.do(ctx, method, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("telegram call failed, retrying", "method", method, "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("telegram %s: giving up after %d retries: %w", method, c.cfg.RetryAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, method string, body map[string]any, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.Token, method)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", method, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the token; never let it reach the logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handler processes one update.
type Handler func(ctx context.Context, u Update)

// Poll long-polls for updates and passes each to handle until ctx is done.
// handle runs on the polling goroutine; callers that need concurrency
// dispatch from inside it.
func (c *Client) Poll(ctx context.Context, timeoutSecs int, errorBackoff time.Duration, handle Handler) error {
	c.logger.Info("telegram polling started")
	var offset int64
	for {
		if ctx.Err() != nil {
			c.logger.Info("telegram polling stopped")
			return nil
		}
		updates, err := c.GetUpdates(ctx, offset, timeoutSecs)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("telegram polling stopped")
				return nil
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
				return fmt.Errorf("telegram polling: %w", err)
			}
			c.logger.Error("get updates failed", "error", err)
			if err := wait(ctx, errorBackoff); err != nil {
				return nil
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			handle(ctx, u)
		}
	}
}

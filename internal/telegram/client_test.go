package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		Token:         "TOKEN",
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSendMessage(t *testing.T) {
	var got map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 42, "chat": map[string]any{"id": 7, "type": "private"}},
		})
	})

	kb := Keyboard([]InlineKeyboardButton{Button("12", "answer_12"), Button("13", "answer_13")})
	msg, err := c.SendHTML(context.Background(), 7, "<b>hi</b>", kb)
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.MessageID)

	assert.Equal(t, float64(7), got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
	markup := got["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	require.Len(t, rows, 1)
	first := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "answer_12", first["callback_data"])
}

func TestNonRetryableError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"})
	})

	_, err := c.SendHTML(context.Background(), 1, "x", nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			writeJSON(w, map[string]any{"ok": false, "error_code": 502, "description": "Bad Gateway"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "result": true})
	})

	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "q1", ""))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"ok": false, "error_code": 500, "description": "oops"})
	})

	err := c.EditMessageText(context.Background(), 1, 2, "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryAfterIsHonoredUntilContextEnds(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]any{
			"ok": false, "error_code": 429, "description": "Too Many Requests",
			"parameters": map[string]any{"retry_after": 30},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.GetMe(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestErrorsDoNotLeakToken(t *testing.T) {
	c := NewClient(ClientConfig{
		Token:   "SECRET",
		BaseURL: "http://127.0.0.1:1",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	_, err := c.GetMe(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestPollAdvancesOffset(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []float64
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		off, _ := body["offset"].(float64)
		offsets = append(offsets, off)
		n := len(offsets)
		mu.Unlock()

		switch n {
		case 1:
			writeJSON(w, map[string]any{"ok": true, "result": []map[string]any{
				{"update_id": 10, "message": map[string]any{"message_id": 1, "chat": map[string]any{"id": 5}, "text": "hi"}},
				{"update_id": 11, "callback_query": map[string]any{"id": "cb", "data": "stop", "from": map[string]any{"id": 5}}},
			}})
		default:
			cancel()
			writeJSON(w, map[string]any{"ok": true, "result": []any{}})
		}
	})

	var seen []Update
	err := c.Poll(ctx, 0, time.Millisecond, func(_ context.Context, u Update) {
		seen = append(seen, u)
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "hi", seen[0].Message.Text)
	assert.Equal(t, "stop", seen[1].CallbackQuery.Data)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, float64(0), offsets[0])
	assert.Equal(t, float64(12), offsets[1])
}

func TestPollStopsOnUnauthorized(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
	})
	err := c.Poll(context.Background(), 0, time.Millisecond, func(context.Context, Update) {})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Unauthorized"))
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name     string
		msg      *Message
		wantCmd  string
		wantArgs string
	}{
		{"nil", nil, "", ""},
		{"plain text", &Message{Text: "42"}, "", ""},
		{"command", &Message{Text: "/learn", Entities: []MessageEntity{{Type: "bot_command", Length: 6}}}, "learn", ""},
		{"with args", &Message{Text: "/set time_per_problem 45", Entities: []MessageEntity{{Type: "bot_command", Length: 4}}}, "set", "time_per_problem 45"},
		{"bot suffix", &Message{Text: "/Stats@MathBot", Entities: []MessageEntity{{Type: "bot_command", Length: 14}}}, "stats", ""},
		{"not leading", &Message{Text: "hi /start", Entities: []MessageEntity{{Type: "bot_command", Offset: 3, Length: 6}}}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Command(tt.msg)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

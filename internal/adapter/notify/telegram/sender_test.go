package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotServer struct {
	mu       sync.Mutex
	chatIDs  []string
	texts    []string
	blockFor time.Duration
	reject   bool
}

func (f *fakeBotServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": 1, "is_bot": true, "first_name": "Guard", "username": "adwallet_guard_bot"},
		})
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.blockFor > 0 {
			time.Sleep(f.blockFor)
		}
		_ = r.ParseForm()
		f.mu.Lock()
		f.chatIDs = append(f.chatIDs, r.FormValue("chat_id"))
		f.texts = append(f.texts, r.FormValue("text"))
		f.mu.Unlock()
		if f.reject {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": false, "error_code": 403, "description": "Forbidden: bot was blocked by the user",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 77, "date": 0, "chat": map[string]any{"id": 42, "type": "private"}},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestSender(t *testing.T, f *fakeBotServer) *Sender {
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	s, err := newSenderWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 5*time.Second, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestSender_Send(t *testing.T) {
	f := &fakeBotServer{}
	s := newTestSender(t, f)

	err := s.Send(context.Background(), 42, "Your ad account balance is low")
	require.NoError(t, err)

	require.Len(t, f.texts, 1)
	assert.Equal(t, "42", f.chatIDs[0])
	assert.Equal(t, "Your ad account balance is low", f.texts[0])
}

func TestSender_Send_Rejected(t *testing.T) {
	f := &fakeBotServer{reject: true}
	s := newTestSender(t, f)

	err := s.Send(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestSender_Send_ContextDeadline(t *testing.T) {
	f := &fakeBotServer{blockFor: 300 * time.Millisecond}
	s := newTestSender(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, 42, "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSender_Send_CancelledBeforeCall(t *testing.T) {
	bot := &stubBot{}
	s := &Sender{bot: bot, log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, 1, "x"), context.Canceled)
	assert.Zero(t, bot.calls)
}

func TestNewSender_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	s, err := newSenderWithEndpoint("bad", srv.URL+"/bot%s/%s", time.Second, zerolog.Nop())
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram auth")
}

type stubBot struct{ calls int }

func (b *stubBot) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.calls++
	return tgbotapi.Message{}, nil
}

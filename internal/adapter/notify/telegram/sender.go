package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender implements ports.MessageSender over the Telegram Bot API.
type Sender struct {
	bot botClient
	log zerolog.Logger
}

// NewSender authenticates the bot token and returns a sender.
// Requests are bounded by timeout at the HTTP client level.
func NewSender(token string, timeout time.Duration, log zerolog.Logger) (*Sender, error) {
	return newSenderWithEndpoint(token, tgbotapi.APIEndpoint, timeout, log)
}

func newSenderWithEndpoint(token, endpoint string, timeout time.Duration, log zerolog.Logger) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram channel ready")
	return &Sender{bot: bot, log: log}, nil
}

type sendResult struct {
	msg tgbotapi.Message
	err error
}

// Send delivers text to a chat. It returns when the API answers or ctx is done.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan sendResult, 1)
	go func() {
		msg, err := s.bot.Send(tgbotapi.NewMessage(chatID, text))
		done <- sendResult{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("telegram send: %w", res.err)
		}
		s.log.Debug().Int64("chat_id", chatID).Int("message_id", res.msg.MessageID).Msg("telegram message sent")
		return nil
	}
}

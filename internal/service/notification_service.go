package service

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"adwallet/config"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"
	"adwallet/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultClaimTTL    = 2 * time.Minute
)

// NotificationServiceImpl implements ports.Notifier. A send happens only
// after the (dedupe key, day) pair has been claimed in the suppression store,
// so concurrent callers cannot both deliver the same alert.
type NotificationServiceImpl struct {
	store       ports.SuppressionStore
	telegram    ports.MessageSender
	email       ports.EmailSender
	loc         *time.Location
	sendTimeout time.Duration
	claimTTL    time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewNotificationService creates a new NotificationServiceImpl. telegram or
// email may be nil when the channel is not configured.
func NewNotificationService(
	store ports.SuppressionStore,
	telegram ports.MessageSender,
	email ports.EmailSender,
	cfg config.NotifyConfig,
	log zerolog.Logger,
) (*NotificationServiceImpl, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading notify timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	claimTTL := cfg.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}

	return &NotificationServiceImpl{
		store:       store,
		telegram:    telegram,
		email:       email,
		loc:         loc,
		sendTimeout: sendTimeout,
		claimTTL:    claimTTL,
		now:         time.Now,
		log:         log,
	}, nil
}

// Notify delivers msg at most once per dedupe key and calendar day. The
// messaging app is tried first and email is the fallback.
func (s *NotificationServiceImpl) Notify(ctx context.Context, recipient domain.Recipient, dedupeKey string, msg domain.Message) (res domain.NotifyResult) {
	defer func() {
		channel := string(res.Channel)
		if channel == "" {
			channel = "none"
		}
		metrics.Notifications.WithLabelValues(string(res.Status), channel).Inc()
	}()

	useTelegram := recipient.HasTelegram() && s.telegram != nil
	useEmail := recipient.HasEmail() && s.email != nil
	if !useTelegram && !useEmail {
		return domain.NotifyResult{Status: domain.NotifySkipped}
	}

	today := s.now().In(s.loc)
	key := domain.SuppressionKey(dedupeKey, today)

	claimed, err := s.store.Claim(ctx, key, s.claimTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("suppression store unavailable, not sending")
		return domain.NotifyResult{Status: domain.NotifyFailed}
	}
	if !claimed {
		s.log.Debug().Str("key", key).Msg("notification already sent today")
		return domain.NotifyResult{Status: domain.NotifySkipped}
	}

	channel := domain.ChannelNone
	sent := false

	if useTelegram {
		channel = domain.ChannelTelegram
		if err := s.sendTelegram(ctx, *recipient.TelegramID, msg.Text); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("telegram send failed")
		} else {
			sent = true
		}
	}
	if !sent && useEmail {
		channel = domain.ChannelEmail
		if err := s.sendEmail(ctx, *recipient.VerifiedEmail, msg); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("email send failed")
		} else {
			sent = true
		}
	}

	if !sent {
		if err := s.store.Release(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to release notification claim")
		}
		return domain.NotifyResult{Status: domain.NotifyFailed, Channel: channel}
	}

	if err := s.store.Confirm(ctx, key, domain.UntilEndOfDay(today)); err != nil {
		// The claim TTL still suppresses retries for a while.
		s.log.Warn().Err(err).Str("key", key).Msg("failed to record sent notification")
	}

	s.log.Info().
		Str("key", key).
		Str("channel", string(channel)).
		Msg("notification sent")

	return domain.NotifyResult{Status: domain.NotifySent, Channel: channel}
}

func (s *NotificationServiceImpl) sendTelegram(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.telegram.Send(ctx, chatID, text)
}

func (s *NotificationServiceImpl) sendEmail(ctx context.Context, address string, msg domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.email.Send(ctx, address, msg.TemplateID, msg.Params)
}

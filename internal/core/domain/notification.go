package domain

import (
	"time"
)

// Channel is a notification delivery route.
type Channel string

const (
	ChannelNone     Channel = ""
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
)

// Recipient lists the channels a customer can be reached on.
type Recipient struct {
	TelegramID    *int64
	VerifiedEmail *string
}

// HasTelegram returns true when a messaging-app id is known.
func (r Recipient) HasTelegram() bool {
	return r.TelegramID != nil && *r.TelegramID != 0
}

// HasEmail returns true when a verified email is known.
func (r Recipient) HasEmail() bool {
	return r.VerifiedEmail != nil && *r.VerifiedEmail != ""
}

// Reachable returns true if at least one channel is available.
func (r Recipient) Reachable() bool {
	return r.HasTelegram() || r.HasEmail()
}

// Message carries both renderings of one alert: plain text for the
// messaging app and a template reference for email.
type Message struct {
	Text       string
	TemplateID int64
	Params     map[string]any
}

// NotifyStatus is the outcome of a dispatch attempt.
type NotifyStatus string

const (
	NotifySent    NotifyStatus = "SENT"
	NotifySkipped NotifyStatus = "SKIPPED"
	NotifyFailed  NotifyStatus = "FAILED"
)

// NotifyResult reports what happened and which channel was last attempted.
type NotifyResult struct {
	Status  NotifyStatus
	Channel Channel
}

// SuppressionKey builds the (subject, day) key for notification de-duplication.
func SuppressionKey(dedupeKey string, day time.Time) string {
	return dedupeKey + ":" + day.Format("2006-01-02")
}

// UntilEndOfDay returns the time remaining until midnight in now's location.
// It never returns less than one second so stores always get a positive TTL.
func UntilEndOfDay(now time.Time) time.Duration {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	ttl := midnight.Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

package adplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"
	"adwallet/pkg/ids"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// CommandTypeSetStatus is the message type header of campaign status commands.
const CommandTypeSetStatus = "campaign.set_status"

// CampaignCommand asks the platform connector to move a campaign to Status.
// Commands carry a target state, so redelivery is harmless.
type CampaignCommand struct {
	CommandID  string                `json:"command_id"`
	Platform   domain.Platform       `json:"platform"`
	CampaignID string                `json:"campaign_id"`
	Status     domain.CampaignStatus `json:"status"`
	IssuedAt   time.Time             `json:"issued_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CampaignController implements ports.CampaignController by publishing
// commands to the connector topic, keyed by campaign id so commands for one
// campaign stay ordered on a single partition.
type CampaignController struct {
	w   messageWriter
	now func() time.Time
	log zerolog.Logger
}

// NewCampaignController creates a controller writing to cfg.CommandTopic.
func NewCampaignController(cfg config.KafkaConfig, log zerolog.Logger) *CampaignController {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.CommandTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newCampaignController(w, log)
}

func newCampaignController(w messageWriter, log zerolog.Logger) *CampaignController {
	return &CampaignController{w: w, now: time.Now, log: log}
}

// SetCampaignStatus publishes one status command and waits for broker acks.
func (c *CampaignController) SetCampaignStatus(ctx context.Context, platform domain.Platform, campaignID string, status domain.CampaignStatus) error {
	cmd := CampaignCommand{
		CommandID:  ids.NewULID(),
		Platform:   platform,
		CampaignID: campaignID,
		Status:     status,
		IssuedAt:   c.now().UTC(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode campaign command: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(campaignID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(CommandTypeSetStatus)},
			{Key: "platform", Value: []byte(platform)},
		},
	}
	if err := c.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish campaign command: %w", err)
	}

	c.log.Debug().
		Str("command_id", cmd.CommandID).
		Str("campaign_id", campaignID).
		Str("status", string(status)).
		Msg("campaign command published")
	return nil
}

// Close flushes and closes the underlying writer.
func (c *CampaignController) Close() error {
	return c.w.Close()
}

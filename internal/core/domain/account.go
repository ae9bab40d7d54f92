package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Platform identifies the third-party ad network behind a managed account.
type Platform string

const (
	PlatformFacebook Platform = "FACEBOOK"
	PlatformGoogle   Platform = "GOOGLE"
)

// ManagedAccount is an external ad account sold under a service subscription.
// It is maintained by the platform sync job; the ledger only reads it.
type ManagedAccount struct {
	ID             uuid.UUID        `json:"id"`
	SubscriptionID uuid.UUID        `json:"subscription_id"`
	OwnerID        uuid.UUID        `json:"owner_id"`
	Platform       Platform         `json:"platform"`
	ExternalID     string           `json:"external_id"`
	Name           string           `json:"name"`
	FundedBalance  *decimal.Decimal `json:"funded_balance,omitempty"`
	Currency       string           `json:"currency"`
	LastSyncedAt   *time.Time       `json:"last_synced_at,omitempty"`
	Recipient      Recipient        `json:"-"`
}

// CampaignStatus mirrors the platform-side delivery state.
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "ACTIVE"
	CampaignStatusPaused   CampaignStatus = "PAUSED"
	CampaignStatusRemoved  CampaignStatus = "REMOVED"
	CampaignStatusArchived CampaignStatus = "ARCHIVED"
	CampaignStatusDeleted  CampaignStatus = "DELETED"
)

// Campaign is one ad campaign under a managed account.
type Campaign struct {
	ID        string         `json:"id"` // platform campaign id
	AccountID uuid.UUID      `json:"account_id"`
	Name      string         `json:"name"`
	Status    CampaignStatus `json:"status"`
}

// NeedsPause returns true unless the campaign is already paused or terminated.
func (c *Campaign) NeedsPause() bool {
	switch c.Status {
	case CampaignStatusPaused, CampaignStatusRemoved, CampaignStatusArchived, CampaignStatusDeleted:
		return false
	default:
		return true
	}
}

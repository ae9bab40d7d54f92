package postgres

import (
	"context"
	"fmt"

	"adwallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepo reads managed ad accounts and their owners' contact channels.
// Rows are written by the platform sync job.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// ListFunded returns every account with a known funded balance.
// Only verified emails are exposed as a channel.
func (r *AccountRepo) ListFunded(ctx context.Context) ([]domain.ManagedAccount, error) {
	query := `SELECT a.id, a.subscription_id, a.owner_id, a.platform, a.external_id, a.name,
		a.funded_balance, a.currency, a.last_synced_at,
		u.telegram_id, CASE WHEN u.email_verified THEN u.email END
		FROM managed_accounts a
		JOIN users u ON u.id = a.owner_id
		WHERE a.funded_balance IS NOT NULL
		ORDER BY a.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list funded accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.ManagedAccount
	for rows.Next() {
		var (
			a      domain.ManagedAccount
			funded decimal.NullDecimal
		)
		err := rows.Scan(
			&a.ID, &a.SubscriptionID, &a.OwnerID, &a.Platform, &a.ExternalID, &a.Name,
			&funded, &a.Currency, &a.LastSyncedAt,
			&a.Recipient.TelegramID, &a.Recipient.VerifiedEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		if funded.Valid {
			a.FundedBalance = &funded.Decimal
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

// CampaignRepo implements ports.CampaignRepository over ad_campaigns.
type CampaignRepo struct {
	pool Pool
}

// NewCampaignRepo creates a new CampaignRepo.
func NewCampaignRepo(pool Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

// ListByAccount returns the campaigns of one managed account.
func (r *CampaignRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Campaign, error) {
	query := `SELECT id, account_id, name, status FROM ad_campaigns WHERE account_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c := domain.Campaign{}
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Status); err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign rows: %w", err)
	}
	return campaigns, nil
}

// UpdateStatus mirrors a status change locally until the next platform sync.
// A missing row is not an error: the sync job may have removed it.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, accountID uuid.UUID, campaignID string, status domain.CampaignStatus) error {
	query := `UPDATE ad_campaigns SET status = $1, updated_at = NOW() WHERE account_id = $2 AND id = $3`

	if _, err := r.pool.Exec(ctx, query, status, accountID, campaignID); err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return nil
}

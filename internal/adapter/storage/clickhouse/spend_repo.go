package clickhouse

import (
	"context"
	"fmt"

	"adwallet/internal/core/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SpendRepo implements ports.SpendSource over the ad_daily_insights table,
// one row per (account, day) written by the platform sync job.
type SpendRepo struct {
	ch *sqlx.DB
}

// NewSpendRepo creates a new SpendRepo.
func NewSpendRepo(ch *sqlx.DB) *SpendRepo {
	return &SpendRepo{ch: ch}
}

// LifetimeSpend sums every daily spend record of the account.
// An account with no records has spent zero.
func (r *SpendRepo) LifetimeSpend(ctx context.Context, account domain.ManagedAccount) (decimal.Decimal, error) {
	q := `
		SELECT toString(sum(spend))
		FROM ad_daily_insights FINAL
		WHERE account_id = ?
	`

	var total string
	if err := r.ch.GetContext(ctx, &total, q, account.ID.String()); err != nil {
		return decimal.Zero, fmt.Errorf("sum spend for %s: %w", account.ID, err)
	}
	if total == "" {
		return decimal.Zero, nil
	}
	spend, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse spend %q: %w", total, err)
	}
	return spend, nil
}

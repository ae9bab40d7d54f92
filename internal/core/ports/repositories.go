package ports

import (
	"context"
	"errors"
	"time"

	"adwallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create inserts the wallet unless the user already owns one.
	// Returns false when a wallet already existed.
	Create(ctx context.Context, wallet *domain.Wallet) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus) error
}

// ErrDuplicateReference is returned by TransactionRepository.Create when
// another deposit already carries the same external reference.
var ErrDuplicateReference = errors.New("deposit reference already in use")

// TransactionRepository defines persistence operations for the wallet ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, txType domain.TransactionType, referenceID string) (*domain.Transaction, error)
	// CompareAndSetStatus moves a transaction from one status to another.
	// Returns false when the row was not in the expected status.
	CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus, referenceID *string) (bool, error)
	// SumAffectingBalance folds the ledger the same way domain.LedgerSum does.
	SumAffectingBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	ListExpiredDeposits(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error)
}

// SubscriptionRepository persists purchased ad services.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, sub *domain.ServiceSubscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceSubscription, error)
}

// ManagedAccountRepository reads the ad accounts maintained by the platform sync job.
type ManagedAccountRepository interface {
	// ListFunded returns accounts with a known funded balance, recipients included.
	ListFunded(ctx context.Context) ([]domain.ManagedAccount, error)
}

// CampaignRepository reads and mirrors campaign delivery state.
type CampaignRepository interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Campaign, error)
	UpdateStatus(ctx context.Context, accountID uuid.UUID, campaignID string, status domain.CampaignStatus) error
}

// SpendSource reads externally reported daily spend.
type SpendSource interface {
	// LifetimeSpend sums every daily spend record of the account.
	LifetimeSpend(ctx context.Context, account domain.ManagedAccount) (decimal.Decimal, error)
}

// AuditRepository persists the privileged-operation trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

package ports

import (
	"context"
	"time"

	"adwallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles wallet password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService issues and validates JWTs carrying the caller identity.
type TokenService interface {
	Generate(actor domain.Actor) (string, time.Time, error)
	Validate(tokenString string) (*domain.Actor, error)
}

// SuppressionStore is an insert-if-absent key/value store with expiry.
type SuppressionStore interface {
	// Claim inserts key if absent with a short TTL. Returns false when the
	// key already exists (claimed by someone else or already sent).
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Confirm marks a claimed key as sent and extends its TTL.
	Confirm(ctx context.Context, key string, ttl time.Duration) error
	// Release drops a claim after a failed send.
	Release(ctx context.Context, key string) error
}

// MessageSender delivers plain text through the messaging app.
type MessageSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// EmailSender delivers a templated email.
type EmailSender interface {
	Send(ctx context.Context, address string, templateID int64, params map[string]any) error
}

// CampaignController issues delivery commands to the ad platform.
// Pausing an already paused campaign must not be an error.
type CampaignController interface {
	SetCampaignStatus(ctx context.Context, platform domain.Platform, campaignID string, status domain.CampaignStatus) error
}

// Notifier sends customer alerts with channel fallback and daily de-duplication.
type Notifier interface {
	Notify(ctx context.Context, recipient domain.Recipient, dedupeKey string, msg domain.Message) domain.NotifyResult
}

// BudgetGuard runs the spend-vs-balance enforcement loop.
type BudgetGuard interface {
	RunOnce(ctx context.Context) (*domain.GuardSummary, error)
}

// SignatureService signs and verifies payment provider callbacks (HMAC-SHA256).
type SignatureService interface {
	Sign(secret string, payload string) string
	Verify(secret string, payload string, signature string) bool
	BuildCanonicalString(timestamp int64, nonce string, body string) string
}

// NonceStore rejects replayed callback nonces.
type NonceStore interface {
	// CheckAndSet returns true if the nonce had not been seen within ttl.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// IdempotencyCache stores replayable API responses by idempotency key.
type IdempotencyCache interface {
	// Get returns nil, nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AuditService records privileged API operations without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Wallet service ---

// WalletService is the ledger state machine. Every call carries the acting
// caller explicitly. Owner-scoped operations are authorized with domain.CanAct;
// money movements without a payment behind them are staff-only.
type WalletService interface {
	CreateWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID, password *string) (*domain.Wallet, error)
	GetWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, actor domain.Actor, customerID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	LockWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID) error
	UnlockWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID) error
	TopUp(ctx context.Context, actor domain.Actor, customerID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	Withdraw(ctx context.Context, actor domain.Actor, req WithdrawRequest) (*domain.Transaction, error)
	CreateDepositOrder(ctx context.Context, actor domain.Actor, req DepositOrderRequest) (*domain.Transaction, error)
	ApproveDeposit(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (*domain.Transaction, error)
	// ApproveDepositByReference fails with AmountMismatch, leaving the order
	// PENDING, when paidAmount differs from the order amount.
	ApproveDepositByReference(ctx context.Context, actor domain.Actor, externalRef string, paidAmount decimal.Decimal) (*domain.Transaction, error)
	CancelDeposit(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (*domain.Transaction, error)
	CreateWithdrawOrder(ctx context.Context, actor domain.Actor, req WithdrawOrderRequest) (*domain.Transaction, error)
	ApproveWithdraw(ctx context.Context, actor domain.Actor, transactionID uuid.UUID, externalRef *string) (*domain.Transaction, error)
	CancelWithdraw(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (*domain.Transaction, error)
	PurchaseDebit(ctx context.Context, actor domain.Actor, req PurchaseRequest) (*domain.ServiceSubscription, error)
	ExpireDeposits(ctx context.Context, actor domain.Actor, now time.Time) (int, error)
	Reconcile(ctx context.Context, actor domain.Actor, customerID uuid.UUID) (*ReconcileReport, error)
}

// WithdrawRequest is a direct, admin-initiated debit.
type WithdrawRequest struct {
	CustomerID  uuid.UUID
	Amount      decimal.Decimal
	Password    *string
	Description string
}

// DepositOrderRequest opens a pending credit awaiting the payment provider.
type DepositOrderRequest struct {
	CustomerID  uuid.UUID
	Amount      decimal.Decimal
	ExternalRef string
	Network     *string
}

// WithdrawOrderRequest escrows funds pending a manual payout.
type WithdrawOrderRequest struct {
	CustomerID  uuid.UUID
	Amount      decimal.Decimal
	Destination string
	Password    *string
}

// PurchaseRequest buys a service package with wallet funds.
type PurchaseRequest struct {
	CustomerID uuid.UUID
	PackageID  string
	TotalCost  decimal.Decimal
}

// ReconcileReport compares a wallet balance with its transaction log.
type ReconcileReport struct {
	WalletID  uuid.UUID       `json:"wallet_id"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
	Balanced  bool            `json:"balanced"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit         TransactionType = "DEPOSIT"
	TransactionTypeTopup           TransactionType = "TOPUP"
	TransactionTypeWithdraw        TransactionType = "WITHDRAW"
	TransactionTypeServicePurchase TransactionType = "SERVICE_PURCHASE"
	TransactionTypeAdjustment      TransactionType = "ADJUSTMENT"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusApproved  TransactionStatus = "APPROVED"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is an append-only ledger entry. Amount is signed:
// positive credits the wallet, negative debits it.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	WalletID    uuid.UUID         `json:"wallet_id"`
	Amount      decimal.Decimal   `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	ReferenceID *string           `json:"reference_id,omitempty"` // payment provider id or purchased resource id
	Network     *string           `json:"network,omitempty"`      // withdraw destination / payment network
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}

// IsPending returns true while the transaction may still transition.
func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusApproved ||
		t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusCancelled
}

// CanTransition reports whether moving to next is a legal state change.
// Only PENDING may move, and only into a terminal state.
func (t *Transaction) CanTransition(next TransactionStatus) bool {
	if !t.IsPending() {
		return false
	}
	return next == TransactionStatusApproved ||
		next == TransactionStatusCompleted ||
		next == TransactionStatusCancelled
}

// IsExpired returns true if a pending order has passed its expiry.
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// AffectsBalance reports whether the amount is reflected in the wallet balance.
// Settled entries count, and so do pending debits: a withdraw order escrows
// its funds at creation time.
func (t *Transaction) AffectsBalance() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusApproved:
		return true
	case TransactionStatusPending:
		return t.Amount.IsNegative()
	default:
		return false
	}
}

// LedgerSum folds the balance-affecting amounts of txns.
func LedgerSum(txns []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for i := range txns {
		if txns[i].AffectsBalance() {
			sum = sum.Add(txns[i].Amount)
		}
	}
	return sum
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStatus represents whether a wallet accepts money movements.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusLocked WalletStatus = "LOCKED"
)

// Wallet is a customer's stored-value account funding ad-service purchases.
// Balance is only ever changed by the wallet service inside a locked transaction.
type Wallet struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Balance      decimal.Decimal `json:"balance"`
	Status       WalletStatus    `json:"status"`
	PasswordHash *string         `json:"-"` // Argon2id, never expose
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLocked returns true if the wallet refuses money movements.
func (w *Wallet) IsLocked() bool {
	return w.Status == WalletStatusLocked
}

// HasPassword returns true if withdrawals require the wallet password.
func (w *Wallet) HasPassword() bool {
	return w.PasswordHash != nil && *w.PasswordHash != ""
}

// CanCover returns true if the balance covers a debit of amount.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

package dto

import (
	"adwallet/internal/core/domain"

	"github.com/shopspring/decimal"
)

// --- Wallet DTOs ---

type CreateWalletRequest struct {
	Password *string `json:"password,omitempty" binding:"omitempty,min=6,max=128" sanitize:"-"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Password    *string         `json:"password,omitempty" binding:"omitempty,max=128" sanitize:"-"`
	Description string          `json:"description" binding:"max=255"`
}

type DepositOrderRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"external_ref" binding:"required,max=100,safe_id"`
	Network     *string         `json:"network,omitempty" binding:"omitempty,max=64,safe_id"`
}

type WithdrawOrderRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination" binding:"required,max=255"`
	Password    *string         `json:"password,omitempty" binding:"omitempty,max=128" sanitize:"-"`
}

type ApproveWithdrawRequest struct {
	ExternalRef *string `json:"external_ref,omitempty" binding:"omitempty,max=100,safe_id"`
}

type PurchaseRequest struct {
	PackageID string          `json:"package_id" binding:"required,max=64,safe_id"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type TransactionListResponse struct {
	Items  []domain.Transaction `json:"items"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type WalletStatusResponse struct {
	UserID string              `json:"user_id"`
	Status domain.WalletStatus `json:"status"`
}

// --- Payment provider DTOs ---

// PaymentWebhookRequest is the payment provider's deposit callback.
type PaymentWebhookRequest struct {
	ExternalRef string          `json:"external_ref" binding:"required,max=100,safe_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status" binding:"required,oneof=paid failed cancelled"`
}

type PaymentWebhookResponse struct {
	ExternalRef string `json:"external_ref"`
	Result      string `json:"result"` // approved, already_processed, ignored
}

// --- Admin DTOs ---

type ExpireDepositsResponse struct {
	Expired int `json:"expired"`
}

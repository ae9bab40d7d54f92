package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a privileged wallet operation.
type AuditAction string

const (
	AuditActionLock            AuditAction = "WALLET_LOCK"
	AuditActionUnlock          AuditAction = "WALLET_UNLOCK"
	AuditActionTopUp           AuditAction = "TOPUP"
	AuditActionWithdraw        AuditAction = "WITHDRAW"
	AuditActionApproveDeposit  AuditAction = "APPROVE_DEPOSIT"
	AuditActionApproveWithdraw AuditAction = "APPROVE_WITHDRAW"
	AuditActionExpireDeposits  AuditAction = "EXPIRE_DEPOSITS"
	AuditActionGuardRun        AuditAction = "GUARD_RUN"
	AuditActionPaymentWebhook  AuditAction = "PAYMENT_WEBHOOK"
)

// AuditLog records who triggered a privileged operation over the API.
// Balances are reconstructed from the transaction log, not from here.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    Role        `json:"actor_role"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

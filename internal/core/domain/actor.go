package domain

import "github.com/google/uuid"

// Role distinguishes back-office staff from customers.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
	RoleSystem   Role = "SYSTEM" // payment webhooks, scheduled jobs
)

// Actor is the authenticated caller of a wallet operation.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// SystemActor is used by internal callers such as the payment webhook.
var SystemActor = Actor{Role: RoleSystem}

// IsStaff returns true for admins and internal system callers.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// CanAct reports whether actor may operate on a wallet owned by owner.
func CanAct(actor Actor, owner uuid.UUID) bool {
	if actor.IsStaff() {
		return true
	}
	return actor.Role == RoleCustomer && actor.UserID != uuid.Nil && actor.UserID == owner
}

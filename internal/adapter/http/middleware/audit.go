package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
	param        string // route parameter holding the resource id
}

// auditedRoutes maps "METHOD route-pattern" to the recorded action.
var auditedRoutes = map[string]auditRoute{
	"POST /api/v1/wallets/:user_id/lock":     {domain.AuditActionLock, "wallet", "user_id"},
	"POST /api/v1/wallets/:user_id/unlock":   {domain.AuditActionUnlock, "wallet", "user_id"},
	"POST /api/v1/wallets/:user_id/topup":    {domain.AuditActionTopUp, "wallet", "user_id"},
	"POST /api/v1/wallets/:user_id/withdraw": {domain.AuditActionWithdraw, "wallet", "user_id"},
	"POST /api/v1/deposits/:id/approve":      {domain.AuditActionApproveDeposit, "transaction", "id"},
	"POST /api/v1/withdrawals/:id/approve":   {domain.AuditActionApproveWithdraw, "transaction", "id"},
	"POST /api/v1/admin/deposits/expire":     {domain.AuditActionExpireDeposits, "deposit", ""},
	"POST /api/v1/admin/guard/run":           {domain.AuditActionGuardRun, "guard", ""},
	"POST /api/v1/webhooks/payments":         {domain.AuditActionPaymentWebhook, "transaction", ""},
}

// AuditLog records successful privileged operations after the handler ran.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		if c.GetBool(CtxIdempotentReplay) {
			return
		}
		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       route.action,
			ResourceType: route.resourceType,
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if route.param != "" {
			entry.ResourceID = c.Param(route.param)
		}
		if actor, ok := ActorFrom(c); ok {
			entry.ActorRole = actor.Role
			if actor.UserID != uuid.Nil {
				id := actor.UserID
				entry.ActorID = &id
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

package handler

import (
	"time"

	"adwallet/internal/adapter/http/dto"
	"adwallet/internal/core/ports"
	"adwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminHandler handles back-office endpoints. Routes are mounted behind
// middleware.RequireStaff and the wallet service re-checks the role.
type AdminHandler struct {
	walletSvc ports.WalletService
	guard     ports.BudgetGuard
	log       zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(walletSvc ports.WalletService, guard ports.BudgetGuard, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{walletSvc: walletSvc, guard: guard, log: log}
}

// LockWallet handles POST /api/v1/wallets/:user_id/lock.
func (h *AdminHandler) LockWallet(c *gin.Context) {
	h.setLocked(c, true)
}

// UnlockWallet handles POST /api/v1/wallets/:user_id/unlock.
func (h *AdminHandler) UnlockWallet(c *gin.Context) {
	h.setLocked(c, false)
}

func (h *AdminHandler) setLocked(c *gin.Context, locked bool) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}

	var err error
	if locked {
		err = h.walletSvc.LockWallet(c.Request.Context(), actor, owner)
	} else {
		err = h.walletSvc.UnlockWallet(c.Request.Context(), actor, owner)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), actor, owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WalletStatusResponse{UserID: owner.String(), Status: wallet.Status})
}

// TopUp handles POST /api/v1/wallets/:user_id/topup.
func (h *AdminHandler) TopUp(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}
	var req dto.TopUpRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.TopUp(c.Request.Context(), actor, owner, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// Withdraw handles POST /api/v1/wallets/:user_id/withdraw.
func (h *AdminHandler) Withdraw(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.Withdraw(c.Request.Context(), actor, ports.WithdrawRequest{
		CustomerID:  owner,
		Amount:      req.Amount,
		Password:    req.Password,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// ApproveDeposit handles POST /api/v1/deposits/:id/approve.
func (h *AdminHandler) ApproveDeposit(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	tx, err := h.walletSvc.ApproveDeposit(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tx)
}

// ApproveWithdraw handles POST /api/v1/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdraw(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.ApproveWithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.ApproveWithdraw(c.Request.Context(), actor, id, req.ExternalRef)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tx)
}

// Reconcile handles GET /api/v1/wallets/:user_id/reconcile.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}

	report, err := h.walletSvc.Reconcile(c.Request.Context(), actor, owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !report.Balanced {
		h.log.Error().
			Str("wallet_id", report.WalletID.String()).
			Str("balance", report.Balance.String()).
			Str("ledger_sum", report.LedgerSum.String()).
			Msg("wallet balance disagrees with its transaction log")
	}
	response.OK(c, report)
}

// ExpireDeposits handles POST /api/v1/admin/deposits/expire.
func (h *AdminHandler) ExpireDeposits(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}

	n, err := h.walletSvc.ExpireDeposits(c.Request.Context(), actor, time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ExpireDepositsResponse{Expired: n})
}

// RunGuard handles POST /api/v1/admin/guard/run.
func (h *AdminHandler) RunGuard(c *gin.Context) {
	summary, err := h.guard.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

package handler

import (
	"strconv"

	"adwallet/internal/adapter/http/dto"
	"adwallet/internal/adapter/http/middleware"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"
	"adwallet/pkg/apperror"
	"adwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// WalletHandler handles customer wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// requestActor returns the authenticated caller, writing an error when absent.
func requestActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Actor{}, false
	}
	return actor, true
}

// walletOwner resolves the :user_id path segment; "me" is the caller.
func walletOwner(c *gin.Context, actor domain.Actor) (uuid.UUID, bool) {
	raw := c.Param("user_id")
	if raw == "me" {
		if actor.UserID == uuid.Nil {
			response.Error(c, apperror.Validation("caller has no wallet"))
			return uuid.Nil, false
		}
		return actor.UserID, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and sanitizes the body; an empty body binds to the zero value.
func bindJSON(c *gin.Context, req interface{}) bool {
	var err error
	if c.Request.ContentLength == 0 {
		err = binding.Validator.ValidateStruct(req)
	} else {
		err = c.ShouldBindJSON(req)
	}
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// CreateWallet handles POST /api/v1/wallets/:user_id.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}
	var req dto.CreateWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), actor, owner, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wallet)
}

// GetWallet handles GET /api/v1/wallets/:user_id.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), actor, owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// ListTransactions handles GET /api/v1/wallets/:user_id/transactions?limit=&offset=.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.walletSvc.ListTransactions(c.Request.Context(), actor, owner, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	response.OK(c, dto.TransactionListResponse{Items: items, Limit: limit, Offset: offset})
}

// CreateDepositOrder handles POST /api/v1/wallets/:user_id/deposits.
func (h *WalletHandler) CreateDepositOrder(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}
	var req dto.DepositOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.CreateDepositOrder(c.Request.Context(), actor, ports.DepositOrderRequest{
		CustomerID:  owner,
		Amount:      req.Amount,
		ExternalRef: req.ExternalRef,
		Network:     req.Network,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// CancelDeposit handles POST /api/v1/deposits/:id/cancel.
func (h *WalletHandler) CancelDeposit(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	tx, err := h.walletSvc.CancelDeposit(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tx)
}

// CreateWithdrawOrder handles POST /api/v1/wallets/:user_id/withdrawals.
func (h *WalletHandler) CreateWithdrawOrder(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}
	var req dto.WithdrawOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.walletSvc.CreateWithdrawOrder(c.Request.Context(), actor, ports.WithdrawOrderRequest{
		CustomerID:  owner,
		Amount:      req.Amount,
		Destination: req.Destination,
		Password:    req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// CancelWithdraw handles POST /api/v1/withdrawals/:id/cancel.
func (h *WalletHandler) CancelWithdraw(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	tx, err := h.walletSvc.CancelWithdraw(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tx)
}

// Purchase handles POST /api/v1/wallets/:user_id/purchases.
func (h *WalletHandler) Purchase(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	owner, ok := walletOwner(c, actor)
	if !ok {
		return
	}
	var req dto.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.walletSvc.PurchaseDebit(c.Request.Context(), actor, ports.PurchaseRequest{
		CustomerID: owner,
		PackageID:  req.PackageID,
		TotalCost:  req.TotalCost,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

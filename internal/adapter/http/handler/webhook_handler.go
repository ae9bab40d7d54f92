package handler

import (
	"adwallet/internal/adapter/http/dto"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"
	"adwallet/pkg/apperror"
	"adwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	webhookApproved         = "approved"
	webhookAlreadyProcessed = "already_processed"
	webhookIgnored          = "ignored"
)

// PaymentWebhookHandler handles deposit callbacks from the payment provider.
// The route is authenticated by middleware.WebhookAuth.
type PaymentWebhookHandler struct {
	walletSvc ports.WalletService
	log       zerolog.Logger
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler.
func NewPaymentWebhookHandler(walletSvc ports.WalletService, log zerolog.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{walletSvc: walletSvc, log: log}
}

// HandlePayment handles POST /api/v1/webhooks/payments.
// Only "paid" credits the wallet, and only for the exact order amount.
// Redelivery of an approved deposit is a 200 so the provider stops retrying.
func (h *PaymentWebhookHandler) HandlePayment(c *gin.Context) {
	var req dto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	log := h.log.With().Str("external_ref", req.ExternalRef).Str("status", req.Status).Logger()

	if req.Status != "paid" {
		// Unpaid orders are left to expire.
		log.Info().Msg("payment callback ignored")
		response.OK(c, dto.PaymentWebhookResponse{ExternalRef: req.ExternalRef, Result: webhookIgnored})
		return
	}

	tx, err := h.walletSvc.ApproveDepositByReference(c.Request.Context(), domain.SystemActor, req.ExternalRef, req.Amount)
	switch {
	case apperror.HasCode(err, apperror.CodeNotPending):
		log.Info().Msg("payment callback for an already processed deposit")
		response.OK(c, dto.PaymentWebhookResponse{ExternalRef: req.ExternalRef, Result: webhookAlreadyProcessed})
		return
	case apperror.HasCode(err, apperror.CodeAmountMismatch):
		log.Error().Str("paid", req.Amount.String()).Msg("paid amount differs from the deposit order, not credited")
		response.Error(c, err)
		return
	case err != nil:
		log.Warn().Err(err).Msg("payment callback could not be applied")
		response.Error(c, err)
		return
	}

	log.Info().Str("tx_id", tx.ID.String()).Str("amount", tx.Amount.String()).Msg("deposit approved by payment callback")
	response.OK(c, dto.PaymentWebhookResponse{ExternalRef: req.ExternalRef, Result: webhookApproved})
}

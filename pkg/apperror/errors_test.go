package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(CodeInsufficientBalance, "Insufficient balance", http.StatusPaymentRequired),
			expected: "[WAL_004] Insufficient balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(CodeInternal, "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := InternalError(inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, ErrNotPending().Unwrap())
}

func TestWalletErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidAmount", ErrInvalidAmount(), "WAL_001", 400},
		{"WalletLocked", ErrWalletLocked(), "WAL_002", 403},
		{"WrongPassword", ErrWrongPassword(), "WAL_003", 401},
		{"InsufficientBalance", ErrInsufficientBalance(), "WAL_004", 402},
		{"NotFound", ErrNotFound("wallet"), "WAL_005", 404},
		{"NotPending", ErrNotPending(), "WAL_006", 409},
		{"NotWithdraw", ErrNotWithdraw(), "WAL_007", 400},
		{"DepositExpired", ErrDepositExpired(), "WAL_008", 410},
		{"PermissionDenied", ErrPermissionDenied(), "AUTH_001", 403},
		{"InvalidToken", ErrInvalidToken(), "AUTH_002", 401},
		{"InvalidSignature", ErrInvalidSignature(), "AUTH_003", 401},
		{"RateLimited", ErrRateLimitExceeded(), "AUTH_004", 429},
		{"DuplicateReference", ErrDuplicateReference(), "WAL_011", 409},
		{"AmountMismatch", ErrAmountMismatch(), "WAL_012", 409},
		{"IdempotencyConflict", ErrIdempotencyConflict(), "WAL_010", 422},
		{"ExternalUnavailable", ErrExternalUnavailable("telegram", nil), "EXT_001", 502},
		{"LedgerMismatch", ErrLedgerMismatch(nil), "SYS_002", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("withdraw: %w", ErrInsufficientBalance())

	assert.True(t, HasCode(wrapped, CodeInsufficientBalance))
	assert.False(t, HasCode(wrapped, CodeWalletLocked))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.Equal(t, CodeInsufficientBalance, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestLocalize(t *testing.T) {
	assert.Equal(t, "Số dư ví không đủ", Localize(ErrInsufficientBalance(), "vi-VN,vi;q=0.9"))
	assert.Equal(t, "Insufficient balance in wallet", Localize(ErrInsufficientBalance(), "en-US"))
	assert.Equal(t, "wallet not found", Localize(ErrNotFound("wallet"), ""))

	internal := InternalError(fmt.Errorf("pq: relation does not exist"))
	assert.Equal(t, genericMessage, Localize(internal, "en"))
	assert.NotContains(t, Localize(internal, "vi"), "relation")
}

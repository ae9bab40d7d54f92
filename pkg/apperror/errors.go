package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Callers match on these through HasCode.
const (
	CodeInvalidAmount       = "WAL_001"
	CodeWalletLocked        = "WAL_002"
	CodeWrongPassword       = "WAL_003"
	CodeInsufficientBalance = "WAL_004"
	CodeNotFound            = "WAL_005"
	CodeNotPending          = "WAL_006"
	CodeNotWithdraw         = "WAL_007"
	CodeDepositExpired      = "WAL_008"
	CodeValidation          = "WAL_009"
	CodeIdempotencyConflict = "WAL_010"
	CodeDuplicateReference  = "WAL_011"
	CodeAmountMismatch      = "WAL_012"

	CodePermissionDenied = "AUTH_001"
	CodeInvalidToken     = "AUTH_002"
	CodeInvalidSignature = "AUTH_003"
	CodeRateLimited      = "AUTH_004"

	CodeExternalUnavailable = "EXT_001"

	CodeInternal       = "SYS_001"
	CodeLedgerMismatch = "SYS_002"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Wallet business rules (WAL) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrWalletLocked() *AppError {
	return New(CodeWalletLocked, "Wallet is locked", http.StatusForbidden)
}

func ErrWrongPassword() *AppError {
	return New(CodeWrongPassword, "Wrong wallet password", http.StatusUnauthorized)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrNotPending() *AppError {
	return New(CodeNotPending, "Transaction is no longer pending", http.StatusConflict)
}

func ErrNotWithdraw() *AppError {
	return New(CodeNotWithdraw, "Transaction is not a withdrawal", http.StatusBadRequest)
}

func ErrDepositExpired() *AppError {
	return New(CodeDepositExpired, "Deposit order has expired", http.StatusGone)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ErrDuplicateReference means a deposit order already carries the payment reference.
func ErrDuplicateReference() *AppError {
	return New(CodeDuplicateReference, "Payment reference is already in use", http.StatusConflict)
}

// ErrAmountMismatch means the paid amount differs from the deposit order.
func ErrAmountMismatch() *AppError {
	return New(CodeAmountMismatch, "Paid amount does not match the deposit order", http.StatusConflict)
}

// ErrIdempotencyConflict means an Idempotency-Key was reused with a different request.
func ErrIdempotencyConflict() *AppError {
	return New(CodeIdempotencyConflict, "Idempotency key was already used for a different request", http.StatusUnprocessableEntity)
}

// ---- Authorization (AUTH) ----

func ErrPermissionDenied() *AppError {
	return New(CodePermissionDenied, "Permission denied", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid request signature", http.StatusUnauthorized)
}

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Too many requests", http.StatusTooManyRequests)
}

// ---- External collaborators (EXT) ----

func ErrExternalUnavailable(service string, err error) *AppError {
	return Wrap(CodeExternalUnavailable, fmt.Sprintf("%s unavailable", service), http.StatusBadGateway, err)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ErrLedgerMismatch signals that a wallet balance disagrees with its transaction log.
func ErrLedgerMismatch(err error) *AppError {
	return Wrap(CodeLedgerMismatch, "Ledger inconsistency detected", http.StatusInternalServerError, err)
}

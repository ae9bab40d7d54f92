package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"
	"adwallet/internal/metrics"
	"adwallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultDepositExpiry = 30 * time.Minute
	expireBatchSize      = 200

	defaultListLimit = 50
	maxListLimit     = 200
)

// Operation labels for the wallet metrics.
const (
	opCreateWallet   = "create_wallet"
	opLockWallet     = "lock_wallet"
	opUnlockWallet   = "unlock_wallet"
	opTopUp          = "topup"
	opWithdraw       = "withdraw"
	opDepositOrder   = "deposit_order"
	opApproveDeposit = "approve_deposit"
	opCancelDeposit  = "cancel_deposit"
	opWithdrawOrder  = "withdraw_order"
	opApproveWithdr  = "approve_withdraw"
	opCancelWithdraw = "cancel_withdraw"
	opPurchase       = "purchase"
	opExpireDeposits = "expire_deposits"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo    ports.WalletRepository
	txRepo        ports.TransactionRepository
	subRepo       ports.SubscriptionRepository
	transactor    ports.DBTransactor
	hashSvc       ports.HashService
	depositExpiry time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	subRepo ports.SubscriptionRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	cfg config.WalletConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	expiry := cfg.DepositExpiry
	if expiry <= 0 {
		expiry = defaultDepositExpiry
	}
	return &WalletServiceImpl{
		walletRepo:    walletRepo,
		txRepo:        txRepo,
		subRepo:       subRepo,
		transactor:    transactor,
		hashSvc:       hashSvc,
		depositExpiry: expiry,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
	}
}

// CreateWallet opens a wallet for the customer. Calling it again returns the
// existing wallet unchanged.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID, password *string) (w *domain.Wallet, err error) {
	defer s.observe(opCreateWallet, &err)

	if !domain.CanAct(actor, customerID) {
		return nil, apperror.ErrPermissionDenied()
	}

	var passwordHash *string
	if password != nil && *password != "" {
		h, err := s.hashSvc.Hash(*password)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("hash wallet password: %w", err))
		}
		passwordHash = &h
	}

	now := s.now()
	wallet := &domain.Wallet{
		ID:           uuid.New(),
		UserID:       customerID,
		Balance:      decimal.Zero,
		Status:       domain.WalletStatusActive,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.walletRepo.Create(ctx, wallet)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	if !created {
		existing, err := s.walletRepo.GetByUserID(ctx, customerID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
		}
		if existing == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		return existing, nil
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", customerID.String()).
		Msg("wallet created")

	return wallet, nil
}

// GetWallet returns the customer's wallet.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID) (*domain.Wallet, error) {
	if !domain.CanAct(actor, customerID) {
		return nil, apperror.ErrPermissionDenied()
	}
	wallet, err := s.walletRepo.GetByUserID(ctx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListTransactions returns the wallet's ledger entries, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, actor domain.Actor, customerID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	wallet, err := s.GetWallet(ctx, actor, customerID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.txRepo.ListByWallet(ctx, wallet.ID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// LockWallet stops all money movements out of and into the wallet.
func (s *WalletServiceImpl) LockWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID) (err error) {
	defer s.observe(opLockWallet, &err)
	return s.setWalletStatus(ctx, actor, customerID, domain.WalletStatusLocked)
}

// UnlockWallet re-activates a locked wallet.
func (s *WalletServiceImpl) UnlockWallet(ctx context.Context, actor domain.Actor, customerID uuid.UUID) (err error) {
	defer s.observe(opUnlockWallet, &err)
	return s.setWalletStatus(ctx, actor, customerID, domain.WalletStatusActive)
}

func (s *WalletServiceImpl) setWalletStatus(ctx context.Context, actor domain.Actor, customerID uuid.UUID, status domain.WalletStatus) error {
	if !actor.IsStaff() {
		return apperror.ErrPermissionDenied()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, customerID)
	if err != nil {
		return err
	}
	if wallet.Status == status {
		return nil
	}

	if err := s.walletRepo.UpdateStatus(ctx, dbTx, wallet.ID, status); err != nil {
		return apperror.InternalError(fmt.Errorf("update wallet status: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("status", string(status)).
		Msg("wallet status changed")

	return nil
}

// TopUp credits the wallet directly with a COMPLETED entry.
func (s *WalletServiceImpl) TopUp(ctx context.Context, actor domain.Actor, customerID uuid.UUID, amount decimal.Decimal) (txn *domain.Transaction, err error) {
	defer s.observe(opTopUp, &err)

	if !actor.IsStaff() {
		return nil, apperror.ErrPermissionDenied()
	}
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, customerID)
	if err != nil {
		return nil, err
	}
	if wallet.IsLocked() {
		return nil, apperror.ErrWalletLocked()
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}

	now := s.now()
	txn = &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Amount:      amount,
		Type:        domain.TransactionTypeTopup,
		Status:      domain.TransactionStatusCompleted,
		Description: "Wallet top-up",
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	if err := s.applyEntry(ctx, dbTx, wallet, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", amount.String()).
		Msg("wallet topped up")

	return txn, nil
}

// Withdraw debits the wallet directly with a COMPLETED entry.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, actor domain.Actor, req ports.WithdrawRequest) (txn *domain.Transaction, err error) {
	defer s.observe(opWithdraw, &err)

	if !actor.IsStaff() {
		return nil, apperror.ErrPermissionDenied()
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDebit(wallet, req.Amount, req.Password); err != nil {
		return nil, err
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Wallet withdrawal"
	}
	now := s.now()
	txn = &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Amount:      req.Amount.Neg(),
		Type:        domain.TransactionTypeWithdraw,
		Status:      domain.TransactionStatusCompleted,
		Description: description,
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	if err := s.applyEntry(ctx, dbTx, wallet, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("wallet withdrawal completed")

	return txn, nil
}

// CreateDepositOrder records a PENDING credit awaiting the payment provider.
// The balance moves only when the deposit is approved.
func (s *WalletServiceImpl) CreateDepositOrder(ctx context.Context, actor domain.Actor, req ports.DepositOrderRequest) (txn *domain.Transaction, err error) {
	defer s.observe(opDepositOrder, &err)

	if !domain.CanAct(actor, req.CustomerID) {
		return nil, apperror.ErrPermissionDenied()
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.ExternalRef == "" {
		return nil, apperror.Validation("external reference is required")
	}
	// The unique index on deposit references settles races; this is the
	// common case with a clean error.
	existing, err := s.txRepo.GetByReference(ctx, domain.TransactionTypeDeposit, req.ExternalRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get deposit by reference: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateReference()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if wallet.IsLocked() {
		return nil, apperror.ErrWalletLocked()
	}

	now := s.now()
	expiresAt := now.Add(s.depositExpiry)
	ref := req.ExternalRef
	txn = &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Amount:      req.Amount,
		Type:        domain.TransactionTypeDeposit,
		Status:      domain.TransactionStatusPending,
		ReferenceID: &ref,
		Network:     req.Network,
		ExpiresAt:   &expiresAt,
		Description: "Deposit order",
		CreatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return nil, apperror.ErrDuplicateReference()
		}
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("external_ref", ref).
		Time("expires_at", expiresAt).
		Msg("deposit order created")

	return txn, nil
}

// ApproveDeposit credits a PENDING deposit exactly once. A second call on the
// same transaction fails with NotPending.
func (s *WalletServiceImpl) ApproveDeposit(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (*domain.Transaction, error) {
	return s.approveDeposit(ctx, actor, transactionID, nil)
}

// approveDeposit credits a PENDING deposit. A non-nil paid amount must equal
// the order amount or the order stays PENDING.
func (s *WalletServiceImpl) approveDeposit(ctx context.Context, actor domain.Actor, transactionID uuid.UUID, paid *decimal.Decimal) (txn *domain.Transaction, err error) {
	defer s.observe(opApproveDeposit, &err)

	if !actor.IsStaff() {
		return nil, apperror.ErrPermissionDenied()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, wallet, err := s.lockEntry(ctx, dbTx, transactionID, domain.TransactionTypeDeposit)
	if err != nil {
		return nil, err
	}
	if !txn.IsPending() {
		return nil, apperror.ErrNotPending()
	}
	now := s.now()
	if txn.IsExpired(now) {
		return nil, apperror.ErrDepositExpired()
	}
	if paid != nil && !paid.Equal(txn.Amount) {
		s.log.Warn().
			Str("tx_id", txn.ID.String()).
			Str("paid", paid.String()).
			Str("ordered", txn.Amount.String()).
			Msg("paid amount differs from the deposit order, left pending")
		return nil, apperror.ErrAmountMismatch()
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, dbTx, txn, domain.TransactionStatusApproved, nil); err != nil {
		return nil, err
	}
	newBalance := wallet.Balance.Add(txn.Amount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.ProcessedAt = &now
	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", txn.Amount.String()).
		Msg("deposit approved")

	return txn, nil
}

// ApproveDepositByReference approves the deposit carrying the payment
// provider's reference. paidAmount must equal the order amount.
func (s *WalletServiceImpl) ApproveDepositByReference(ctx context.Context, actor domain.Actor, externalRef string, paidAmount decimal.Decimal) (*domain.Transaction, error) {
	if !actor.IsStaff() {
		return nil, apperror.ErrPermissionDenied()
	}
	if !paidAmount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	txn, err := s.txRepo.GetByReference(ctx, domain.TransactionTypeDeposit, externalRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get deposit by reference: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("deposit")
	}
	return s.approveDeposit(ctx, actor, txn.ID, &paidAmount)
}

// CancelDeposit abandons a PENDING deposit. Funds never moved, so the
// balance is untouched.
func (s *WalletServiceImpl) CancelDeposit(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (txn *domain.Transaction, err error) {
	defer s.observe(opCancelDeposit, &err)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, wallet, err := s.lockEntry(ctx, dbTx, transactionID, domain.TransactionTypeDeposit)
	if err != nil {
		return nil, err
	}
	if !domain.CanAct(actor, wallet.UserID) {
		return nil, apperror.ErrPermissionDenied()
	}
	if !txn.IsPending() {
		return nil, apperror.ErrNotPending()
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, dbTx, txn, domain.TransactionStatusCancelled, nil); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Msg("deposit cancelled")

	return txn, nil
}

// CreateWithdrawOrder debits the wallet immediately and records a PENDING
// entry. The funds stay in escrow until the payout is confirmed or cancelled.
func (s *WalletServiceImpl) CreateWithdrawOrder(ctx context.Context, actor domain.Actor, req ports.WithdrawOrderRequest) (txn *domain.Transaction, err error) {
	defer s.observe(opWithdrawOrder, &err)

	if !domain.CanAct(actor, req.CustomerID) {
		return nil, apperror.ErrPermissionDenied()
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Destination == "" {
		return nil, apperror.Validation("withdraw destination is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDebit(wallet, req.Amount, req.Password); err != nil {
		return nil, err
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}

	destination := req.Destination
	txn = &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Amount:      req.Amount.Neg(),
		Type:        domain.TransactionTypeWithdraw,
		Status:      domain.TransactionStatusPending,
		Network:     &destination,
		Description: "Withdraw order",
		CreatedAt:   s.now(),
	}
	if err := s.applyEntry(ctx, dbTx, wallet, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("withdraw order created")

	return txn, nil
}

// ApproveWithdraw confirms the payout of a withdraw order. The balance was
// already debited when the order was created.
func (s *WalletServiceImpl) ApproveWithdraw(ctx context.Context, actor domain.Actor, transactionID uuid.UUID, externalRef *string) (txn *domain.Transaction, err error) {
	defer s.observe(opApproveWithdr, &err)

	if !actor.IsStaff() {
		return nil, apperror.ErrPermissionDenied()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, wallet, err := s.lockEntry(ctx, dbTx, transactionID, domain.TransactionTypeWithdraw)
	if err != nil {
		return nil, err
	}
	if !txn.IsPending() {
		return nil, apperror.ErrNotPending()
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, dbTx, txn, domain.TransactionStatusCompleted, externalRef); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Msg("withdraw order completed")

	return txn, nil
}

// CancelWithdraw refunds the escrowed amount of a PENDING withdraw order.
func (s *WalletServiceImpl) CancelWithdraw(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (txn *domain.Transaction, err error) {
	defer s.observe(opCancelWithdraw, &err)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, wallet, err := s.lockEntry(ctx, dbTx, transactionID, domain.TransactionTypeWithdraw)
	if err != nil {
		return nil, err
	}
	if !domain.CanAct(actor, wallet.UserID) {
		return nil, apperror.ErrPermissionDenied()
	}
	if !txn.IsPending() {
		return nil, apperror.ErrNotPending()
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, dbTx, txn, domain.TransactionStatusCancelled, nil); err != nil {
		return nil, err
	}
	newBalance := wallet.Balance.Add(txn.Amount.Abs())
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("refund", txn.Amount.Abs().String()).
		Msg("withdraw order cancelled")

	return txn, nil
}

// PurchaseDebit buys a service package: it debits the wallet, creates the
// subscription and appends the SERVICE_PURCHASE entry in one transaction.
func (s *WalletServiceImpl) PurchaseDebit(ctx context.Context, actor domain.Actor, req ports.PurchaseRequest) (sub *domain.ServiceSubscription, err error) {
	defer s.observe(opPurchase, &err)

	if !domain.CanAct(actor, req.CustomerID) {
		return nil, apperror.ErrPermissionDenied()
	}
	if !req.TotalCost.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.PackageID == "" {
		return nil, apperror.Validation("package is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if wallet.IsLocked() {
		return nil, apperror.ErrWalletLocked()
	}
	if !wallet.CanCover(req.TotalCost) {
		return nil, apperror.ErrInsufficientBalance()
	}
	if err := s.verifyLedger(ctx, dbTx, wallet); err != nil {
		return nil, err
	}

	now := s.now()
	sub = &domain.ServiceSubscription{
		ID:        uuid.New(),
		UserID:    req.CustomerID,
		PackageID: req.PackageID,
		TotalCost: req.TotalCost,
		Status:    domain.SubscriptionStatusActive,
		CreatedAt: now,
	}
	if err := s.subRepo.Create(ctx, dbTx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create subscription: %w", err))
	}

	subRef := sub.ID.String()
	txn := &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Amount:      req.TotalCost.Neg(),
		Type:        domain.TransactionTypeServicePurchase,
		Status:      domain.TransactionStatusCompleted,
		ReferenceID: &subRef,
		Description: "Service purchase: " + req.PackageID,
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	if err := s.applyEntry(ctx, dbTx, wallet, txn); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("subscription_id", sub.ID.String()).
		Str("amount", req.TotalCost.String()).
		Msg("service purchased")

	return sub, nil
}

// ExpireDeposits cancels PENDING deposits whose expiry has passed. Each
// deposit is handled in its own transaction; one failure does not stop the rest.
func (s *WalletServiceImpl) ExpireDeposits(ctx context.Context, actor domain.Actor, now time.Time) (expired int, err error) {
	defer s.observe(opExpireDeposits, &err)

	if !actor.IsStaff() {
		return 0, apperror.ErrPermissionDenied()
	}

	candidates, err := s.txRepo.ListExpiredDeposits(ctx, now, expireBatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list expired deposits: %w", err))
	}

	for i := range candidates {
		ok, err := s.expireDeposit(ctx, candidates[i].ID, now)
		if err != nil {
			s.log.Warn().Err(err).Str("tx_id", candidates[i].ID.String()).Msg("failed to expire deposit")
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expired pending deposits")
	}
	return expired, nil
}

func (s *WalletServiceImpl) expireDeposit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return false, fmt.Errorf("lock transaction: %w", err)
	}
	if txn == nil || !txn.IsPending() || !txn.IsExpired(now) {
		return false, nil
	}

	swapped, err := s.txRepo.CompareAndSetStatus(ctx, dbTx, id, domain.TransactionStatusPending, domain.TransactionStatusCancelled, nil)
	if err != nil {
		return false, fmt.Errorf("cancel deposit: %w", err)
	}
	if !swapped {
		return false, nil
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// Reconcile compares the wallet balance with the sum of its ledger entries
// under the wallet lock. A mismatch is reported, not repaired.
func (s *WalletServiceImpl) Reconcile(ctx context.Context, actor domain.Actor, customerID uuid.UUID) (*ports.ReconcileReport, error) {
	if !actor.IsStaff() {
		return nil, apperror.ErrPermissionDenied()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockCustomerWallet(ctx, dbTx, customerID)
	if err != nil {
		return nil, err
	}
	sum, err := s.txRepo.SumAffectingBalance(ctx, dbTx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum ledger: %w", err))
	}

	report := &ports.ReconcileReport{
		WalletID:  wallet.ID,
		Balance:   wallet.Balance,
		LedgerSum: sum,
		Balanced:  wallet.Balance.Equal(sum),
	}
	if !report.Balanced {
		s.log.Error().
			Str("wallet_id", wallet.ID.String()).
			Str("balance", wallet.Balance.String()).
			Str("ledger_sum", sum.String()).
			Msg("wallet ledger out of balance")
	}
	return report, nil
}

// lockCustomerWallet locks the customer's wallet row for the rest of dbTx.
func (s *WalletServiceImpl) lockCustomerWallet(ctx context.Context, dbTx pgx.Tx, customerID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, customerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// lockEntry locks a transaction row and then its wallet row. Entries are
// always locked before wallets so concurrent operations cannot deadlock.
func (s *WalletServiceImpl) lockEntry(ctx context.Context, dbTx pgx.Tx, id uuid.UUID, want domain.TransactionType) (*domain.Transaction, *domain.Wallet, error) {
	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, nil, apperror.ErrNotFound("transaction")
	}
	if txn.Type != want {
		if want == domain.TransactionTypeWithdraw {
			return nil, nil, apperror.ErrNotWithdraw()
		}
		return nil, nil, apperror.Validation("transaction is not a deposit")
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, txn.WalletID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}
	return txn, wallet, nil
}

// checkDebit applies the withdraw rules in order: locked, password, balance.
func (s *WalletServiceImpl) checkDebit(wallet *domain.Wallet, amount decimal.Decimal, password *string) error {
	if wallet.IsLocked() {
		return apperror.ErrWalletLocked()
	}
	if wallet.HasPassword() {
		if password == nil {
			return apperror.ErrWrongPassword()
		}
		ok, err := s.hashSvc.Verify(*password, *wallet.PasswordHash)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("verify wallet password: %w", err))
		}
		if !ok {
			return apperror.ErrWrongPassword()
		}
	}
	if !wallet.CanCover(amount) {
		return apperror.ErrInsufficientBalance()
	}
	return nil
}

// verifyLedger refuses to mutate a wallet whose locked balance disagrees
// with its transaction log.
func (s *WalletServiceImpl) verifyLedger(ctx context.Context, dbTx pgx.Tx, wallet *domain.Wallet) error {
	sum, err := s.txRepo.SumAffectingBalance(ctx, dbTx, wallet.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum ledger: %w", err))
	}
	if !sum.Equal(wallet.Balance) {
		s.log.Error().
			Str("wallet_id", wallet.ID.String()).
			Str("balance", wallet.Balance.String()).
			Str("ledger_sum", sum.String()).
			Msg("ledger mismatch, refusing mutation")
		return apperror.ErrLedgerMismatch(fmt.Errorf("wallet %s: balance %s, ledger %s", wallet.ID, wallet.Balance, sum))
	}
	return nil
}

// applyEntry writes the new balance and appends txn in dbTx. The balance
// must stay non-negative.
func (s *WalletServiceImpl) applyEntry(ctx context.Context, dbTx pgx.Tx, wallet *domain.Wallet, txn *domain.Transaction) error {
	newBalance := wallet.Balance.Add(txn.Amount)
	if newBalance.IsNegative() {
		return apperror.ErrInsufficientBalance()
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	wallet.Balance = newBalance
	return nil
}

// transition moves txn out of PENDING. The compare-and-swap makes a lost
// race surface as NotPending.
func (s *WalletServiceImpl) transition(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction, to domain.TransactionStatus, referenceID *string) error {
	if !txn.CanTransition(to) {
		return apperror.ErrNotPending()
	}
	swapped, err := s.txRepo.CompareAndSetStatus(ctx, dbTx, txn.ID, domain.TransactionStatusPending, to, referenceID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("update transaction status: %w", err))
	}
	if !swapped {
		return apperror.ErrNotPending()
	}
	txn.Status = to
	if referenceID != nil {
		txn.ReferenceID = referenceID
	}
	return nil
}

func (s *WalletServiceImpl) observe(op string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = apperror.CodeOf(*err)
		if outcome == "" {
			outcome = apperror.CodeInternal
		}
	}
	metrics.WalletOperations.WithLabelValues(op, outcome).Inc()
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"
	"adwallet/internal/core/ports/mocks"
	"adwallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	subRepo    *mocks.MockSubscriptionRepository
	transactor *mocks.MockDBTransactor
	hashSvc    *mocks.MockHashService
	tx         *recordingTx
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		subRepo:    mocks.NewMockSubscriptionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		tx:         &recordingTx{},
	}
	d.svc = NewWalletService(
		d.walletRepo, d.txRepo, d.subRepo, d.transactor, d.hashSvc,
		config.WalletConfig{}, zerolog.Nop(),
	)
	return d
}

// recordingTx implements pgx.Tx and remembers how the unit ended.
type recordingTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (m *recordingTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func (m *recordingTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

func activeWallet(userID uuid.UUID, balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.RequireFromString(balance),
		Status:  domain.WalletStatusActive,
	}
}

func TestNewWalletService_DefaultDepositExpiry(t *testing.T) {
	d := setupWalletService(t)
	assert.Equal(t, 30*time.Minute, d.svc.depositExpiry)
}

func TestWalletService_CreateWallet_HashesPassword(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	pw := "hunter2"

	d.hashSvc.EXPECT().Hash(pw).Return("$argon2id$hashed", nil)
	d.walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, w *domain.Wallet) (bool, error) {
			assert.Equal(t, userID, w.UserID)
			assert.True(t, w.Balance.IsZero())
			assert.Equal(t, domain.WalletStatusActive, w.Status)
			require.NotNil(t, w.PasswordHash)
			assert.Equal(t, "$argon2id$hashed", *w.PasswordHash)
			return true, nil
		})

	w, err := d.svc.CreateWallet(context.Background(), customer(userID), userID, &pw)
	require.NoError(t, err)
	assert.True(t, w.HasPassword())
}

func TestWalletService_CreateWallet_ReturnsExisting(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	existing := activeWallet(userID, "42")

	d.walletRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(false, nil)
	d.walletRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(existing, nil)

	w, err := d.svc.CreateWallet(context.Background(), admin, userID, nil)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, w.ID)
}

func TestWalletService_CreateWallet_PermissionDenied(t *testing.T) {
	d := setupWalletService(t)

	_, err := d.svc.CreateWallet(context.Background(), customer(uuid.New()), uuid.New(), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodePermissionDenied))
}

func TestWalletService_TopUp_Validation(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()

	tests := []struct {
		name   string
		actor  domain.Actor
		amount decimal.Decimal
		code   string
	}{
		{"customer cannot top up", customer(userID), decimal.NewFromInt(10), apperror.CodePermissionDenied},
		{"zero amount", admin, decimal.Zero, apperror.CodeInvalidAmount},
		{"negative amount", admin, decimal.NewFromInt(-5), apperror.CodeInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.TopUp(context.Background(), tt.actor, userID, tt.amount)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestWalletService_TopUp_WalletNotFound(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(nil, nil)

	_, err := d.svc.TopUp(context.Background(), admin, userID, decimal.NewFromInt(10))
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	assert.True(t, d.tx.rolledBack)
}

func TestWalletService_TopUp_LedgerMismatchRollsBack(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	wallet := activeWallet(userID, "100")

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(wallet, nil)
	d.txRepo.EXPECT().SumAffectingBalance(gomock.Any(), d.tx, wallet.ID).Return(decimal.NewFromInt(90), nil)

	_, err := d.svc.TopUp(context.Background(), admin, userID, decimal.NewFromInt(10))
	assert.True(t, apperror.HasCode(err, apperror.CodeLedgerMismatch))
	assert.False(t, d.tx.committed)
	assert.True(t, d.tx.rolledBack)
}

func TestWalletService_TopUp_Success(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	wallet := activeWallet(userID, "100")

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(wallet, nil)
	d.txRepo.EXPECT().SumAffectingBalance(gomock.Any(), d.tx, wallet.ID).Return(decimal.NewFromInt(100), nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), d.tx, wallet.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, b decimal.Decimal) error {
			assert.True(t, b.Equal(decimal.RequireFromString("110.5")))
			return nil
		})
	d.txRepo.EXPECT().Create(gomock.Any(), d.tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeTopup, txn.Type)
			assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
			assert.Equal(t, wallet.ID, txn.WalletID)
			return nil
		})

	txn, err := d.svc.TopUp(context.Background(), admin, userID, decimal.RequireFromString("10.5"))
	require.NoError(t, err)
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, d.tx.committed)
}

func TestWalletService_Withdraw_WrongPassword(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	wallet := activeWallet(userID, "100")
	hash := "$argon2id$stored"
	wallet.PasswordHash = &hash
	pw := "nope"

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(wallet, nil)
	d.hashSvc.EXPECT().Verify(pw, hash).Return(false, nil)

	_, err := d.svc.Withdraw(context.Background(), admin, ports.WithdrawRequest{
		CustomerID: userID, Amount: decimal.NewFromInt(10), Password: &pw,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeWrongPassword))
}

func TestWalletService_Withdraw_InsufficientBalance(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	wallet := activeWallet(userID, "5")

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(wallet, nil)

	_, err := d.svc.Withdraw(context.Background(), admin, ports.WithdrawRequest{
		CustomerID: userID, Amount: decimal.NewFromInt(10),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientBalance))
}

func TestWalletService_ApproveDeposit_LostRace(t *testing.T) {
	d := setupWalletService(t)
	wallet := activeWallet(uuid.New(), "0")
	expires := time.Now().Add(time.Hour)
	txn := &domain.Transaction{
		ID: uuid.New(), WalletID: wallet.ID, Amount: decimal.NewFromInt(20),
		Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, ExpiresAt: &expires,
	}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().SumAffectingBalance(gomock.Any(), d.tx, wallet.ID).Return(decimal.Zero, nil)
	d.txRepo.EXPECT().CompareAndSetStatus(gomock.Any(), d.tx, txn.ID,
		domain.TransactionStatusPending, domain.TransactionStatusApproved, nil).Return(false, nil)

	_, err := d.svc.ApproveDeposit(context.Background(), domain.SystemActor, txn.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotPending))
	assert.False(t, d.tx.committed)
}

func TestWalletService_CreateDepositOrder_ReferenceTakenConcurrently(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	wallet := activeWallet(userID, "0")

	d.txRepo.EXPECT().GetByReference(gomock.Any(), domain.TransactionTypeDeposit, "PAY-77").Return(nil, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(wallet, nil)
	d.txRepo.EXPECT().Create(gomock.Any(), d.tx, gomock.Any()).Return(ports.ErrDuplicateReference)

	_, err := d.svc.CreateDepositOrder(context.Background(), customer(userID), ports.DepositOrderRequest{
		CustomerID: userID, Amount: decimal.NewFromInt(50), ExternalRef: "PAY-77",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateReference))
	assert.False(t, d.tx.committed)
	assert.True(t, d.tx.rolledBack)
}

func TestWalletService_ApproveDepositByReference_MismatchDoesNotCredit(t *testing.T) {
	d := setupWalletService(t)
	wallet := activeWallet(uuid.New(), "0")
	expires := time.Now().Add(time.Hour)
	txn := &domain.Transaction{
		ID: uuid.New(), WalletID: wallet.ID, Amount: decimal.NewFromInt(1000),
		Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, ExpiresAt: &expires,
	}

	d.txRepo.EXPECT().GetByReference(gomock.Any(), domain.TransactionTypeDeposit, "PAY-88").Return(txn, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, wallet.ID).Return(wallet, nil)

	_, err := d.svc.ApproveDepositByReference(context.Background(), domain.SystemActor, "PAY-88", decimal.NewFromInt(10))
	assert.True(t, apperror.HasCode(err, apperror.CodeAmountMismatch))
	assert.False(t, d.tx.committed)
}

func TestWalletService_ApproveDeposit_RejectsCustomer(t *testing.T) {
	d := setupWalletService(t)

	_, err := d.svc.ApproveDeposit(context.Background(), customer(uuid.New()), uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodePermissionDenied))
}

func TestWalletService_ApproveDeposit_WrongType(t *testing.T) {
	d := setupWalletService(t)
	txn := &domain.Transaction{
		ID: uuid.New(), WalletID: uuid.New(), Amount: decimal.NewFromInt(-20),
		Type: domain.TransactionTypeWithdraw, Status: domain.TransactionStatusPending,
	}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, txn.ID).Return(txn, nil)

	_, err := d.svc.ApproveDeposit(context.Background(), admin, txn.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestWalletService_ApproveWithdraw_NotWithdraw(t *testing.T) {
	d := setupWalletService(t)
	txn := &domain.Transaction{
		ID: uuid.New(), WalletID: uuid.New(), Amount: decimal.NewFromInt(20),
		Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending,
	}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, txn.ID).Return(txn, nil)

	_, err := d.svc.ApproveWithdraw(context.Background(), admin, txn.ID, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotWithdraw))
}

func TestWalletService_ApproveWithdraw_StoresExternalRef(t *testing.T) {
	d := setupWalletService(t)
	wallet := activeWallet(uuid.New(), "40")
	txn := &domain.Transaction{
		ID: uuid.New(), WalletID: wallet.ID, Amount: decimal.NewFromInt(-60),
		Type: domain.TransactionTypeWithdraw, Status: domain.TransactionStatusPending,
	}
	ref := "BANK-778"

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, txn.ID).Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().SumAffectingBalance(gomock.Any(), d.tx, wallet.ID).Return(decimal.NewFromInt(40), nil)
	d.txRepo.EXPECT().CompareAndSetStatus(gomock.Any(), d.tx, txn.ID,
		domain.TransactionStatusPending, domain.TransactionStatusCompleted, &ref).Return(true, nil)

	got, err := d.svc.ApproveWithdraw(context.Background(), admin, txn.ID, &ref)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.ReferenceID)
	assert.Equal(t, ref, *got.ReferenceID)
	assert.True(t, d.tx.committed)
}

func TestWalletService_PurchaseDebit_SubscriptionFailureRollsBack(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()
	wallet := activeWallet(userID, "100")

	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(gomock.Any(), d.tx, userID).Return(wallet, nil)
	d.txRepo.EXPECT().SumAffectingBalance(gomock.Any(), d.tx, wallet.ID).Return(decimal.NewFromInt(100), nil)
	d.subRepo.EXPECT().Create(gomock.Any(), d.tx, gomock.Any()).Return(errors.New("insert failed"))

	_, err := d.svc.PurchaseDebit(context.Background(), customer(userID), ports.PurchaseRequest{
		CustomerID: userID, PackageID: "fb-starter", TotalCost: decimal.NewFromInt(30),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
	assert.False(t, d.tx.committed)
	assert.True(t, d.tx.rolledBack)
}

func TestWalletService_ExpireDeposits_ContinuesAfterFailure(t *testing.T) {
	d := setupWalletService(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	first := domain.Transaction{ID: uuid.New(), Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, ExpiresAt: &past}
	second := domain.Transaction{ID: uuid.New(), Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, ExpiresAt: &past}

	d.txRepo.EXPECT().ListExpiredDeposits(gomock.Any(), now, expireBatchSize).Return([]domain.Transaction{first, second}, nil)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("pool exhausted"))
	d.transactor.EXPECT().Begin(gomock.Any()).Return(d.tx, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), d.tx, second.ID).Return(&second, nil)
	d.txRepo.EXPECT().CompareAndSetStatus(gomock.Any(), d.tx, second.ID,
		domain.TransactionStatusPending, domain.TransactionStatusCancelled, nil).Return(true, nil)

	n, err := d.svc.ExpireDeposits(context.Background(), domain.SystemActor, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, d.tx.committed)
}

func TestWalletService_Reconcile_RequiresStaff(t *testing.T) {
	d := setupWalletService(t)
	userID := uuid.New()

	_, err := d.svc.Reconcile(context.Background(), customer(userID), userID)
	assert.True(t, apperror.HasCode(err, apperror.CodePermissionDenied))
}

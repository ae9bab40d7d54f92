package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(walletID uuid.UUID) *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	expires := now.Add(30 * time.Minute)
	return &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    walletID,
		Amount:      decimal.RequireFromString("200.00"),
		Type:        domain.TransactionTypeDeposit,
		Status:      domain.TransactionStatusPending,
		ReferenceID: strPtr("PAY-001"),
		Network:     strPtr("bank_transfer"),
		ExpiresAt:   &expires,
		Description: "Deposit order",
		CreatedAt:   now,
	}
}

func txColumns() []string {
	return []string{"id", "wallet_id", "amount", "type", "status", "reference_id", "network",
		"expires_at", "description", "created_at", "processed_at"}
}

func txRow(rows *pgxmock.Rows, t *domain.Transaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.WalletID, t.Amount, string(t.Type), string(t.Status), t.ReferenceID, t.Network,
		t.ExpiresAt, t.Description, t.CreatedAt, t.ProcessedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(
			txn.ID, txn.WalletID, txn.Amount, txn.Type, txn.Status, txn.ReferenceID, txn.Network,
			txn.ExpiresAt, txn.Description, txn.CreatedAt, txn.ProcessedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_DuplicateDepositReference(t *testing.T) {
	tests := []struct {
		name    string
		pgErr   error
		wantDup bool
	}{
		{"deposit reference taken", &pgconn.PgError{Code: "23505", ConstraintName: "uq_wallet_transactions_deposit_reference"}, true},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "wallet_transactions_pkey"}, false},
		{"connection error", errors.New("conn closed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewTransactionRepo(mock)
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO wallet_transactions").WillReturnError(tt.pgErr)

			dbTx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			err = repo.Create(context.Background(), dbTx, newTestTransaction(uuid.New()))
			require.Error(t, err)
			assert.Equal(t, tt.wantDup, errors.Is(err, ports.ErrDuplicateReference))
		})
	}
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, domain.TransactionTypeDeposit, result.Type)
	assert.Equal(t, "PAY-001", *result.ReferenceID)
	assert.True(t, txn.Amount.Equal(result.Amount))
	assert.Nil(t, result.ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE type .+ AND reference_id").
		WithArgs(domain.TransactionTypeDeposit, "PAY-001").
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	result, err := repo.GetByReference(context.Background(), domain.TransactionTypeDeposit, "PAY-001")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_CompareAndSetStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"transition applied", 1, true},
		{"already settled", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewTransactionRepo(mock)
			txID := uuid.New()
			ref := strPtr("BANK-REF-9")

			mock.ExpectBegin()
			mock.ExpectExec("UPDATE wallet_transactions SET status .+ WHERE id .+ AND status").
				WithArgs(domain.TransactionStatusCompleted, ref, txID, domain.TransactionStatusPending).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			dbTx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			ok, err := repo.CompareAndSetStatus(context.Background(), dbTx, txID,
				domain.TransactionStatusPending, domain.TransactionStatusCompleted, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionRepo_SumAffectingBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM wallet_transactions").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("159.50")))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	sum, err := repo.SumAffectingBalance(context.Background(), dbTx, walletID)
	require.NoError(t, err)
	assert.Equal(t, "159.5", sum.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListExpiredDeposits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	now := time.Now().UTC()
	a := newTestTransaction(uuid.New())
	b := newTestTransaction(uuid.New())

	rows := pgxmock.NewRows(txColumns())
	txRow(rows, a)
	txRow(rows, b)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE type = 'DEPOSIT' AND status = 'PENDING' AND expires_at").
		WithArgs(now, 100).
		WillReturnRows(rows)

	txns, err := repo.ListExpiredDeposits(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, a.ID, txns[0].ID)
	assert.Equal(t, b.ID, txns[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	txn := newTestTransaction(walletID)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE wallet_id .+ ORDER BY created_at DESC").
		WithArgs(walletID, 20, 0).
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	txns, err := repo.ListByWallet(context.Background(), walletID, 20, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, walletID, txns[0].WalletID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

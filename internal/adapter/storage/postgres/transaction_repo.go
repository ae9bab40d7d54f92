package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation          = "23505"
	depositReferenceConstraint = "uq_wallet_transactions_deposit_reference"
)

const transactionColumns = `id, wallet_id, amount, type, status, reference_id, network,
		expires_at, description, created_at, processed_at`

// TransactionRepo implements ports.TransactionRepository over wallet_transactions.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO wallet_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Amount, t.Type, t.Status, t.ReferenceID, t.Network,
		t.ExpiresAt, t.Description, t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == depositReferenceConstraint {
			return ports.ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1`
	return r.scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction row and locks it.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1 FOR UPDATE`
	return r.scanTransaction(tx.QueryRow(ctx, query, id))
}

// GetByReference fetches the transaction of a type carrying an external
// reference. Deposit references are unique.
func (r *TransactionRepo) GetByReference(ctx context.Context, txType domain.TransactionType, referenceID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE type = $1 AND reference_id = $2
		ORDER BY created_at DESC LIMIT 1`
	return r.scanTransaction(r.pool.QueryRow(ctx, query, txType, referenceID))
}

// CompareAndSetStatus moves a transaction out of status from. A nil referenceID
// keeps the stored reference.
func (r *TransactionRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus, referenceID *string) (bool, error) {
	query := `UPDATE wallet_transactions
		SET status = $1, reference_id = COALESCE($2, reference_id), processed_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, to, referenceID, id, from)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SumAffectingBalance returns the ledger sum a wallet balance must equal:
// settled entries plus pending debits held in escrow.
func (r *TransactionRepo) SumAffectingBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE wallet_id = $1
		AND (status IN ('COMPLETED', 'APPROVED') OR (status = 'PENDING' AND amount < 0))`

	var sum decimal.Decimal
	if err := tx.QueryRow(ctx, query, walletID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum wallet ledger: %w", err)
	}
	return sum, nil
}

// ListByWallet returns a page of a wallet's history, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.queryTransactions(ctx, "list wallet transactions", query, walletID, limit, offset)
}

// ListExpiredDeposits returns pending deposit orders whose expiry is before now.
func (r *TransactionRepo) ListExpiredDeposits(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE type = 'DEPOSIT' AND status = 'PENDING' AND expires_at < $1
		ORDER BY expires_at LIMIT $2`
	return r.queryTransactions(ctx, "list expired deposits", query, now, limit)
}

func (r *TransactionRepo) queryTransactions(ctx context.Context, op, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Status, &t.ReferenceID, &t.Network,
			&t.ExpiresAt, &t.Description, &t.CreatedAt, &t.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// scanTransaction is a helper to scan a single row into a Transaction.
func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Status, &t.ReferenceID, &t.Network,
		&t.ExpiresAt, &t.Description, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

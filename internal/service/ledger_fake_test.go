package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"adwallet/config"
	"adwallet/internal/core/domain"
	"adwallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory ledger store with row locks held until commit or
// rollback, used to exercise the wallet service under concurrency.
type memLedger struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.Wallet
	byUser  map[uuid.UUID]uuid.UUID
	txns    map[uuid.UUID]*domain.Transaction
	subs    map[uuid.UUID]*domain.ServiceSubscription
	locks   map[uuid.UUID]*sync.Mutex
	failOn  string
}

func newMemLedger() *memLedger {
	return &memLedger{
		wallets: make(map[uuid.UUID]*domain.Wallet),
		byUser:  make(map[uuid.UUID]uuid.UUID),
		txns:    make(map[uuid.UUID]*domain.Transaction),
		subs:    make(map[uuid.UUID]*domain.ServiceSubscription),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *memLedger) fail(op string) error {
	if l.failOn == op {
		return fmt.Errorf("%s: injected failure", op)
	}
	return nil
}

func (l *memLedger) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{l: l, held: make(map[uuid.UUID]bool)}, nil
}

// seedWallet inserts a wallet whose balance is backed by one COMPLETED top-up.
func (l *memLedger) seedWallet(userID uuid.UUID, balance decimal.Decimal) *domain.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := &domain.Wallet{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: balance,
		Status:  domain.WalletStatusActive,
	}
	l.wallets[w.ID] = w
	l.byUser[userID] = w.ID
	if balance.IsPositive() {
		id := uuid.New()
		l.txns[id] = &domain.Transaction{
			ID:        id,
			WalletID:  w.ID,
			Amount:    balance,
			Type:      domain.TransactionTypeTopup,
			Status:    domain.TransactionStatusCompleted,
			CreatedAt: time.Now().UTC(),
		}
	}
	return w
}

func (l *memLedger) balance(userID uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallets[l.byUser[userID]].Balance
}

func (l *memLedger) entries(walletID uuid.UUID) []domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Transaction
	for _, t := range l.txns {
		if t.WalletID == walletID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// reconciled reports whether every wallet balance equals its ledger sum.
func (l *memLedger) reconciled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, w := range l.wallets {
		var txns []domain.Transaction
		for _, t := range l.txns {
			if t.WalletID == id {
				txns = append(txns, *t)
			}
		}
		if !domain.LedgerSum(txns).Equal(w.Balance) || w.Balance.IsNegative() {
			return false
		}
	}
	return true
}

func (l *memLedger) walletLock(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

type memTx struct {
	pgx.Tx
	l    *memLedger
	held map[uuid.UUID]bool
	undo []func()
	done bool
}

func (t *memTx) lock(walletID uuid.UUID) {
	if t.held[walletID] {
		return
	}
	t.l.walletLock(walletID).Lock()
	t.held[walletID] = true
}

func (t *memTx) release() {
	for id := range t.held {
		t.l.walletLock(id).Unlock()
	}
	t.held = map[uuid.UUID]bool{}
	t.done = true
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if err := t.l.fail("commit"); err != nil {
		t.rollback()
		return err
	}
	t.undo = nil
	t.release()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.rollback()
	return nil
}

func (t *memTx) rollback() {
	t.l.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.l.mu.Unlock()
	t.undo = nil
	t.release()
}

func asMemTx(tx pgx.Tx) *memTx {
	return tx.(*memTx)
}

type memWalletRepo struct{ l *memLedger }

func (r memWalletRepo) Create(_ context.Context, w *domain.Wallet) (bool, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if _, ok := r.l.byUser[w.UserID]; ok {
		return false, nil
	}
	cp := *w
	r.l.wallets[w.ID] = &cp
	r.l.byUser[w.UserID] = w.ID
	return true, nil
}

func (r memWalletRepo) get(id uuid.UUID) *domain.Wallet {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	w, ok := r.l.wallets[id]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

func (r memWalletRepo) userWallet(userID uuid.UUID) (uuid.UUID, bool) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	id, ok := r.l.byUser[userID]
	return id, ok
}

func (r memWalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.get(id), nil
}

func (r memWalletRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	id, ok := r.userWallet(userID)
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

func (r memWalletRepo) GetByUserIDForUpdate(_ context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	id, ok := r.userWallet(userID)
	if !ok {
		return nil, nil
	}
	asMemTx(tx).lock(id)
	return r.get(id), nil
}

func (r memWalletRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	if r.get(id) == nil {
		return nil, nil
	}
	asMemTx(tx).lock(id)
	return r.get(id), nil
}

func (r memWalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	if err := r.l.fail("wallet.update_balance"); err != nil {
		return err
	}
	if balance.IsNegative() {
		return errors.New("wallets_balance_check violated")
	}
	mt := asMemTx(tx)
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	w := r.l.wallets[walletID]
	old := w.Balance
	w.Balance = balance
	mt.undo = append(mt.undo, func() { w.Balance = old })
	return nil
}

func (r memWalletRepo) UpdateStatus(_ context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus) error {
	mt := asMemTx(tx)
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	w := r.l.wallets[walletID]
	old := w.Status
	w.Status = status
	mt.undo = append(mt.undo, func() { w.Status = old })
	return nil
}

type memTxRepo struct{ l *memLedger }

func (r memTxRepo) Create(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if err := r.l.fail("transaction.create"); err != nil {
		return err
	}
	mt := asMemTx(tx)
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if t.Type == domain.TransactionTypeDeposit && t.ReferenceID != nil {
		for _, other := range r.l.txns {
			if other.Type == domain.TransactionTypeDeposit && other.ReferenceID != nil && *other.ReferenceID == *t.ReferenceID {
				return ports.ErrDuplicateReference
			}
		}
	}
	cp := *t
	r.l.txns[t.ID] = &cp
	mt.undo = append(mt.undo, func() { delete(r.l.txns, t.ID) })
	return nil
}

func (r memTxRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	t, ok := r.l.txns[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r memTxRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	t, _ := r.GetByID(ctx, id)
	if t == nil {
		return nil, nil
	}
	asMemTx(tx).lock(t.WalletID)
	return r.GetByID(ctx, id)
}

func (r memTxRepo) GetByReference(_ context.Context, txType domain.TransactionType, ref string) (*domain.Transaction, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, t := range r.l.txns {
		if t.Type == txType && t.ReferenceID != nil && *t.ReferenceID == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memTxRepo) CompareAndSetStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus, ref *string) (bool, error) {
	mt := asMemTx(tx)
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	t, ok := r.l.txns[id]
	if !ok || t.Status != from {
		return false, nil
	}
	prev := *t
	t.Status = to
	if ref != nil {
		t.ReferenceID = ref
	}
	now := time.Now().UTC()
	t.ProcessedAt = &now
	mt.undo = append(mt.undo, func() { *t = prev })
	return true, nil
}

func (r memTxRepo) SumAffectingBalance(_ context.Context, _ pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var txns []domain.Transaction
	for _, t := range r.l.txns {
		if t.WalletID == walletID {
			txns = append(txns, *t)
		}
	}
	return domain.LedgerSum(txns), nil
}

func (r memTxRepo) ListByWallet(_ context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	all := r.l.entries(walletID)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r memTxRepo) ListExpiredDeposits(_ context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.l.txns {
		if t.Type == domain.TransactionTypeDeposit && t.IsPending() && t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
			out = append(out, *t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memSubRepo struct{ l *memLedger }

func (r memSubRepo) Create(_ context.Context, tx pgx.Tx, sub *domain.ServiceSubscription) error {
	if err := r.l.fail("subscription.create"); err != nil {
		return err
	}
	mt := asMemTx(tx)
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	cp := *sub
	r.l.subs[sub.ID] = &cp
	mt.undo = append(mt.undo, func() { delete(r.l.subs, sub.ID) })
	return nil
}

func (r memSubRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ServiceSubscription, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	s, ok := r.l.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// plainHasher keeps password checks cheap in ledger tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }

func (plainHasher) Verify(password, hash string) (bool, error) {
	return strings.TrimPrefix(hash, "plain$") == password, nil
}

func newLedgerWalletService(l *memLedger) *WalletServiceImpl {
	return NewWalletService(
		memWalletRepo{l}, memTxRepo{l}, memSubRepo{l}, l, plainHasher{},
		config.WalletConfig{DepositExpiry: 30 * time.Minute}, zerolog.Nop(),
	)
}

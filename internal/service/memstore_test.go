package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teranga-booking/escrow-service/internal/models"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"gorm.io/gorm"
)

// memStore backs in-memory repository implementations. Conditional updates
// run under one mutex, mirroring the row-level compare-and-set the SQL
// layer provides.
type memStore struct {
	mu       sync.Mutex
	bookings map[uint]*models.Booking
	payments map[uint]*models.Payment
	tokens   map[uint]*models.QRReleaseToken
	accounts map[uint]*models.WalletAccount
	walletTx map[uint]*models.WalletTransaction
	nextID   uint
}

func newMemStore() *memStore {
	return &memStore{
		bookings: map[uint]*models.Booking{},
		payments: map[uint]*models.Payment{},
		tokens:   map[uint]*models.QRReleaseToken{},
		accounts: map[uint]*models.WalletAccount{},
		walletTx: map[uint]*models.WalletTransaction{},
	}
}

// id allocates the next primary key; caller must hold mu.
func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

// --- BookingRepository ---

type memBookingRepo struct{ s *memStore }

func (r *memBookingRepo) GetDB() *gorm.DB { return nil }

func (r *memBookingRepo) Create(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booking.ID = r.s.id()
	cp := *booking
	r.s.bookings[booking.ID] = &cp
	return nil
}

func (r *memBookingRepo) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r *memBookingRepo) FindByReference(ctx context.Context, ref string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.Reference == ref {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memBookingRepo) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.BookingStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

// --- PaymentRepository ---

type memPaymentRepo struct{ s *memStore }

func (r *memPaymentRepo) GetDB() *gorm.DB { return nil }

func (r *memPaymentRepo) Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payment.ID = r.s.id()
	cp := *payment
	r.s.payments[payment.ID] = &cp
	return nil
}

func (r *memPaymentRepo) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r *memPaymentRepo) FindByGatewayReference(ctx context.Context, tx *gorm.DB, ref string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.GatewayReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) FindActiveByBookingID(ctx context.Context, tx *gorm.DB, bookingID uint) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.BookingID == bookingID && !p.CustodyState.Terminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) TransitionState(ctx context.Context, tx *gorm.DB, id uint, from, to models.CustodyState) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.CustodyState != from {
		return false, nil
	}
	p.CustodyState = to
	return true, nil
}

func (r *memPaymentRepo) MarkHeld(ctx context.Context, tx *gorm.DB, id uint, gatewayRef string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.CustodyState != models.PaymentPending {
		return false, nil
	}
	p.CustodyState = models.PaymentHeld
	p.GatewayReference = gatewayRef
	return true, nil
}

// --- TokenRepository ---

type memTokenRepo struct{ s *memStore }

func (r *memTokenRepo) Create(ctx context.Context, tx *gorm.DB, token *models.QRReleaseToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.ID = r.s.id()
	cp := *token
	r.s.tokens[token.ID] = &cp
	return nil
}

func (r *memTokenRepo) FindByToken(ctx context.Context, tx *gorm.DB, token string) (*models.QRReleaseToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memTokenRepo) FindActiveByPaymentID(ctx context.Context, tx *gorm.DB, paymentID uint, now time.Time) (*models.QRReleaseToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.PaymentID == paymentID && t.ConsumedAt == nil && t.ExpiresAt.After(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memTokenRepo) Consume(ctx context.Context, tx *gorm.DB, id uint, scanner string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[id]
	if !ok || t.ConsumedAt != nil || !t.ExpiresAt.After(now) {
		return false, nil
	}
	consumedAt := now
	t.ConsumedAt = &consumedAt
	t.ConsumedBy = &scanner
	return true, nil
}

func (r *memTokenRepo) ExpireActive(ctx context.Context, tx *gorm.DB, paymentID uint, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.PaymentID == paymentID && t.ConsumedAt == nil && t.ExpiresAt.After(now) {
			t.ExpiresAt = now
		}
	}
	return nil
}

func (r *memTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// --- WalletRepository ---

type memWalletRepo struct{ s *memStore }

func (r *memWalletRepo) GetDB() *gorm.DB { return nil }

func (r *memWalletRepo) FindByID(ctx context.Context, id uint) (*models.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memWalletRepo) FindOrCreate(ctx context.Context, tx *gorm.DB, kind models.AccountKind, ownerRef string) (*models.WalletAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Kind == kind && a.OwnerRef == ownerRef {
			cp := *a
			return &cp, nil
		}
	}
	a := &models.WalletAccount{ID: r.s.id(), Kind: kind, OwnerRef: ownerRef, Balance: decimal.Zero}
	r.s.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *memWalletRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.WalletAccount, error) {
	return r.FindByID(ctx, id)
}

func (r *memWalletRepo) CreateTransaction(ctx context.Context, tx *gorm.DB, wt *models.WalletTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wt.ID = r.s.id()
	wt.CreatedAt = time.Now()
	cp := *wt
	r.s.walletTx[wt.ID] = &cp
	return nil
}

func (r *memWalletRepo) FindTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*models.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, wt := range r.s.walletTx {
		if wt.Reference == reference {
			cp := *wt
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memWalletRepo) ListTransactions(ctx context.Context, accountID uint) ([]models.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.WalletTransaction
	for _, wt := range r.s.walletTx {
		if wt.AccountID == accountID {
			out = append(out, *wt)
		}
	}
	return out, nil
}

func (r *memWalletRepo) ApplyDelta(ctx context.Context, tx *gorm.DB, accountID uint, delta decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Balance = a.Balance.Add(delta)
	return nil
}

func (r *memWalletRepo) SumBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, wt := range r.s.walletTx {
		if wt.AccountID == accountID && wt.Status == models.TransactionSuccess {
			total = total.Add(wt.Signed())
		}
	}
	return total, nil
}

// --- transaction + publisher stubs ---

type stubTxRunner struct{}

func (stubTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) has(routingKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if strings.HasPrefix(e, routingKey) {
			return true
		}
	}
	return false
}

// --- fixture ---

type fixture struct {
	store    *memStore
	bookings repository.BookingRepository
	payments repository.PaymentRepository
	tokenRep repository.TokenRepository
	wallets  repository.WalletRepository
	ledger   *LedgerService
	tokens   *TokenService
	pub      *recordingPublisher
	rec      *Reconciler
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:    store,
		bookings: &memBookingRepo{s: store},
		payments: &memPaymentRepo{s: store},
		tokenRep: &memTokenRepo{s: store},
		wallets:  &memWalletRepo{s: store},
		pub:      &recordingPublisher{},
	}
	f.ledger = NewLedgerService(f.wallets)
	f.tokens = NewTokenService(f.tokenRep, 72*time.Hour)
	cfg := ReconcilerConfig{
		MaxAttempts:             3,
		InitialBackoff:          time.Millisecond,
		ReleaseFinalizesBooking: true,
	}
	f.rec = NewReconciler(
		f.bookings, f.payments, f.wallets,
		f.ledger, f.tokens, NewFlatRatePolicy(500),
		f.pub, stubTxRunner{}, cfg,
	)
	return f
}

func (f *fixture) account(kind models.AccountKind, ownerRef string) *models.WalletAccount {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, a := range f.store.accounts {
		if a.Kind == kind && a.OwnerRef == ownerRef {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (f *fixture) transactionCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.walletTx)
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/teranga-booking/escrow-service/internal/models"
	"github.com/teranga-booking/escrow-service/internal/repository"
	"gorm.io/gorm"
)

// Actor identifies who requested a cancellation.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
)

// GatewayCapture is the capture-confirmation callback payload from the
// external payment gateway.
type GatewayCapture struct {
	GatewayReference string
	PaymentID        uint
	Amount           decimal.Decimal
	Currency         string
}

// ReleaseResult is returned to the scanning client on a successful release.
type ReleaseResult struct {
	BookingReference string          `json:"booking_reference"`
	AmountReleased   decimal.Decimal `json:"amount_released"`
	OwnerCredited    decimal.Decimal `json:"owner_credited"`
}

type CreateBookingInput struct {
	CustomerID   string
	OwnerID      string
	BookableType models.BookableType
	BookableID   string
	StartDate    time.Time
	EndDate      time.Time
	Guests       int
	Amount       decimal.Decimal
	Currency     string
}

// EventPublisher pushes settlement events to the notification transport.
// Delivery itself is another service's problem.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type settlementEvent struct {
	BookingReference string          `json:"booking_reference"`
	PaymentID        uint            `json:"payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// ReconcilerConfig tunes retry and release policy.
type ReconcilerConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// ReleaseFinalizesBooking moves the booking CONFIRME -> TERMINE on
	// release; when false (release before the stay) the booking stays
	// CONFIRME.
	ReleaseFinalizesBooking bool
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		MaxAttempts:             3,
		InitialBackoff:          25 * time.Millisecond,
		ReleaseFinalizesBooking: true,
	}
}

// Reconciler is the single choke point through which booking, payment,
// token and wallet mutations are composed. Each business event runs in one
// storage transaction; no other reader can observe a half-applied release
// or refund.
type Reconciler struct {
	bookings   repository.BookingRepository
	payments   repository.PaymentRepository
	wallets    repository.WalletRepository
	ledger     *LedgerService
	tokens     *TokenService
	commission CommissionPolicy
	events     EventPublisher
	tx         TxRunner
	cfg        ReconcilerConfig
}

func NewReconciler(
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	wallets repository.WalletRepository,
	ledger *LedgerService,
	tokens *TokenService,
	commission CommissionPolicy,
	events EventPublisher,
	tx TxRunner,
	cfg ReconcilerConfig,
) *Reconciler {
	return &Reconciler{
		bookings:   bookings,
		payments:   payments,
		wallets:    wallets,
		ledger:     ledger,
		tokens:     tokens,
		commission: commission,
		events:     events,
		tx:         tx,
		cfg:        cfg,
	}
}

// CreateBooking opens a booking in EN_ATTENTE together with its PENDING
// payment attempt.
func (r *Reconciler) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, *models.Payment, error) {
	if in.CustomerID == "" || in.OwnerID == "" || in.BookableID == "" {
		return nil, nil, errors.New("customer_id, owner_id and bookable_id are required")
	}
	if !in.BookableType.Valid() {
		return nil, nil, fmt.Errorf("unknown bookable type %q", in.BookableType)
	}
	if in.Amount.Cmp(decimal.Zero) <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if in.Currency == "" {
		in.Currency = "XOF"
	}

	reference, err := generateBookingReference()
	if err != nil {
		return nil, nil, err
	}

	var booking *models.Booking
	var payment *models.Payment
	err = r.withRetry(ctx, func(tx *gorm.DB) error {
		booking = &models.Booking{
			CustomerID:   in.CustomerID,
			OwnerID:      in.OwnerID,
			BookableType: in.BookableType,
			BookableID:   in.BookableID,
			StartDate:    in.StartDate,
			EndDate:      in.EndDate,
			Guests:       in.Guests,
			Reference:    reference,
			Status:       models.BookingEnAttente,
		}
		if err := r.bookings.Create(ctx, tx, booking); err != nil {
			return err
		}
		payment = &models.Payment{
			BookingID:    booking.ID,
			Amount:       in.Amount,
			Currency:     in.Currency,
			CustodyState: models.PaymentPending,
		}
		return r.payments.Create(ctx, tx, payment)
	})
	if err != nil {
		return nil, nil, err
	}
	return booking, payment, nil
}

// OnGatewayCaptured applies the gateway's capture confirmation: payment
// PENDING -> HELD and funds credited to the platform escrow account.
// Safe to receive more than once for the same gateway reference.
func (r *Reconciler) OnGatewayCaptured(ctx context.Context, in GatewayCapture) (*models.Payment, error) {
	var payment *models.Payment
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		var err error
		payment, err = r.payments.FindByIDForUpdate(ctx, tx, in.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGatewayMismatch
			}
			return err
		}
		if payment.GatewayReference != "" && payment.GatewayReference != in.GatewayReference {
			return ErrGatewayMismatch
		}
		if !payment.Amount.Equal(in.Amount) || payment.Currency != in.Currency {
			return ErrAmountMismatch
		}

		if payment.CustodyState != models.PaymentPending {
			// Duplicate delivery after the transition already applied.
			if payment.GatewayReference == in.GatewayReference && payment.CustodyState != models.PaymentRefused && payment.CustodyState != models.PaymentRefunded {
				return nil
			}
			return ErrAlreadyTerminal
		}

		ok, err := r.payments.MarkHeld(ctx, tx, payment.ID, in.GatewayReference)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		payment.CustodyState = models.PaymentHeld
		payment.GatewayReference = in.GatewayReference

		escrow, err := r.wallets.FindOrCreate(ctx, tx, models.AccountEscrow, models.EscrowOwnerRef)
		if err != nil {
			return err
		}
		pid := payment.ID
		if _, err := r.ledger.Credit(ctx, tx, escrow.ID, payment.Amount, fmt.Sprintf("hold:%d", pid), &pid); err != nil && !errors.Is(err, ErrDuplicateReference) {
			return err
		}
		capturesTotal.Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// OnOwnerAccepted confirms the booking on the establishment side: payment
// HELD -> CAPTURED, booking EN_ATTENTE -> CONFIRME, and the release token
// is minted for the customer's receipt.
func (r *Reconciler) OnOwnerAccepted(ctx context.Context, paymentID uint) (*models.Payment, *models.QRReleaseToken, error) {
	var payment *models.Payment
	var booking *models.Booking
	var token *models.QRReleaseToken
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		var err error
		payment, err = r.payments.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		if payment.CustodyState.Terminal() {
			return ErrAlreadyTerminal
		}

		ok, err := r.payments.TransitionState(ctx, tx, payment.ID, models.PaymentHeld, models.PaymentCaptured)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		payment.CustodyState = models.PaymentCaptured

		booking, err = r.bookings.FindByIDForUpdate(ctx, tx, payment.BookingID)
		if err != nil {
			return err
		}
		ok, err = r.bookings.TransitionStatus(ctx, tx, booking.ID, models.BookingEnAttente, models.BookingConfirme)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		booking.Status = models.BookingConfirme

		token, err = r.tokens.Mint(ctx, tx, payment, booking)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	r.publish("booking.confirmed", settlementEvent{
		BookingReference: booking.Reference,
		PaymentID:        payment.ID,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
	})
	return payment, token, nil
}

// ReissueToken mints a replacement token for a CAPTURED payment, expiring
// the previous one (lost-receipt flow).
func (r *Reconciler) ReissueToken(ctx context.Context, paymentID uint) (*models.QRReleaseToken, error) {
	var token *models.QRReleaseToken
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		payment, err := r.payments.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}
		booking, err := r.bookings.FindByIDForUpdate(ctx, tx, payment.BookingID)
		if err != nil {
			return err
		}
		token, err = r.tokens.Mint(ctx, tx, payment, booking)
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// OnQrScanned validates and consumes a release token, then releases the
// escrowed funds: payment CAPTURED -> RELEASED, escrow debited by the full
// amount, owner credited amount minus commission, booking CONFIRME ->
// TERMINE per policy. All of it commits or none of it does.
func (r *Reconciler) OnQrScanned(ctx context.Context, rawToken, scanner string) (*ReleaseResult, error) {
	var result *ReleaseResult
	var event settlementEvent
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		token, err := r.tokens.Validate(ctx, tx, rawToken)
		if err != nil {
			return err
		}

		// The critical section: the conditional update on consumed_at
		// decides the race before anything else is touched. Losers roll
		// back having changed nothing.
		ok, err := r.tokens.Consume(ctx, tx, token, scanner)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTokenAlreadyConsumed
		}

		payment, err := r.payments.FindByIDForUpdate(ctx, tx, token.PaymentID)
		if err != nil {
			return err
		}
		if payment.CustodyState.Terminal() {
			return ErrAlreadyTerminal
		}
		if payment.CustodyState != models.PaymentCaptured {
			return ErrInvalidTransition
		}

		ok, err = r.payments.TransitionState(ctx, tx, payment.ID, models.PaymentCaptured, models.PaymentReleased)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		booking, err := r.bookings.FindByIDForUpdate(ctx, tx, payment.BookingID)
		if err != nil {
			return err
		}

		escrow, err := r.wallets.FindOrCreate(ctx, tx, models.AccountEscrow, models.EscrowOwnerRef)
		if err != nil {
			return err
		}
		owner, err := r.wallets.FindOrCreate(ctx, tx, models.AccountOwner, booking.OwnerID)
		if err != nil {
			return err
		}

		pid := payment.ID
		if _, err := r.ledger.Debit(ctx, tx, escrow.ID, payment.Amount, fmt.Sprintf("release:%d", pid), &pid); err != nil && !errors.Is(err, ErrDuplicateReference) {
			return err
		}
		fee := r.commission.Fee(payment.Amount)
		net := payment.Amount.Sub(fee)
		if _, err := r.ledger.Credit(ctx, tx, owner.ID, net, fmt.Sprintf("release:%d:owner", pid), &pid); err != nil && !errors.Is(err, ErrDuplicateReference) {
			return err
		}

		if r.cfg.ReleaseFinalizesBooking && booking.Status == models.BookingConfirme {
			if _, err := r.bookings.TransitionStatus(ctx, tx, booking.ID, models.BookingConfirme, models.BookingTermine); err != nil {
				return err
			}
		}

		result = &ReleaseResult{
			BookingReference: booking.Reference,
			AmountReleased:   payment.Amount,
			OwnerCredited:    net,
		}
		event = settlementEvent{
			BookingReference: booking.Reference,
			PaymentID:        payment.ID,
			Amount:           payment.Amount,
			Currency:         payment.Currency,
		}
		return nil
	})
	if err != nil {
		scansTotal.WithLabelValues(scanOutcome(err)).Inc()
		return nil, err
	}

	scansTotal.WithLabelValues("success").Inc()
	releasesTotal.Inc()
	r.publish("payment.released", event)
	return result, nil
}

// OnCancellationRequested cancels a booking. Customers may cancel before
// capture; admins any time before TERMINE. Funds already in escrow are
// returned to the customer in the same transaction, never silently kept.
func (r *Reconciler) OnCancellationRequested(ctx context.Context, bookingID uint, actor Actor) (*models.Booking, error) {
	var booking *models.Booking
	var refunded bool
	var event settlementEvent
	err := r.withRetry(ctx, func(tx *gorm.DB) error {
		refunded = false
		var err error
		booking, err = r.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if booking.Status.Terminal() {
			return ErrInvalidTransition
		}

		payment, err := r.payments.FindActiveByBookingID(ctx, tx, bookingID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if payment != nil {
			if payment.CustodyState == models.PaymentCaptured && actor != ActorAdmin {
				return ErrCancellationNotAllowed
			}

			target := models.PaymentRefused
			if payment.CustodyState == models.PaymentCaptured {
				target = models.PaymentRefunded
			}
			ok, err := r.payments.TransitionState(ctx, tx, payment.ID, payment.CustodyState, target)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidTransition
			}

			// HELD and later means money sits in escrow; reverse it.
			if payment.CustodyState.FundsInEscrow() {
				escrow, err := r.wallets.FindOrCreate(ctx, tx, models.AccountEscrow, models.EscrowOwnerRef)
				if err != nil {
					return err
				}
				customer, err := r.wallets.FindOrCreate(ctx, tx, models.AccountCustomer, booking.CustomerID)
				if err != nil {
					return err
				}
				pid := payment.ID
				if _, err := r.ledger.Debit(ctx, tx, escrow.ID, payment.Amount, fmt.Sprintf("refund:%d", pid), &pid); err != nil && !errors.Is(err, ErrDuplicateReference) {
					return err
				}
				if _, err := r.ledger.Credit(ctx, tx, customer.ID, payment.Amount, fmt.Sprintf("refund:%d:customer", pid), &pid); err != nil && !errors.Is(err, ErrDuplicateReference) {
					return err
				}
				if err := r.tokens.Invalidate(ctx, tx, pid); err != nil {
					return err
				}
				refunded = true
				event = settlementEvent{
					BookingReference: booking.Reference,
					PaymentID:        payment.ID,
					Amount:           payment.Amount,
					Currency:         payment.Currency,
				}
			}
		}

		ok, err := r.bookings.TransitionStatus(ctx, tx, booking.ID, booking.Status, models.BookingAnnule)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		booking.Status = models.BookingAnnule
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refunded {
		refundsTotal.Inc()
		r.publish("payment.refunded", event)
	}
	return booking, nil
}

func (r *Reconciler) publish(routingKey string, payload any) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(routingKey, payload); err != nil {
		log.Printf("[Reconciler] publish %s failed: %v", routingKey, err)
	}
}

// withRetry retries the transaction on transient storage contention with
// exponential backoff, then surfaces the error. Guard violations and
// integrity errors pass straight through.
func (r *Reconciler) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := r.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := r.tx.InTx(ctx, fn)
		if err == nil || !isTransientErr(err) || attempt >= r.cfg.MaxAttempts {
			return err
		}
		log.Printf("[Reconciler] transient storage error (attempt %d/%d), retrying in %s: %v",
			attempt, r.cfg.MaxAttempts, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// isTransientErr matches postgres serialization failures and deadlocks.
func isTransientErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func scanOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenAlreadyConsumed):
		return "already_consumed"
	default:
		return "error"
	}
}

// refAlphabet avoids ambiguous characters in customer-facing references.
const refAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func generateBookingReference() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = refAlphabet[int(b)%len(refAlphabet)]
	}
	return "BK-" + string(out), nil
}

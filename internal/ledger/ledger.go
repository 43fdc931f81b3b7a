// Package ledger tracks the payment cycles of a confirmed long-term booking
// and routes cycle payments through the wallet PIN gate.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/chefapi"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/internal/wallet"
	"github.com/wolfman30/chefbook/pkg/logging"
)

var ledgerTracer = otel.Tracer("chefbook.internal.ledger")

// API is the backend surface the ledger reads.
type API interface {
	PaymentCycles(ctx context.Context, bookingID int64) ([]chefapi.PaymentCycle, error)
	Booking(ctx context.Context, bookingID int64) (*chefapi.BookingStatus, error)
}

// Authorizer runs or PIN-gates a wallet action.
type Authorizer interface {
	Authorize(ctx context.Context, action wallet.Action) (wallet.Result, error)
	OnAfterAction(fn wallet.AfterActionFunc)
}

// Outcome is the result of a payment request.
type Outcome string

const (
	OutcomePaid        Outcome = "PAID"
	OutcomeAwaitingPin Outcome = "AWAITING_PIN"
)

// Snapshot is the ledger state as last refreshed.
type Snapshot struct {
	BookingID     int64                  `json:"bookingId"`
	BookingStatus string                 `json:"bookingStatus"`
	Cycles        []chefapi.PaymentCycle `json:"cycles"`
}

// Ledger holds the payment cycles of one booking.
type Ledger struct {
	api     API
	gate    Authorizer
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	bookingID int64

	mu            sync.RWMutex
	bookingStatus string
	cycles        []chefapi.PaymentCycle
}

// New builds an empty ledger for bookingID and subscribes it to completed
// cycle payments on gate so it refreshes after each one.
func New(bookingID int64, api API, gate Authorizer, logger *logging.Logger, m *metrics.BookingMetrics) *Ledger {
	if api == nil {
		panic("ledger: api required")
	}
	if gate == nil {
		panic("ledger: gate required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Ledger{
		api:       api,
		gate:      gate,
		logger:    logger.Component("ledger"),
		metrics:   m,
		bookingID: bookingID,
	}
	gate.OnAfterAction(l.afterAction)
	return l
}

// BookingID returns the booking this ledger follows.
func (l *Ledger) BookingID() int64 { return l.bookingID }

// Refresh reloads cycles and booking status. On failure the previous
// snapshot is kept.
func (l *Ledger) Refresh(ctx context.Context) error {
	ctx, span := ledgerTracer.Start(ctx, "ledger.refresh")
	defer span.End()
	span.SetAttributes(attribute.Int64("chefbook.booking_id", l.bookingID))

	cycles, err := l.api.PaymentCycles(ctx, l.bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment cycles")
		return fmt.Errorf("ledger: load cycles: %w", err)
	}
	booking, err := l.api.Booking(ctx, l.bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking")
		return fmt.Errorf("ledger: load booking: %w", err)
	}

	sort.SliceStable(cycles, func(i, j int) bool { return cycles[i].CycleOrder < cycles[j].CycleOrder })

	l.mu.Lock()
	previous := l.cycles
	l.cycles = cycles
	l.bookingStatus = booking.Status
	l.mu.Unlock()

	l.checkTransitions(previous, cycles)
	return nil
}

// Snapshot copies the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		BookingID:     l.bookingID,
		BookingStatus: l.bookingStatus,
		Cycles:        append([]chefapi.PaymentCycle(nil), l.cycles...),
	}
}

// Cycles returns the cycles ordered by cycle order.
func (l *Ledger) Cycles() []chefapi.PaymentCycle {
	return l.Snapshot().Cycles
}

// Cycle looks up one cycle.
func (l *Ledger) Cycle(cycleID int64) (chefapi.PaymentCycle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, c := range l.cycles {
		if c.ID == cycleID {
			return c, true
		}
	}
	return chefapi.PaymentCycle{}, false
}

// BookingStatus returns the booking status from the last refresh.
func (l *Ledger) BookingStatus() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bookingStatus
}

// RequestPayment pays a cycle. When the wallet has a PIN the payment waits
// on the gate and OutcomeAwaitingPin is returned. A payment that completes
// refreshes the ledger. A failed payment leaves the ledger untouched.
func (l *Ledger) RequestPayment(ctx context.Context, cycleID int64, amountDue float64) (Outcome, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.request_payment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chefbook.booking_id", l.bookingID),
		attribute.Int64("chefbook.cycle_id", cycleID),
	)

	cycle, ok := l.Cycle(cycleID)
	if !ok {
		return "", apperr.Validation("cycleId", "payment cycle %d is not part of this booking", cycleID)
	}
	if !Payable(cycle.Status) {
		return "", apperr.Validation("cycleId", "payment cycle %d is %s and cannot be paid", cycleID, cycle.Status)
	}
	if amountDue <= 0 {
		amountDue = cycle.AmountDue
	}

	res, err := l.gate.Authorize(ctx, wallet.PayCycle{CycleID: cycleID, AmountDue: amountDue})
	if err != nil {
		switch {
		case apperr.IsInsufficientBalance(err):
			l.metrics.ObserveCyclePayment("insufficient_balance")
		case apperr.Silent(err):
			l.metrics.ObserveCyclePayment("abandoned")
		default:
			l.metrics.ObserveCyclePayment("error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "pay cycle")
		}
		return "", err
	}
	if res.AwaitingPin {
		l.logger.Info("cycle payment awaiting pin", "booking_id", l.bookingID, "cycle_id", cycleID)
		return OutcomeAwaitingPin, nil
	}
	return OutcomePaid, nil
}

// Sessions groups every booking detail of every cycle by session date.
func (l *Ledger) Sessions() []DateGroup {
	var details []chefapi.BookingDetailSummary
	for _, c := range l.Cycles() {
		details = append(details, c.BookingDetails...)
	}
	return GroupBySessionDate(details)
}

func (l *Ledger) afterAction(ctx context.Context, receipt wallet.Receipt) {
	if receipt.Kind == wallet.KindPayCycle {
		if _, ok := l.Cycle(receipt.CycleID); ok {
			l.metrics.ObserveCyclePayment("paid")
			l.logger.Info("payment cycle paid", "booking_id", l.bookingID, "cycle_id", receipt.CycleID, "amount", receipt.Amount)
		}
	}
	if err := l.Refresh(ctx); err != nil && !apperr.Silent(err) {
		l.logger.Warn("ledger refresh after wallet action failed", "booking_id", l.bookingID, "action", receipt.Kind, "error", err)
	}
}

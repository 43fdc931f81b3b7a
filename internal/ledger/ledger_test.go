package ledger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/chefapi"
	"github.com/wolfman30/chefbook/internal/wallet"
	"github.com/wolfman30/chefbook/pkg/logging"
)

// fakeBackend serves both the ledger reads and the wallet calls from shared state.
type fakeBackend struct {
	pin        string
	balance    float64
	status     string
	cycles     []chefapi.PaymentCycle
	cyclesErr  error
	payCalls   []int64
	cycleReads int
}

func (f *fakeBackend) PaymentCycles(context.Context, int64) ([]chefapi.PaymentCycle, error) {
	f.cycleReads++
	if f.cyclesErr != nil {
		return nil, f.cyclesErr
	}
	return append([]chefapi.PaymentCycle(nil), f.cycles...), nil
}

func (f *fakeBackend) Booking(_ context.Context, id int64) (*chefapi.BookingStatus, error) {
	return &chefapi.BookingStatus{ID: id, Status: f.status}, nil
}

func (f *fakeBackend) WalletHasPassword(context.Context) (bool, error) { return f.pin != "", nil }

func (f *fakeBackend) WalletAccess(_ context.Context, pin string) (bool, error) {
	return pin == f.pin, nil
}

func (f *fakeBackend) SetWalletPassword(_ context.Context, pin string) error {
	f.pin = pin
	return nil
}

func (f *fakeBackend) ForgotWalletPassword(context.Context) error { return nil }

func (f *fakeBackend) Deposit(_ context.Context, amount float64) (*chefapi.DepositResult, error) {
	f.balance += amount
	return &chefapi.DepositResult{}, nil
}

func (f *fakeBackend) Withdraw(_ context.Context, amount float64) error {
	f.balance -= amount
	return nil
}

func (f *fakeBackend) PayCycle(_ context.Context, cycleID int64) error {
	for i := range f.cycles {
		if f.cycles[i].ID != cycleID {
			continue
		}
		if f.cycles[i].AmountDue > f.balance {
			return &apperr.InsufficientBalanceError{Message: "Insufficient wallet balance"}
		}
		f.payCalls = append(f.payCalls, cycleID)
		f.balance -= f.cycles[i].AmountDue
		f.cycles[i].Status = chefapi.CycleStatusPaid
		return nil
	}
	return &apperr.RemoteServiceError{Status: 404, Message: "cycle not found"}
}

func newBackend(balance float64) *fakeBackend {
	return &fakeBackend{
		pin:     "1234",
		balance: balance,
		status:  "CONFIRMED",
		cycles: []chefapi.PaymentCycle{
			{ID: 43, CycleOrder: 2, Status: chefapi.CycleStatusPendingFirstCycle, AmountDue: 80},
			{ID: 42, CycleOrder: 1, Status: chefapi.CycleStatusConfirmed, AmountDue: 50},
		},
	}
}

func newTestLedger(t *testing.T, backend *fakeBackend) (*Ledger, *wallet.Gate) {
	t.Helper()
	gate := wallet.NewGate(backend, logging.Discard(), nil)
	l := New(7, backend, gate, logging.Discard(), nil)
	require.NoError(t, l.Refresh(context.Background()))
	return l, gate
}

func submitPin(t *testing.T, gate *wallet.Gate, pin string) (wallet.Receipt, error) {
	t.Helper()
	for i := range pin {
		require.NoError(t, gate.Enter(i, pin[i:i+1]))
	}
	return gate.Submit(context.Background())
}

func TestLedger_PinPaymentMarksCyclePaid(t *testing.T) {
	backend := newBackend(100)
	l, gate := newTestLedger(t, backend)

	outcome, err := l.RequestPayment(context.Background(), 42, 50)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingPin, outcome)
	assert.Empty(t, backend.payCalls)

	_, err = submitPin(t, gate, "1234")
	require.NoError(t, err)

	assert.Equal(t, []int64{42}, backend.payCalls)
	cycle, ok := l.Cycle(42)
	require.True(t, ok)
	assert.Equal(t, chefapi.CycleStatusPaid, cycle.Status)
	assert.Equal(t, 50.0, backend.balance)
}

func TestLedger_RefreshesAfterWalletActions(t *testing.T) {
	backend := newBackend(10)
	l, gate := newTestLedger(t, backend)
	reads := backend.cycleReads

	res, err := gate.Authorize(context.Background(), wallet.Deposit{Amount: 20})
	require.NoError(t, err)
	require.True(t, res.AwaitingPin)
	backend.status = "IN_PROGRESS"
	_, err = submitPin(t, gate, "1234")
	require.NoError(t, err)

	assert.Equal(t, 30.0, backend.balance)
	assert.Equal(t, reads+1, backend.cycleReads)
	assert.Equal(t, "IN_PROGRESS", l.BookingStatus())

	_, err = gate.Authorize(context.Background(), wallet.Withdraw{Amount: 5})
	require.NoError(t, err)
	_, err = submitPin(t, gate, "1234")
	require.NoError(t, err)
	assert.Equal(t, reads+2, backend.cycleReads)
}

func TestLedger_InsufficientBalanceLeavesLedgerUnchanged(t *testing.T) {
	backend := newBackend(10)
	l, gate := newTestLedger(t, backend)
	before := l.Snapshot()
	reads := backend.cycleReads

	outcome, err := l.RequestPayment(context.Background(), 42, 50)
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingPin, outcome)

	_, err = submitPin(t, gate, "1234")
	var insufficient *apperr.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)

	assert.Equal(t, before, l.Snapshot())
	assert.Equal(t, reads, backend.cycleReads)
	cycle, _ := l.Cycle(42)
	assert.Equal(t, chefapi.CycleStatusConfirmed, cycle.Status)
	rec, ok := gate.Recovery()
	require.True(t, ok)
	assert.Equal(t, 50.0, rec.TopUp.Amount)
}

func TestLedger_PaysDirectlyWithoutPin(t *testing.T) {
	backend := newBackend(200)
	backend.pin = ""
	l, _ := newTestLedger(t, backend)

	outcome, err := l.RequestPayment(context.Background(), 43, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)
	cycle, _ := l.Cycle(43)
	assert.Equal(t, chefapi.CycleStatusPaid, cycle.Status)
}

func TestLedger_RejectsUnknownAndSettledCycles(t *testing.T) {
	backend := newBackend(200)
	backend.cycles = append(backend.cycles,
		chefapi.PaymentCycle{ID: 44, CycleOrder: 3, Status: chefapi.CycleStatusPaid},
		chefapi.PaymentCycle{ID: 45, CycleOrder: 4, Status: chefapi.CycleStatusCancelled},
	)
	l, gate := newTestLedger(t, backend)

	for _, id := range []int64{99, 44, 45} {
		_, err := l.RequestPayment(context.Background(), id, 10)
		assert.True(t, apperr.IsValidation(err), "cycle %d", id)
	}
	assert.Equal(t, wallet.StateIdle, gate.State())
	assert.Empty(t, backend.payCalls)
}

func TestLedger_RefreshIsIdempotentAndOrdered(t *testing.T) {
	backend := newBackend(0)
	l, _ := newTestLedger(t, backend)
	first := l.Snapshot()

	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, first, l.Snapshot())
	assert.Equal(t, int64(42), first.Cycles[0].ID)
	assert.Equal(t, int64(43), first.Cycles[1].ID)
	assert.Equal(t, "CONFIRMED", l.BookingStatus())
	assert.Equal(t, int64(7), first.BookingID)
}

func TestLedger_FailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	backend := newBackend(0)
	l, _ := newTestLedger(t, backend)
	before := l.Snapshot()

	backend.cyclesErr = &apperr.RemoteServiceError{Status: 503}
	err := l.Refresh(context.Background())
	require.Error(t, err)
	var remote *apperr.RemoteServiceError
	assert.ErrorAs(t, err, &remote)
	assert.Equal(t, before, l.Snapshot())
}

func TestLedger_LogsStatusRegression(t *testing.T) {
	backend := newBackend(0)
	var buf bytes.Buffer
	gate := wallet.NewGate(backend, logging.Discard(), nil)
	l := New(7, backend, gate, logging.NewWithWriter(&buf, "info"), nil)
	require.NoError(t, l.Refresh(context.Background()))

	backend.cycles[1].Status = chefapi.CycleStatusPendingFirstCycle
	require.NoError(t, l.Refresh(context.Background()))
	assert.Contains(t, buf.String(), "payment cycle status regressed")
}

func TestValidTransition(t *testing.T) {
	assert.True(t, ValidTransition(chefapi.CycleStatusPendingFirstCycle, chefapi.CycleStatusConfirmed))
	assert.True(t, ValidTransition(chefapi.CycleStatusConfirmed, chefapi.CycleStatusPaid))
	assert.True(t, ValidTransition(chefapi.CycleStatusConfirmed, chefapi.CycleStatusCancelled))
	assert.True(t, ValidTransition(chefapi.CycleStatusPaid, chefapi.CycleStatusPaid))
	assert.True(t, ValidTransition("ON_HOLD", chefapi.CycleStatusConfirmed))
	assert.False(t, ValidTransition(chefapi.CycleStatusPaid, chefapi.CycleStatusConfirmed))
	assert.False(t, ValidTransition(chefapi.CycleStatusCancelled, chefapi.CycleStatusPaid))
	assert.False(t, ValidTransition(chefapi.CycleStatusConfirmed, chefapi.CycleStatusPendingFirstCycle))
}

func TestGroupBySessionDate(t *testing.T) {
	details := []chefapi.BookingDetailSummary{
		{ID: 3, SessionDate: "2026-03-04"},
		{ID: 1, SessionDate: "2026-03-02"},
		{ID: 4, SessionDate: "2026-03-04"},
		{ID: 2, SessionDate: "2026-03-03"},
	}
	groups := GroupBySessionDate(details)
	require.Len(t, groups, 3)
	assert.Equal(t, "2026-03-02", groups[0].SessionDate)
	assert.Equal(t, "2026-03-04", groups[2].SessionDate)
	require.Len(t, groups[2].Details, 2)
	assert.Equal(t, int64(3), groups[2].Details[0].ID)
	assert.Equal(t, int64(4), groups[2].Details[1].ID)
	assert.Empty(t, GroupBySessionDate(nil))
}

func TestLedger_Sessions(t *testing.T) {
	backend := newBackend(0)
	backend.cycles[0].BookingDetails = []chefapi.BookingDetailSummary{{ID: 11, SessionDate: "2026-04-10"}}
	backend.cycles[1].BookingDetails = []chefapi.BookingDetailSummary{{ID: 10, SessionDate: "2026-04-01"}}
	l, _ := newTestLedger(t, backend)

	sessions := l.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(10), sessions[0].Details[0].ID)
}

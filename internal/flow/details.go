package flow

import (
	"context"
	"sync"

	"github.com/wolfman30/chefbook/internal/ledger"
	"github.com/wolfman30/chefbook/internal/wallet"
)

// DetailsView is the render state of a booking's payment screen.
type DetailsView struct {
	Ledger   ledger.Snapshot    `json:"ledger"`
	Sessions []ledger.DateGroup `json:"sessions"`
	Pin      wallet.View        `json:"pin"`
}

// PaymentView reports a payment request and the state it left behind.
type PaymentView struct {
	Outcome ledger.Outcome `json:"outcome"`
	DetailsView
}

// Details is the payment screen of one confirmed booking: its ledger and the
// PIN gate guarding payments. Calls are serialised by the mutex.
type Details struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	gate   *wallet.Gate
}

// BookingID is the booking shown.
func (d *Details) BookingID() int64 { return d.ledger.BookingID() }

// View snapshots the screen.
func (d *Details) View() DetailsView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view()
}

func (d *Details) view() DetailsView {
	return DetailsView{
		Ledger:   d.ledger.Snapshot(),
		Sessions: d.ledger.Sessions(),
		Pin:      d.gate.View(),
	}
}

// Refresh reloads the ledger.
func (d *Details) Refresh(ctx context.Context) (DetailsView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.ledger.Refresh(ctx)
	return d.view(), err
}

// Pay requests payment of a cycle.
func (d *Details) Pay(ctx context.Context, cycleID int64, amountDue float64) (PaymentView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	outcome, err := d.ledger.RequestPayment(ctx, cycleID, amountDue)
	return PaymentView{Outcome: outcome, DetailsView: d.view()}, err
}

// Authorize runs a deposit or withdrawal through the gate.
func (d *Details) Authorize(ctx context.Context, action wallet.Action) (wallet.Result, DetailsView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.gate.Authorize(ctx, action)
	return res, d.view(), err
}

// EnterDigit types one PIN digit.
func (d *Details) EnterDigit(box int, digit string) (wallet.View, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.gate.Enter(box, digit)
	return d.gate.View(), err
}

// Backspace removes the last PIN digit.
func (d *Details) Backspace() wallet.View {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate.Backspace()
	return d.gate.View()
}

// SubmitPin verifies the PIN and runs the pending action.
func (d *Details) SubmitPin(ctx context.Context) (wallet.Receipt, DetailsView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	receipt, err := d.gate.Submit(ctx)
	return receipt, d.view(), err
}

// DismissPin abandons PIN entry.
func (d *Details) DismissPin() wallet.View {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate.Dismiss()
	return d.gate.View()
}

// ForgotPin requests a PIN reset email.
func (d *Details) ForgotPin(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gate.ForgotPin(ctx)
}

// SetPin sets the wallet PIN.
func (d *Details) SetPin(ctx context.Context, pin string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gate.SetPin(ctx, pin)
}

// TopUp accepts the insufficient-balance recovery offer.
func (d *Details) TopUp(ctx context.Context) (wallet.Result, DetailsView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.gate.TopUp(ctx)
	return res, d.view(), err
}

// CancelRecovery declines the recovery offer.
func (d *Details) CancelRecovery() wallet.View {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate.CancelRecovery()
	return d.gate.View()
}

// Package wallet gates monetary actions behind the customer's 4-digit wallet PIN.
package wallet

import (
	"context"

	"github.com/wolfman30/chefbook/internal/chefapi"
)

// ActionKind identifies the action waiting on a PIN.
type ActionKind string

const (
	KindNone     ActionKind = "NONE"
	KindDeposit  ActionKind = "DEPOSIT"
	KindWithdraw ActionKind = "WITHDRAW"
	KindPayCycle ActionKind = "PAY_CYCLE"
)

// Operations are the wallet-moving backend calls an Action may perform.
type Operations interface {
	Deposit(ctx context.Context, amount float64) (*chefapi.DepositResult, error)
	Withdraw(ctx context.Context, amount float64) error
	PayCycle(ctx context.Context, cycleID int64) error
}

// Receipt describes a completed action.
type Receipt struct {
	Kind       ActionKind `json:"kind"`
	CycleID    int64      `json:"cycleId,omitempty"`
	Amount     float64    `json:"amount"`
	PaymentURL string     `json:"paymentUrl,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Action is a monetary operation run once the PIN is verified.
type Action interface {
	Kind() ActionKind
	Run(ctx context.Context, ops Operations) (Receipt, error)
}

// Deposit tops up the wallet through the payment provider.
type Deposit struct {
	Amount float64 `json:"amount"`
}

func (Deposit) Kind() ActionKind { return KindDeposit }

func (a Deposit) Run(ctx context.Context, ops Operations) (Receipt, error) {
	res, err := ops.Deposit(ctx, a.Amount)
	if err != nil {
		return Receipt{}, err
	}
	r := Receipt{Kind: KindDeposit, Amount: a.Amount}
	if res != nil {
		r.PaymentURL = res.PaymentURL
		r.Message = res.Message
	}
	return r, nil
}

// Withdraw moves funds out of the wallet.
type Withdraw struct {
	Amount float64 `json:"amount"`
}

func (Withdraw) Kind() ActionKind { return KindWithdraw }

func (a Withdraw) Run(ctx context.Context, ops Operations) (Receipt, error) {
	if err := ops.Withdraw(ctx, a.Amount); err != nil {
		return Receipt{}, err
	}
	return Receipt{Kind: KindWithdraw, Amount: a.Amount}, nil
}

// PayCycle pays one payment cycle of a long-term booking from the wallet.
type PayCycle struct {
	CycleID   int64   `json:"cycleId"`
	AmountDue float64 `json:"amountDue"`
}

func (PayCycle) Kind() ActionKind { return KindPayCycle }

func (a PayCycle) Run(ctx context.Context, ops Operations) (Receipt, error) {
	if err := ops.PayCycle(ctx, a.CycleID); err != nil {
		return Receipt{}, err
	}
	return Receipt{Kind: KindPayCycle, CycleID: a.CycleID, Amount: a.AmountDue}, nil
}

// offersTopUp reports whether a shortfall on a can be fixed by depositing the
// same amount. Topping up to withdraw it again is never offered.
func offersTopUp(a Action) bool {
	switch a.(type) {
	case PayCycle, Deposit:
		return true
	}
	return false
}

func amountOf(a Action) float64 {
	switch v := a.(type) {
	case Deposit:
		return v.Amount
	case Withdraw:
		return v.Amount
	case PayCycle:
		return v.AmountDue
	}
	return 0
}

func cycleOf(a Action) *int64 {
	if v, ok := a.(PayCycle); ok {
		id := v.CycleID
		return &id
	}
	return nil
}

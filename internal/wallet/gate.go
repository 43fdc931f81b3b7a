package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/pkg/logging"
)

// PinLength is the number of digit boxes.
const PinLength = 4

// State is the gate's position in the PIN flow.
type State string

const (
	StateIdle      State = "IDLE"
	StatePinEntry  State = "PIN_ENTRY"
	StateVerifying State = "VERIFYING"
)

// ErrFocusMismatch is returned when a digit targets a box other than the first empty one.
var ErrFocusMismatch = errors.New("wallet: digit must go in the first empty box")

// Verifier manages and checks the wallet PIN.
type Verifier interface {
	WalletHasPassword(ctx context.Context) (bool, error)
	WalletAccess(ctx context.Context, pin string) (bool, error)
	SetWalletPassword(ctx context.Context, pin string) error
	ForgotWalletPassword(ctx context.Context) error
}

// API is everything the gate needs from the backend.
type API interface {
	Operations
	Verifier
}

// AfterActionFunc observes every successfully completed action.
type AfterActionFunc func(ctx context.Context, receipt Receipt)

// Result reports what Authorize did with an action.
type Result struct {
	AwaitingPin bool     `json:"awaitingPin"`
	Receipt     *Receipt `json:"receipt,omitempty"`
}

// Recovery is offered when an action fails for lack of funds. The customer
// either cancels or tops up with the suggested deposit.
type Recovery struct {
	Failed  Action  `json:"-"`
	Message string  `json:"message"`
	TopUp   Deposit `json:"topUp"`
}

// View is the render state of the gate. Digits are never exposed, only how
// many boxes are filled.
type View struct {
	State         State      `json:"state"`
	Filled        int        `json:"filled"`
	Focus         int        `json:"focus"`
	Error         string     `json:"error,omitempty"`
	PendingAction ActionKind `json:"pendingAction"`
	TargetCycleID *int64     `json:"targetCycleId,omitempty"`
	Recovery      *Recovery  `json:"recovery,omitempty"`
}

// Gate holds one PIN session. It is not safe for concurrent use.
type Gate struct {
	api     API
	logger  *logging.Logger
	metrics *metrics.BookingMetrics

	state    State
	digits   [PinLength]byte
	filled   int
	pending  Action
	errMsg   string
	recovery *Recovery
	hooks    []AfterActionFunc
}

// NewGate builds an idle gate.
func NewGate(api API, logger *logging.Logger, m *metrics.BookingMetrics) *Gate {
	if api == nil {
		panic("wallet: api required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{api: api, logger: logger.Component("wallet"), metrics: m, state: StateIdle}
}

// OnAfterAction registers fn to run after each successful action.
func (g *Gate) OnAfterAction(fn AfterActionFunc) {
	if fn != nil {
		g.hooks = append(g.hooks, fn)
	}
}

// State returns the current state.
func (g *Gate) State() State { return g.state }

// Pending returns the action waiting on the PIN, if any.
func (g *Gate) Pending() (Action, bool) {
	return g.pending, g.pending != nil
}

// Recovery returns the insufficient-balance recovery on offer, if any.
func (g *Gate) Recovery() (*Recovery, bool) {
	return g.recovery, g.recovery != nil
}

// View snapshots the gate for rendering.
func (g *Gate) View() View {
	v := View{
		State:         g.state,
		Filled:        g.filled,
		Focus:         g.Focus(),
		Error:         g.errMsg,
		PendingAction: KindNone,
		Recovery:      g.recovery,
	}
	if g.pending != nil {
		v.PendingAction = g.pending.Kind()
		v.TargetCycleID = cycleOf(g.pending)
	}
	return v
}

// Focus is the index of the box that accepts the next digit.
func (g *Gate) Focus() int {
	if g.filled >= PinLength {
		return PinLength - 1
	}
	return g.filled
}

// HasPin reports whether the customer has set a wallet PIN.
func (g *Gate) HasPin(ctx context.Context) (bool, error) {
	ok, err := g.api.WalletHasPassword(ctx)
	if err != nil {
		return false, fmt.Errorf("wallet: has pin: %w", err)
	}
	return ok, nil
}

// Authorize runs action straight away when the wallet has no PIN, otherwise
// opens the gate and leaves the action pending.
func (g *Gate) Authorize(ctx context.Context, action Action) (Result, error) {
	if g.state != StateIdle {
		return Result{}, apperr.Conflict("a PIN entry is already in progress")
	}
	hasPin, err := g.HasPin(ctx)
	if err != nil {
		return Result{}, err
	}
	if hasPin {
		if err := g.Open(action); err != nil {
			return Result{}, err
		}
		return Result{AwaitingPin: true}, nil
	}
	receipt, err := g.run(ctx, action)
	if err != nil {
		return Result{}, err
	}
	return Result{Receipt: &receipt}, nil
}

// Open starts PIN entry for action with an empty buffer.
func (g *Gate) Open(action Action) error {
	if action == nil {
		return apperr.Validation("action", "an action is required")
	}
	if g.state != StateIdle {
		return apperr.Conflict("a PIN entry is already in progress")
	}
	g.clearBuffer()
	g.errMsg = ""
	g.recovery = nil
	g.pending = action
	g.state = StatePinEntry
	g.logger.Info("wallet pin requested", "action", action.Kind())
	return nil
}

// Enter puts digit into box. Only the first empty box accepts input.
func (g *Gate) Enter(box int, digit string) error {
	if g.state != StatePinEntry {
		return apperr.Conflict("no PIN entry in progress")
	}
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return apperr.Validation("digit", "each box takes a single digit")
	}
	if box != g.filled || g.filled >= PinLength {
		return ErrFocusMismatch
	}
	g.digits[g.filled] = digit[0]
	g.filled++
	g.errMsg = ""
	return nil
}

// Backspace clears the last filled box and moves focus back to it.
func (g *Gate) Backspace() {
	if g.state != StatePinEntry || g.filled == 0 {
		return
	}
	g.filled--
	g.digits[g.filled] = 0
}

// Submit verifies the entered PIN and, when it is correct, closes the gate
// and runs the pending action exactly once. An expired session or a cancelled
// request abandons the pending action; other failures keep the entered digits
// for a retry.
func (g *Gate) Submit(ctx context.Context) (Receipt, error) {
	if g.state != StatePinEntry {
		return Receipt{}, apperr.Conflict("no PIN entry in progress")
	}
	if g.filled < PinLength {
		err := apperr.Validation("pin", "PIN must be %d digits", PinLength)
		g.errMsg = apperr.UserMessage(err)
		return Receipt{}, err
	}

	pin := string(g.digits[:])
	g.state = StateVerifying
	ok, err := g.api.WalletAccess(ctx, pin)
	if err != nil {
		g.metrics.ObservePinSubmission("error")
		if apperr.Silent(err) {
			g.logger.Info("wallet pin entry abandoned", "action", g.pending.Kind())
			g.close()
			g.errMsg = ""
			return Receipt{}, fmt.Errorf("wallet: verify pin: %w", err)
		}
		g.state = StatePinEntry
		g.errMsg = apperr.UserMessage(err)
		return Receipt{}, fmt.Errorf("wallet: verify pin: %w", err)
	}
	if !ok {
		g.state = StatePinEntry
		g.clearBuffer()
		invalid := &apperr.InvalidPinError{}
		g.errMsg = apperr.UserMessage(invalid)
		g.metrics.ObservePinSubmission("invalid")
		g.logger.Info("wallet pin rejected", "action", g.pending.Kind())
		return Receipt{}, invalid
	}

	g.metrics.ObservePinSubmission("verified")
	action := g.pending
	g.close()
	return g.run(ctx, action)
}

// Dismiss abandons PIN entry and any recovery offer.
func (g *Gate) Dismiss() {
	if g.pending != nil {
		g.logger.Info("wallet pin dismissed", "action", g.pending.Kind())
	}
	g.close()
	g.errMsg = ""
	g.recovery = nil
}

// CancelRecovery drops the insufficient-balance offer.
func (g *Gate) CancelRecovery() {
	g.recovery = nil
}

// TopUp accepts the recovery offer by authorizing the suggested deposit.
func (g *Gate) TopUp(ctx context.Context) (Result, error) {
	if g.recovery == nil {
		return Result{}, apperr.Conflict("no top-up is on offer")
	}
	deposit := g.recovery.TopUp
	g.recovery = nil
	return g.Authorize(ctx, deposit)
}

// SetPin sets the wallet PIN for the first time.
func (g *Gate) SetPin(ctx context.Context, pin string) error {
	if !validPin(pin) {
		return apperr.Validation("pin", "PIN must be %d digits", PinLength)
	}
	if err := g.api.SetWalletPassword(ctx, pin); err != nil {
		return fmt.Errorf("wallet: set pin: %w", err)
	}
	g.logger.Info("wallet pin set")
	return nil
}

// ForgotPin asks the backend to send a PIN reset email.
func (g *Gate) ForgotPin(ctx context.Context) error {
	if err := g.api.ForgotWalletPassword(ctx); err != nil {
		return fmt.Errorf("wallet: forgot pin: %w", err)
	}
	g.logger.Info("wallet pin reset requested")
	return nil
}

func (g *Gate) run(ctx context.Context, action Action) (Receipt, error) {
	receipt, err := action.Run(ctx, g.api)
	if err != nil {
		var insufficient *apperr.InsufficientBalanceError
		if errors.As(err, &insufficient) && offersTopUp(action) {
			g.recovery = &Recovery{
				Failed:  action,
				Message: apperr.UserMessage(err),
				TopUp:   Deposit{Amount: amountOf(action)},
			}
			g.logger.Info("wallet action short of funds", "action", action.Kind())
		} else if insufficient != nil {
			g.logger.Info("wallet action short of funds, no top-up offered", "action", action.Kind())
		} else if !apperr.Silent(err) {
			g.logger.Warn("wallet action failed", "action", action.Kind(), "error", err)
		}
		return Receipt{}, err
	}
	g.logger.Info("wallet action completed", "action", receipt.Kind, "cycle_id", receipt.CycleID)
	for _, hook := range g.hooks {
		hook(ctx, receipt)
	}
	return receipt, nil
}

func (g *Gate) close() {
	g.clearBuffer()
	g.pending = nil
	g.state = StateIdle
}

func (g *Gate) clearBuffer() {
	g.digits = [PinLength]byte{}
	g.filled = 0
}

func validPin(pin string) bool {
	if len(pin) != PinLength {
		return false
	}
	return strings.Trim(pin, "0123456789") == ""
}

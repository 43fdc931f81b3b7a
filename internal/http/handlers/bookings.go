package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/flow"
	"github.com/wolfman30/chefbook/internal/wallet"
	"github.com/wolfman30/chefbook/pkg/logging"
)

var errAmount = apperr.Validation("amount", "amount must be positive")

// BalanceReader reads the customer's wallet balance.
type BalanceReader interface {
	WalletBalance(ctx context.Context) (float64, error)
}

// BookingHandler serves the payment screen of a confirmed booking: the
// payment-cycle ledger and the wallet PIN gate.
type BookingHandler struct {
	flows   *flow.Service
	balance BalanceReader
	logger  *logging.Logger
}

// NewBookingHandler builds a BookingHandler.
func NewBookingHandler(flows *flow.Service, balance BalanceReader, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{flows: flows, balance: balance, logger: logger}
}

// Routes mounts the booking routes. pinLimit wraps the PIN submission route.
func (h *BookingHandler) Routes(r chi.Router, pinLimit func(http.Handler) http.Handler) {
	r.Route("/{bookingID}", func(r chi.Router) {
		r.Post("/ledger", h.OpenLedger)
		r.Get("/ledger", h.Ledger)
		r.Post("/ledger/refresh", h.Refresh)
		r.Post("/ledger/cycles/{cycleID}/pay", h.PayCycle)
		r.Post("/wallet/deposit", h.Deposit)
		r.Post("/wallet/withdraw", h.Withdraw)
		r.Route("/pin", func(r chi.Router) {
			r.Post("/digits", h.EnterDigit)
			r.Post("/backspace", h.Backspace)
			if pinLimit != nil {
				r.With(pinLimit).Post("/submit", h.SubmitPin)
			} else {
				r.Post("/submit", h.SubmitPin)
			}
			r.Post("/dismiss", h.DismissPin)
			r.Post("/forgot", h.ForgotPin)
			r.Post("/set", h.SetPin)
			r.Post("/recovery/topup", h.TopUp)
			r.Post("/recovery/cancel", h.CancelRecovery)
		})
	})
}

// Balance returns the wallet balance.
func (h *BookingHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.balance.WalletBalance(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *BookingHandler) OpenLedger(w http.ResponseWriter, r *http.Request) {
	bookingID, err := idParam(r, "bookingID")
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	d, err := h.flows.OpenDetails(r.Context(), bookingID)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (h *BookingHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (h *BookingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	view, err := d.Refresh(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type payRequest struct {
	AmountDue float64 `json:"amountDue"`
}

func (h *BookingHandler) PayCycle(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	cycleID, err := idParam(r, "cycleID")
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	view, err := d.Pay(r.Context(), cycleID, req.AmountDue)
	if err != nil {
		writeError(w, r, h.logger, err, view.Pin.Recovery)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func (h *BookingHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.authorize(w, r, func(amount float64) wallet.Action { return wallet.Deposit{Amount: amount} })
}

func (h *BookingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.authorize(w, r, func(amount float64) wallet.Action { return wallet.Withdraw{Amount: amount} })
}

func (h *BookingHandler) authorize(w http.ResponseWriter, r *http.Request, build func(float64) wallet.Action) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, h.logger, errAmount, nil)
		return
	}
	res, view, err := d.Authorize(r.Context(), build(req.Amount))
	if err != nil {
		writeError(w, r, h.logger, err, view.Pin.Recovery)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "details": view})
}

type digitRequest struct {
	Box   int    `json:"box"`
	Digit string `json:"digit"`
}

func (h *BookingHandler) EnterDigit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	var req digitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	view, err := d.EnterDigit(req.Box, req.Digit)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *BookingHandler) Backspace(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Backspace())
}

func (h *BookingHandler) SubmitPin(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	receipt, view, err := d.SubmitPin(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, view.Pin.Recovery)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt, "details": view})
}

func (h *BookingHandler) DismissPin(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.DismissPin())
}

func (h *BookingHandler) ForgotPin(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	if err := d.ForgotPin(r.Context()); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type setPinRequest struct {
	Pin string `json:"pin"`
}

func (h *BookingHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	var req setPinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	if err := d.SetPin(r.Context(), req.Pin); err != nil {
		writeError(w, r, h.logger, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	res, view, err := d.TopUp(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err, view.Pin.Recovery)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "details": view})
}

func (h *BookingHandler) CancelRecovery(w http.ResponseWriter, r *http.Request) {
	d, ok := h.details(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.CancelRecovery())
}

func (h *BookingHandler) details(w http.ResponseWriter, r *http.Request) (*flow.Details, bool) {
	bookingID, err := idParam(r, "bookingID")
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return nil, false
	}
	d, err := h.flows.Details(r.Context(), bookingID)
	if err != nil {
		writeError(w, r, h.logger, err, nil)
		return nil, false
	}
	return d, true
}

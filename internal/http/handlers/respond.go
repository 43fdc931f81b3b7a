package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/wallet"
	"github.com/wolfman30/chefbook/pkg/logging"
)

type errorResponse struct {
	Error    string           `json:"error"`
	Field    string           `json:"field,omitempty"`
	Recovery *wallet.Recovery `json:"recovery,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("body", "invalid JSON body")
	}
	return nil
}

// StatusFor maps a core error to the bridge status code. Zero means nothing
// is written.
func StatusFor(err error) int {
	var (
		validation *apperr.ValidationError
		conflict   *apperr.ConflictError
		pin        *apperr.InvalidPinError
		balance    *apperr.InsufficientBalanceError
		expired    *apperr.AuthExpiredError
		cancelled  *apperr.RequestCancelledError
		notFound   *apperr.NotFoundError
		remote     *apperr.RemoteServiceError
	)
	switch {
	case errors.As(err, &cancelled):
		return 0
	case errors.As(err, &expired):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict), errors.Is(err, wallet.ErrFocusMismatch):
		return http.StatusConflict
	case errors.As(err, &pin):
		return http.StatusForbidden
	case errors.As(err, &balance):
		return http.StatusPaymentRequired
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &remote):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error, recovery *wallet.Recovery) {
	status := StatusFor(err)
	switch status {
	case 0:
		return
	case http.StatusUnauthorized:
		w.WriteHeader(status)
		return
	case http.StatusInternalServerError, http.StatusBadGateway:
		logger.Error("bridge request failed", "path", r.URL.Path, "status", status, "error", err)
	}

	body := errorResponse{Error: apperr.UserMessage(err)}
	var validation *apperr.ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
	}
	if errors.Is(err, wallet.ErrFocusMismatch) {
		body.Error = "Enter digits in order."
	}
	if status == http.StatusPaymentRequired {
		body.Recovery = recovery
	}
	writeJSON(w, status, body)
}

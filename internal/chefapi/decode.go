package chefapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/chefbook/internal/apperr"
)

// decodeList accepts either a bare JSON array or a {"content": [...]} envelope.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}
	var wrapped struct {
		Content []T `json:"content"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return wrapped.Content, nil
}

// decodeBool accepts a bare boolean or a {"content": bool} envelope.
func decodeBool(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, errors.New("decode bool: empty body")
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var wrapped struct {
		Content *bool `json:"content"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Content == nil {
		return false, fmt.Errorf("decode bool: unexpected body %q", truncate(string(raw), 64))
	}
	return *wrapped.Content, nil
}

// serverMessage extracts a human-readable message from an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		return strings.TrimSpace(payload.Error)
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return truncate(text, 300)
}

// spendsBalance lists the endpoints whose failures may be read as a wallet
// shortfall from the message text alone. Other endpoints only report one
// with a 402.
var spendsBalance = map[string]bool{
	"pay_cycle":       true,
	"wallet_withdraw": true,
	"wallet_deposit":  true,
}

func mentionsInsufficientBalance(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "insufficient") || strings.Contains(msg, "not enough balance")
}

func outcomeLabel(err error) string {
	var (
		auth      *apperr.AuthExpiredError
		cancelled *apperr.RequestCancelledError
		balance   *apperr.InsufficientBalanceError
		remote    *apperr.RemoteServiceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &auth):
		return "auth_expired"
	case errors.As(err, &cancelled):
		return "cancelled"
	case errors.As(err, &balance):
		return "insufficient_balance"
	case errors.As(err, &remote):
		return "remote_error"
	default:
		return "transport_error"
	}
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

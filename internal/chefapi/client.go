package chefapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/auth"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/pkg/logging"
)

const defaultTimeout = 15 * time.Second

var chefAPITracer = otel.Tracer("chefbook.internal.chefapi")

// Client wraps the REST endpoints the booking core depends on.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.BookingMetrics
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a backend client. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMenus returns a chef's menus.
func (c *Client) ListMenus(ctx context.Context, chefID int64) ([]MenuSnapshot, error) {
	q := url.Values{}
	q.Set("chefId", fmt.Sprint(chefID))

	var wrapped struct {
		Content []MenuSnapshot `json:"content"`
	}
	if err := c.doJSON(ctx, "menus", http.MethodGet, "/menus", q, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	return wrapped.Content, nil
}

// ListDishes returns every dish a chef offers.
func (c *Client) ListDishes(ctx context.Context, chefID int64) ([]Dish, error) {
	q := url.Values{}
	q.Set("chefId", fmt.Sprint(chefID))

	var wrapped struct {
		Content []Dish `json:"content"`
	}
	if err := c.doJSON(ctx, "dishes", http.MethodGet, "/dishes", q, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	return wrapped.Content, nil
}

// ListDishesNotInMenu returns the chef's dishes that are not part of menuID.
func (c *Client) ListDishesNotInMenu(ctx context.Context, menuID int64) ([]Dish, error) {
	q := url.Values{}
	q.Set("menuId", fmt.Sprint(menuID))

	var wrapped struct {
		Content []Dish `json:"content"`
	}
	if err := c.doJSON(ctx, "dishes_not_in_menu", http.MethodGet, "/dishes/not-in-menu", q, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("list dishes not in menu: %w", err)
	}
	return wrapped.Content, nil
}

// CalculateLongTermBooking prices a long-term booking draft.
func (c *Client) CalculateLongTermBooking(ctx context.Context, payload *BookingPayload) (PricedDraft, error) {
	var priced json.RawMessage
	if err := c.doJSON(ctx, "calculate_long_term", http.MethodPost, "/bookings/calculate-long-term-booking", nil, payload, &priced); err != nil {
		return nil, fmt.Errorf("calculate long-term booking: %w", err)
	}
	return PricedDraft(priced), nil
}

// PaymentCycles returns the payment cycles of a booking.
func (c *Client) PaymentCycles(ctx context.Context, bookingID int64) ([]PaymentCycle, error) {
	path := fmt.Sprintf("/bookings/%d/payment-cycles", bookingID)

	var raw json.RawMessage
	if err := c.doJSON(ctx, "payment_cycles", http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("get payment cycles: %w", err)
	}
	cycles, err := decodeList[PaymentCycle](raw)
	if err != nil {
		return nil, fmt.Errorf("get payment cycles: %w", err)
	}
	return cycles, nil
}

// Booking returns the parent booking's status.
func (c *Client) Booking(ctx context.Context, bookingID int64) (*BookingStatus, error) {
	path := fmt.Sprintf("/bookings/%d", bookingID)

	var status BookingStatus
	if err := c.doJSON(ctx, "booking", http.MethodGet, path, nil, nil, &status); err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if status.ID == 0 {
		status.ID = bookingID
	}
	return &status, nil
}

// PayCycle pays a payment cycle from the customer's wallet.
func (c *Client) PayCycle(ctx context.Context, cycleID int64) error {
	path := fmt.Sprintf("/bookings/payment-cycles/%d/pay", cycleID)
	if err := c.doJSON(ctx, "pay_cycle", http.MethodPost, path, nil, nil, nil); err != nil {
		return fmt.Errorf("pay cycle %d: %w", cycleID, err)
	}
	return nil
}

// WalletHasPassword reports whether the customer has set a wallet PIN.
func (c *Client) WalletHasPassword(ctx context.Context) (bool, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, "wallet_has_password", http.MethodGet, "/users/profile/my-wallet/has-password", nil, nil, &raw); err != nil {
		return false, fmt.Errorf("wallet has password: %w", err)
	}
	return decodeBool(raw)
}

// WalletAccess verifies a wallet PIN. A wrong PIN is (false, nil).
func (c *Client) WalletAccess(ctx context.Context, pin string) (bool, error) {
	q := url.Values{}
	q.Set("password", pin)

	var raw json.RawMessage
	if err := c.doJSON(ctx, "wallet_access", http.MethodPost, "/users/profile/my-wallet/access", q, nil, &raw); err != nil {
		return false, fmt.Errorf("wallet access: %w", err)
	}
	return decodeBool(raw)
}

// SetWalletPassword sets the wallet PIN.
func (c *Client) SetWalletPassword(ctx context.Context, pin string) error {
	q := url.Values{}
	q.Set("password", pin)
	if err := c.doJSON(ctx, "wallet_set_password", http.MethodPost, "/users/profile/my-wallet/set-password", q, nil, nil); err != nil {
		return fmt.Errorf("set wallet password: %w", err)
	}
	return nil
}

// ForgotWalletPassword asks the backend to email a PIN reset.
func (c *Client) ForgotWalletPassword(ctx context.Context) error {
	if err := c.doJSON(ctx, "wallet_forgot_password", http.MethodPost, "/users/profile/my-wallet/forgot-wallet-password", nil, nil, nil); err != nil {
		return fmt.Errorf("forgot wallet password: %w", err)
	}
	return nil
}

// WalletBalance returns the customer's wallet balance.
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	var wallet struct {
		Balance float64 `json:"balance"`
	}
	if err := c.doJSON(ctx, "wallet", http.MethodGet, "/users/profile/my-wallet", nil, nil, &wallet); err != nil {
		return 0, fmt.Errorf("get wallet: %w", err)
	}
	return wallet.Balance, nil
}

// Deposit starts a wallet top-up.
func (c *Client) Deposit(ctx context.Context, amount float64) (*DepositResult, error) {
	q := url.Values{}
	q.Set("amount", formatAmount(amount))

	var result DepositResult
	if err := c.doJSON(ctx, "wallet_deposit", http.MethodPost, "/users/profile/my-wallet/deposit", q, nil, &result); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return &result, nil
}

// Withdraw moves money out of the wallet.
func (c *Client) Withdraw(ctx context.Context, amount float64) error {
	q := url.Values{}
	q.Set("amount", formatAmount(amount))
	if err := c.doJSON(ctx, "wallet_withdraw", http.MethodPost, "/users/profile/my-wallet/withdraw", q, nil, nil); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, query url.Values, body interface{}, out interface{}) (err error) {
	ctx, span := chefAPITracer.Start(ctx, "chefapi."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("chefbook.endpoint", endpoint),
	)

	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(endpoint, outcomeLabel(err), time.Since(start).Seconds())
		if err != nil && !apperr.Silent(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	token, hasToken := auth.TokenFromContext(ctx)
	if hasToken && auth.Expired(token, c.now()) {
		return &apperr.AuthExpiredError{}
	}

	endpointURL := c.baseURL + path
	if len(query) > 0 {
		endpointURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpointURL, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hasToken {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			return &apperr.RequestCancelledError{Cause: err}
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return &apperr.RequestCancelledError{Cause: err}
		}
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Debug("chef API rejected credentials", "path", path)
		return &apperr.AuthExpiredError{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverMessage(respBody)
		c.logger.Warn("chef API non-2xx response", "status", resp.StatusCode, "path", path, "message", msg)
		if resp.StatusCode == http.StatusPaymentRequired || (spendsBalance[endpoint] && mentionsInsufficientBalance(msg)) {
			return &apperr.InsufficientBalanceError{Message: msg}
		}
		return &apperr.RemoteServiceError{Status: resp.StatusCode, Message: msg}
	}

	if len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

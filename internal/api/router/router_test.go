package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chefbook/internal/catalog"
	"github.com/wolfman30/chefbook/internal/chefapi"
	"github.com/wolfman30/chefbook/internal/flow"
	"github.com/wolfman30/chefbook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chefbook/internal/http/middleware"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/pkg/logging"
)

const testToken = "opaque-test-token"

// fakeChefBackend is a minimal in-memory backend for the bridge.
type fakeChefBackend struct {
	mu         sync.Mutex
	balance    float64
	cycleState string
	payCalls   int
	payloads   []json.RawMessage
	tokens     []string
}

func (b *fakeChefBackend) handler() http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	mux.HandleFunc("GET /menus", func(w http.ResponseWriter, r *http.Request) {
		write(w, 200, `{"content":[{"id":7,"name":"Family","menuItems":[{"dishId":101,"dishName":"Pho"},{"dishId":102,"dishName":"Spring rolls"}]}]}`)
	})
	mux.HandleFunc("GET /dishes", func(w http.ResponseWriter, r *http.Request) {
		write(w, 200, `{"content":[{"id":101,"name":"Pho"},{"id":102,"name":"Spring rolls"},{"id":103,"name":"Banh xeo"}]}`)
	})
	mux.HandleFunc("GET /dishes/not-in-menu", func(w http.ResponseWriter, r *http.Request) {
		write(w, 200, `{"content":[{"id":103,"name":"Banh xeo"}]}`)
	})
	mux.HandleFunc("POST /bookings/calculate-long-term-booking", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.payloads = append(b.payloads, body)
		b.mu.Unlock()
		write(w, 200, `{"totalPrice":420.5,"bookingDetails":[]}`)
	})
	mux.HandleFunc("GET /bookings/7/payment-cycles", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		state := b.cycleState
		b.mu.Unlock()
		write(w, 200, `[{"id":42,"cycleOrder":1,"status":"`+state+`","amountDue":50,"bookingDetails":[{"id":1,"sessionDate":"2026-03-02"}]}]`)
	})
	mux.HandleFunc("GET /bookings/7", func(w http.ResponseWriter, r *http.Request) {
		write(w, 200, `{"id":7,"status":"CONFIRMED"}`)
	})
	mux.HandleFunc("POST /bookings/payment-cycles/42/pay", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.payCalls++
		if b.balance < 50 {
			write(w, 400, `{"message":"Insufficient wallet balance"}`)
			return
		}
		b.balance -= 50
		b.cycleState = "PAID"
		write(w, 200, `{}`)
	})
	mux.HandleFunc("GET /users/profile/my-wallet/has-password", func(w http.ResponseWriter, r *http.Request) {
		write(w, 200, `true`)
	})
	mux.HandleFunc("POST /users/profile/my-wallet/access", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("password") == "1234" {
			write(w, 200, `true`)
			return
		}
		write(w, 200, `false`)
	})
	mux.HandleFunc("GET /users/profile/my-wallet", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		balance := b.balance
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]float64{"balance": balance})
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.tokens = append(b.tokens, r.Header.Get("Authorization"))
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func newTestRouter(t *testing.T, backend *fakeChefBackend) http.Handler {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	client := chefapi.NewClient(srv.URL, 5*time.Second, logger, chefapi.WithMetrics(m))
	now := func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	flows := flow.NewService(flow.Config{
		Catalog:    catalog.NewResolver(client, nil, time.Minute, logger),
		Backend:    client,
		SessionTTL: time.Hour,
		Logger:     logger,
		Metrics:    m,
		Now:        now,
	})
	return New(&Config{
		Logger:         logger,
		Drafts:         handlers.NewDraftHandler(flows, logger),
		Bookings:       handlers.NewBookingHandler(flows, client, logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		PinLimiter:     httpmiddleware.NewRateLimiter(10, 10),
		Now:            now,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, h, testToken, method, path, body)
}

func doAs(t *testing.T, h http.Handler, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeChefBackend{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if resp := decode(t, rr); resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", resp["status"])
	}
}

func TestRouterRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t, &fakeChefBackend{})

	req := httptest.NewRequest(http.MethodPost, "/v1/drafts", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}
}

func TestRouterDraftFlow(t *testing.T) {
	backend := &fakeChefBackend{}
	router := newTestRouter(t, backend)

	rr := do(t, router, http.MethodPost, "/v1/drafts", `{"chefId":12,"package":{"id":3,"durationDays":2,"maxGuestCount":6}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id, _ := decode(t, rr)["id"].(string)
	if id == "" {
		t.Fatalf("expected draft id")
	}
	base := "/v1/drafts/" + id

	for _, date := range []string{"2026-03-02", "2026-03-03", "2026-03-04"} {
		rr = do(t, router, http.MethodPost, base+"/dates/"+date+"/toggle", "")
		if date == "2026-03-04" {
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("third date: expected 422, got %d", rr.Code)
			}
			continue
		}
		if rr.Code != http.StatusOK {
			t.Fatalf("toggle %s: got %d: %s", date, rr.Code, rr.Body.String())
		}
	}

	rr = do(t, router, http.MethodPut, base+"/dates/2026-03-02/show-menu", `{"showMenu":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("show menu: got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPost, base+"/dates/2026-03-02/dishes/103/toggle", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle dish: got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPost, base+"/dates/2026-03-02/menu/7/toggle", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("menu with dishes: expected 409, got %d", rr.Code)
	}
	if msg := decode(t, rr)["error"]; msg != "must deselect all dishes before choosing a menu" {
		t.Fatalf("unexpected message %v", msg)
	}
	rr = do(t, router, http.MethodPost, base+"/dates/2026-03-02/selection/apply", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("apply: got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, router, http.MethodPost, base+"/dates/2026-03-02/notes/open", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("open notes: got %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(t, router, http.MethodPut, base+"/dates/2026-03-02/notes/103", `{"notes":"no peanuts"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("set note: got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPost, base+"/dates/2026-03-02/notes/save", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("save notes: got %d", rr.Code)
	}

	rr = do(t, router, http.MethodPost, base+"/calculate", `{"guestCount":4,"address":"12 Nguyen Hue"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("calculate: got %d: %s", rr.Code, rr.Body.String())
	}
	priced, _ := decode(t, rr)["priced"].(map[string]any)
	if priced["totalPrice"] != 420.5 {
		t.Fatalf("expected priced draft passthrough, got %v", priced)
	}

	if len(backend.payloads) != 1 {
		t.Fatalf("expected one pricing call, got %d", len(backend.payloads))
	}
	var payload chefapi.BookingPayload
	if err := json.Unmarshal(backend.payloads[0], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	first := payload.BookingDetails[0]
	if first.MenuID != nil || len(first.ExtraDishIDs) != 1 || first.Dishes[0].Notes != "no peanuts" {
		t.Fatalf("unexpected first day %+v", first)
	}
	for _, token := range backend.tokens {
		if token != "Bearer "+testToken {
			t.Fatalf("expected bearer token forwarded, got %q", token)
		}
	}
}

func TestRouterUnknownDraft(t *testing.T) {
	router := newTestRouter(t, &fakeChefBackend{})
	rr := do(t, router, http.MethodGet, "/v1/drafts/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func enterPin(t *testing.T, router http.Handler, pin string) {
	t.Helper()
	for i, digit := range pin {
		body, _ := json.Marshal(map[string]any{"box": i, "digit": string(digit)})
		rr := do(t, router, http.MethodPost, "/v1/bookings/7/pin/digits", string(body))
		if rr.Code != http.StatusOK {
			t.Fatalf("digit %d: got %d: %s", i, rr.Code, rr.Body.String())
		}
	}
}

func TestRouterPayCycleWithPin(t *testing.T) {
	backend := &fakeChefBackend{balance: 100, cycleState: "CONFIRMED"}
	router := newTestRouter(t, backend)

	rr := do(t, router, http.MethodPost, "/v1/bookings/7/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("open ledger: got %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(t, router, http.MethodPost, "/v1/bookings/7/ledger/cycles/42/pay", `{"amountDue":50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pay: got %d: %s", rr.Code, rr.Body.String())
	}
	if outcome := decode(t, rr)["outcome"]; outcome != "AWAITING_PIN" {
		t.Fatalf("expected AWAITING_PIN, got %v", outcome)
	}

	enterPin(t, router, "9999")
	rr = do(t, router, http.MethodPost, "/v1/bookings/7/pin/submit", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong pin: expected 403, got %d", rr.Code)
	}
	if msg := decode(t, rr)["error"]; msg != "Incorrect PIN. Please try again." {
		t.Fatalf("unexpected message %v", msg)
	}

	enterPin(t, router, "1234")
	rr = do(t, router, http.MethodPost, "/v1/bookings/7/pin/submit", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: got %d: %s", rr.Code, rr.Body.String())
	}
	if backend.payCalls != 1 {
		t.Fatalf("expected exactly one pay call, got %d", backend.payCalls)
	}

	rr = do(t, router, http.MethodGet, "/v1/bookings/7/ledger", "")
	ledger := decode(t, rr)["ledger"].(map[string]any)
	cycle := ledger["cycles"].([]any)[0].(map[string]any)
	if cycle["status"] != "PAID" {
		t.Fatalf("expected cycle PAID, got %v", cycle["status"])
	}

	rr = do(t, router, http.MethodGet, "/v1/wallet/balance", "")
	if balance := decode(t, rr)["balance"]; balance != 50.0 {
		t.Fatalf("expected balance 50, got %v", balance)
	}
}

func TestRouterPaymentScreenIsPerCustomer(t *testing.T) {
	backend := &fakeChefBackend{balance: 100, cycleState: "CONFIRMED"}
	router := newTestRouter(t, backend)

	do(t, router, http.MethodPost, "/v1/bookings/7/ledger", "")
	rr := do(t, router, http.MethodPost, "/v1/bookings/7/ledger/cycles/42/pay", `{"amountDue":50}`)
	if outcome := decode(t, rr)["outcome"]; outcome != "AWAITING_PIN" {
		t.Fatalf("expected AWAITING_PIN, got %v", outcome)
	}

	const other = "other-customer-token"
	rr = doAs(t, router, other, http.MethodPost, "/v1/bookings/7/pin/submit", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a screen the caller never opened, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doAs(t, router, other, http.MethodPost, "/v1/bookings/7/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("open ledger: got %d: %s", rr.Code, rr.Body.String())
	}
	if pin, _ := decode(t, rr)["pin"].(map[string]any); pin["pendingAction"] != "NONE" {
		t.Fatalf("expected no pending action for the other customer, got %v", pin["pendingAction"])
	}
	rr = doAs(t, router, other, http.MethodPost, "/v1/bookings/7/pin/submit", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 with no PIN entry open, got %d", rr.Code)
	}
	if backend.payCalls != 0 {
		t.Fatalf("expected no payment, got %d", backend.payCalls)
	}
}

func TestRouterPayCycleInsufficientBalance(t *testing.T) {
	backend := &fakeChefBackend{balance: 10, cycleState: "CONFIRMED"}
	router := newTestRouter(t, backend)

	do(t, router, http.MethodPost, "/v1/bookings/7/ledger", "")
	do(t, router, http.MethodPost, "/v1/bookings/7/ledger/cycles/42/pay", `{"amountDue":50}`)
	enterPin(t, router, "1234")

	rr := do(t, router, http.MethodPost, "/v1/bookings/7/pin/submit", "")
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode(t, rr)
	recovery, ok := resp["recovery"].(map[string]any)
	if !ok {
		t.Fatalf("expected recovery choices, got %v", resp)
	}
	if topUp := recovery["topUp"].(map[string]any); topUp["amount"] != 50.0 {
		t.Fatalf("expected top-up of 50, got %v", topUp)
	}

	rr = do(t, router, http.MethodGet, "/v1/bookings/7/ledger", "")
	ledger := decode(t, rr)["ledger"].(map[string]any)
	cycle := ledger["cycles"].([]any)[0].(map[string]any)
	if cycle["status"] != "CONFIRMED" {
		t.Fatalf("expected cycle still CONFIRMED, got %v", cycle["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeChefBackend{})
	do(t, router, http.MethodGet, "/v1/wallet/balance", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "chefbook_chefapi_requests_total") {
		t.Fatalf("expected backend request counter in metrics output")
	}
}

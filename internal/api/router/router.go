package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/chefbook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chefbook/internal/http/middleware"
	"github.com/wolfman30/chefbook/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Drafts             *handlers.DraftHandler
	Bookings           *handlers.BookingHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	PinLimiter         *httpmiddleware.RateLimiter

	// Now is the clock used for local token expiry checks.
	Now func() time.Time
}

// New creates the bridge router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Shell endpoints, authenticated with the user's bearer token
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpmiddleware.BearerToken(cfg.Now))
		v1.Use(middleware.NoCache)
		if cfg.Drafts != nil {
			v1.Route("/drafts", cfg.Drafts.Routes)
		}
		if cfg.Bookings != nil {
			v1.Get("/wallet/balance", cfg.Bookings.Balance)
			var pinLimit func(http.Handler) http.Handler
			if cfg.PinLimiter != nil {
				pinLimit = httpmiddleware.Throttle(cfg.PinLimiter)
			}
			v1.Route("/bookings", func(r chi.Router) {
				cfg.Bookings.Routes(r, pinLimit)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

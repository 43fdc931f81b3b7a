// Package flow holds the bridge sessions driven by the mobile shell: drafts
// of long-term bookings being configured, and payment screens of confirmed
// bookings.
package flow

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/auth"
	"github.com/wolfman30/chefbook/internal/ledger"
	"github.com/wolfman30/chefbook/internal/longterm"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/internal/wallet"
	"github.com/wolfman30/chefbook/pkg/logging"
)

// Backend is every backend call the sessions make.
type Backend interface {
	Pricer
	ledger.API
	wallet.API
}

// Config wires a Service.
type Config struct {
	Catalog    Catalog
	Backend    Backend
	SessionTTL time.Duration
	Logger     *logging.Logger
	Metrics    *metrics.BookingMetrics
	Now        func() time.Time
}

// Service creates and finds sessions.
type Service struct {
	catalog Catalog
	backend Backend
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time

	drafts  *Store[*Draft]
	details *Store[*Details]
}

// NewService constructs the session service.
func NewService(cfg Config) *Service {
	if cfg.Catalog == nil {
		panic("flow: catalog required")
	}
	if cfg.Backend == nil {
		panic("flow: backend required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		catalog: cfg.Catalog,
		backend: cfg.Backend,
		logger:  cfg.Logger.Component("flow"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
		drafts:  NewStore[*Draft](cfg.SessionTTL, cfg.Now),
		details: NewStore[*Details](cfg.SessionTTL, cfg.Now),
	}
}

// Run evicts idle sessions until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	go s.drafts.Run(ctx, interval)
	s.details.Run(ctx, interval)
}

// CreateDraft starts a draft for chefID and pkg.
func (s *Service) CreateDraft(chefID int64, pkg longterm.Package) (*Draft, error) {
	if chefID <= 0 {
		return nil, apperr.Validation("chefId", "chefId is required")
	}
	if pkg.DurationDays <= 0 {
		return nil, apperr.Validation("package.durationDays", "durationDays must be positive")
	}
	d := &Draft{
		id:        uuid.New().String(),
		chefID:    chefID,
		pkg:       pkg,
		catalog:   s.catalog,
		pricer:    s.backend,
		logger:    s.logger,
		metrics:   s.metrics,
		now:       s.now,
		selection: longterm.NewSelection(pkg.DurationDays),
	}
	s.drafts.Put(d.id, d)
	s.logger.Info("draft created", "draft_id", d.id, "chef_id", chefID, "package_id", pkg.ID, "duration_days", pkg.DurationDays)
	return d, nil
}

// Draft finds a draft by id.
func (s *Service) Draft(id string) (*Draft, error) {
	d, ok := s.drafts.Get(id)
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "draft", ID: id}
	}
	return d, nil
}

// DeleteDraft discards a draft.
func (s *Service) DeleteDraft(id string) {
	s.drafts.Delete(id)
}

// OpenDetails opens (or reopens) the payment screen of a booking for the
// caller in ctx and loads its ledger. Each caller gets its own screen, so a
// pending PIN entry is never visible to another token.
func (s *Service) OpenDetails(ctx context.Context, bookingID int64) (*Details, error) {
	if bookingID <= 0 {
		return nil, apperr.Validation("bookingId", "bookingId is required")
	}
	key, err := detailsKey(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if d, ok := s.details.Get(key); ok {
		if _, err := d.Refresh(ctx); err != nil {
			return d, err
		}
		return d, nil
	}
	gate := wallet.NewGate(s.backend, s.logger, s.metrics)
	d := &Details{
		ledger: ledger.New(bookingID, s.backend, gate, s.logger, s.metrics),
		gate:   gate,
	}
	if err := d.ledger.Refresh(ctx); err != nil {
		return nil, err
	}
	s.details.Put(key, d)
	return d, nil
}

// Details finds the payment screen the caller in ctx opened for bookingID.
func (s *Service) Details(ctx context.Context, bookingID int64) (*Details, error) {
	key, err := detailsKey(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	d, ok := s.details.Get(key)
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "booking", ID: strconv.FormatInt(bookingID, 10)}
	}
	return d, nil
}

func detailsKey(ctx context.Context, bookingID int64) (string, error) {
	owner, ok := auth.OwnerKey(ctx)
	if !ok {
		return "", &apperr.AuthExpiredError{}
	}
	return owner + ":" + strconv.FormatInt(bookingID, 10), nil
}

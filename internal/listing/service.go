package listing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b/internal/common"
	"github.com/noah-isme/backend-b2b/internal/events"
	"github.com/noah-isme/backend-b2b/internal/lock"
	"github.com/noah-isme/backend-b2b/internal/obs"
	"github.com/noah-isme/backend-b2b/internal/pricing"
	"github.com/noah-isme/backend-b2b/internal/tiers"
)

// Drafts holds edit sessions that have not been saved yet.
type Drafts interface {
	Load(ctx context.Context, id uuid.UUID) (Listing, bool, error)
	Put(ctx context.Context, l Listing) error
	Drop(ctx context.Context, id uuid.UUID) error
}

// Locker serialises saves of the same listing.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service implements the listing edit session on top of the tier engine.
type Service struct {
	store        Store
	drafts       Drafts
	locker       Locker
	bus          *events.Bus
	calc         pricing.Calculator
	logger       zerolog.Logger
	lockTTL      time.Duration
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Drafts       Drafts
	Locker       Locker
	Bus          *events.Bus
	Calculator   pricing.Calculator
	Logger       zerolog.Logger
	LockTTL      time.Duration
	DefaultLimit int
	MaxLimit     int
}

// NewService validates dependencies and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("listing: store is required")
	}
	if cfg.Drafts == nil {
		return nil, errors.New("listing: draft store is required")
	}
	if cfg.Locker == nil {
		return nil, errors.New("listing: locker is required")
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Service{
		store:        cfg.Store,
		drafts:       cfg.Drafts,
		locker:       cfg.Locker,
		bus:          cfg.Bus,
		calc:         cfg.Calculator,
		logger:       obs.Component(cfg.Logger, "listing"),
		lockTTL:      lockTTL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
	}, nil
}

// Calculator returns the calculator used for every tier map. A nil service
// prices with the default rates.
func (s *Service) Calculator() pricing.Calculator {
	if s == nil {
		return pricing.Default()
	}
	return s.calc
}

// Create stores a new listing owned by the editor. B2B listings start with
// every tier present and unpriced.
func (s *Service) Create(ctx context.Context, editor Editor, in CreateInput) (Listing, error) {
	if editor.UserID == "" || editor.Role != common.RoleBusinessOwner {
		return Listing{}, ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Listing{}, common.NewAppError("VALIDATION_ERROR", "title is required", http.StatusBadRequest, nil)
	}
	l := Listing{
		ID:        uuid.New(),
		OwnerID:   editor.UserID,
		Title:     title,
		BasePrice: pricing.ParseSellerPrice(in.BasePrice),
		Quantity:  in.Quantity,
		IsB2B:     in.IsB2B,
	}
	if l.IsB2B {
		m := tiers.Init(s.calc)
		l.Tiers = &m
	}
	saved, err := s.store.Insert(ctx, l)
	if err != nil {
		return Listing{}, err
	}
	saved = s.hydrate(saved)
	s.emit(ctx, events.TopicListingCreated, saved)
	s.logger.Info().Str("listing_id", saved.ID.String()).Bool("b2b", saved.IsB2B).Msg("listing_created")
	return saved, nil
}

// Get returns the listing as viewer sees it. Only an editor of the listing
// sees the open draft; everyone else gets the saved listing.
func (s *Service) Get(ctx context.Context, viewer Editor, id uuid.UUID) (Listing, error) {
	draft, ok, err := s.drafts.Load(ctx, id)
	if err != nil {
		return Listing{}, fmt.Errorf("load draft: %w", err)
	}
	if ok && CanEdit(draft, viewer) {
		return s.hydrate(draft), nil
	}
	return s.saved(ctx, id)
}

// ListByOwner returns a page of the owner's saved listings.
func (s *Service) ListByOwner(ctx context.Context, ownerID string, page, limit int) (Page, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	items, total, err := s.store.ListByOwner(ctx, ownerID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, err
	}
	for i := range items {
		items[i] = s.hydrate(items[i])
	}
	return Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// SetB2B toggles B2B mode. Enabling starts a fresh tier map; disabling
// discards the tiers and the selection.
func (s *Service) SetB2B(ctx context.Context, editor Editor, id uuid.UUID, enabled bool) (Listing, error) {
	l, err := s.working(ctx, editor, id)
	if err != nil {
		return Listing{}, err
	}
	switch {
	case enabled && !l.IsB2B:
		m := tiers.Init(s.calc)
		l.IsB2B = true
		l.Tiers = &m
	case !enabled:
		l.IsB2B = false
		l.Tiers = nil
		l.SelectedRange = ""
	}
	if err := s.drafts.Put(ctx, l); err != nil {
		return Listing{}, fmt.Errorf("store draft: %w", err)
	}
	s.logger.Info().Str("listing_id", id.String()).Bool("b2b", enabled).Msg("listing_b2b_toggled")
	l.Draft = true
	return l, nil
}

// SelectTier moves the detail editor focus to label.
func (s *Service) SelectTier(ctx context.Context, editor Editor, id uuid.UUID, label string) (Listing, error) {
	l, err := s.working(ctx, editor, id)
	if err != nil {
		return Listing{}, err
	}
	if !l.IsB2B {
		return Listing{}, ErrNotB2B
	}
	var sel tiers.Selection
	r, err := sel.Select(label)
	if err != nil {
		return Listing{}, err
	}
	l.SelectedRange = r
	if err := s.drafts.Put(ctx, l); err != nil {
		return Listing{}, fmt.Errorf("store draft: %w", err)
	}
	l.Draft = true
	return l, nil
}

// SetSellerPrice records raw seller input for one tier and returns the
// updated tier. Other tiers are untouched.
func (s *Service) SetSellerPrice(ctx context.Context, editor Editor, id uuid.UUID, label, raw string) (tiers.Tier, error) {
	l, err := s.working(ctx, editor, id)
	if err != nil {
		return tiers.Tier{}, err
	}
	if !l.IsB2B || l.Tiers == nil {
		return tiers.Tier{}, ErrNotB2B
	}
	r, err := tiers.ParseRange(label)
	if err != nil {
		obs.IncTierPriceUpdate("invalid", "rejected")
		return tiers.Tier{}, err
	}
	next, err := l.Tiers.SetSellerPrice(r, raw)
	if err != nil {
		obs.IncTierPriceUpdate(string(r), "rejected")
		return tiers.Tier{}, err
	}
	l.Tiers = &next
	if err := s.drafts.Put(ctx, l); err != nil {
		obs.IncTierPriceUpdate(string(r), "error")
		return tiers.Tier{}, fmt.Errorf("store draft: %w", err)
	}
	obs.IncTierPriceUpdate(string(r), "ok")
	obs.IncMarketPriceComputation("tier")
	return next.Get(r)
}

// Summary returns the tiers of the listing viewer sees, in display order.
func (s *Service) Summary(ctx context.Context, viewer Editor, id uuid.UUID) ([]tiers.Tier, error) {
	l, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !l.IsB2B || l.Tiers == nil {
		return nil, ErrNotB2B
	}
	return l.Tiers.Summarize(), nil
}

// Save persists the open draft and emits listing.saved. Without a draft it
// returns the saved listing unchanged.
func (s *Service) Save(ctx context.Context, editor Editor, id uuid.UUID) (Listing, error) {
	var out Listing
	err := s.locker.WithLock(ctx, lock.ListingKey(id), s.lockTTL, func(ctx context.Context) error {
		previous, err := s.saved(ctx, id)
		if err != nil {
			return err
		}
		if !CanEdit(previous, editor) {
			return ErrForbidden
		}
		draft, ok, err := s.drafts.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		if !ok {
			out = previous
			return nil
		}
		draft = s.hydrate(draft)
		updated, err := s.store.Update(ctx, draft)
		if err != nil {
			return err
		}
		if err := s.drafts.Drop(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("listing_id", id.String()).Msg("drop_draft_failed")
		}
		out = s.hydrate(updated)
		s.emit(ctx, events.TopicListingSaved, out)
		if previous.IsB2B && !out.IsB2B {
			s.emit(ctx, events.TopicListingB2BDisabled, out)
		}
		return nil
	})
	if err != nil {
		obs.IncListingSave(saveResult(err))
		return Listing{}, err
	}
	obs.IncListingSave("ok")
	s.logger.Info().Str("listing_id", id.String()).Int64("version", out.Version).Msg("listing_saved")
	return out, nil
}

// DiscardDraft abandons the open edit session for id.
func (s *Service) DiscardDraft(ctx context.Context, editor Editor, id uuid.UUID) error {
	l, err := s.saved(ctx, id)
	if err != nil {
		return err
	}
	if !CanEdit(l, editor) {
		return ErrForbidden
	}
	return s.drafts.Drop(ctx, id)
}

// Quote prices qty units against the saved tiers of id.
func (s *Service) Quote(ctx context.Context, id uuid.UUID, qty int) (Quote, error) {
	l, err := s.saved(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if !l.IsB2B || l.Tiers == nil {
		return Quote{}, ErrNotB2B
	}
	tier, unit, err := l.Tiers.UnitPriceFor(qty)
	if err != nil {
		return Quote{}, err
	}
	obs.IncMarketPriceComputation("quote")
	return Quote{
		ListingID:   l.ID,
		Quantity:    qty,
		Range:       tier.Range,
		SellerPrice: tier.SellerPrice,
		UnitPrice:   pricing.FormatPrice(unit),
		Total:       pricing.FormatPrice(pricing.OrderTotal(unit, qty)),
	}, nil
}

func (s *Service) saved(ctx context.Context, id uuid.UUID) (Listing, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	return s.hydrate(l), nil
}

// working returns the listing the editor is about to change, starting a
// draft from the saved listing when none is open.
func (s *Service) working(ctx context.Context, editor Editor, id uuid.UUID) (Listing, error) {
	l, err := s.Get(ctx, editor, id)
	if err != nil {
		return Listing{}, err
	}
	if !CanEdit(l, editor) {
		return Listing{}, ErrForbidden
	}
	return l, nil
}

// hydrate re-derives market prices with the configured rates; stored market
// prices are never trusted.
func (s *Service) hydrate(l Listing) Listing {
	if !l.IsB2B {
		l.Tiers = nil
		l.SelectedRange = ""
		return l
	}
	if l.Tiers == nil {
		m := tiers.Init(s.calc)
		l.Tiers = &m
		return l
	}
	m := l.Tiers.WithCalculator(s.calc)
	l.Tiers = &m
	return l
}

func (s *Service) emit(ctx context.Context, topic string, l Listing) {
	if s.bus == nil {
		return
	}
	payload := events.ListingPayload{
		ListingID: l.ID.String(),
		OwnerID:   l.OwnerID,
		Title:     l.Title,
		B2B:       l.IsB2B,
		Version:   l.Version,
		Tiers:     l.Tiers,
		At:        s.now().UTC(),
	}
	if _, err := s.bus.Emit(ctx, topic, l.ID, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Str("listing_id", l.ID.String()).Msg("emit_event_failed")
	}
}

func saveResult(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, lock.ErrNotAcquired), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "lock_timeout"
	default:
		return "error"
	}
}

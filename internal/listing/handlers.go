package listing

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b/internal/common"
	"github.com/noah-isme/backend-b2b/internal/lock"
	"github.com/noah-isme/backend-b2b/internal/obs"
	"github.com/noah-isme/backend-b2b/internal/pricing"
	"github.com/noah-isme/backend-b2b/internal/tiers"
)

// Handler exposes listing and pricing endpoints.
type Handler struct {
	service *Service
	logger  zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Logger  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, logger: obs.Component(cfg.Logger, "listing_http")}
}

type b2bRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type selectTierRequest struct {
	Range string `json:"range" validate:"required"`
}

type sellerPriceRequest struct {
	SellerPrice *string `json:"sellerPrice" validate:"required"`
}

type marketPriceRequest struct {
	SellerPrice string `json:"sellerPrice" validate:"max=32"`
}

type rangeResponse struct {
	Range tiers.Range `json:"range"`
	Min   int         `json:"min"`
	Max   int         `json:"max"`
}

type breakdownResponse struct {
	SellerPrice string `json:"sellerPrice"`
	Commission  string `json:"commission"`
	Delivery    string `json:"delivery"`
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	MarketPrice string `json:"marketPrice"`
}

// Ranges handles GET /api/v1/pricing/ranges.
func (h *Handler) Ranges(w http.ResponseWriter, _ *http.Request) {
	labels := tiers.Ranges()
	out := make([]rangeResponse, 0, len(labels))
	for _, r := range labels {
		lo, hi := r.Bounds()
		out = append(out, rangeResponse{Range: r, Min: lo, Max: hi})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// MarketPrice handles POST /api/v1/pricing/market-price.
func (h *Handler) MarketPrice(w http.ResponseWriter, r *http.Request) {
	var req marketPriceRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	b := h.service.Calculator().Breakdown(pricing.ParseSellerPrice(req.SellerPrice))
	obs.IncMarketPriceComputation("calculator")
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdownResponse{
		SellerPrice: pricing.FormatPrice(b.Seller),
		Commission:  pricing.FormatPrice(b.Commission),
		Delivery:    pricing.FormatPrice(b.Delivery),
		Subtotal:    pricing.FormatPrice(b.Subtotal),
		Tax:         pricing.FormatPrice(b.Tax),
		MarketPrice: pricing.FormatPrice(b.Market),
	}})
}

// Create handles POST /api/v1/listings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInput
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	l, err := h.service.Create(r.Context(), editorFrom(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": l})
}

// List handles GET /api/v1/listings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	editor := editorFrom(r)
	page, limit := common.ParsePagination(r, 0)
	result, err := h.service.ListByOwner(r.Context(), editor.UserID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.NewPagination(result.Page, result.Limit, result.Total),
	})
}

// Get handles GET /api/v1/listings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	l, err := h.service.Get(r.Context(), editorFrom(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": l})
}

// SetB2B handles PUT /api/v1/listings/{id}/b2b.
func (h *Handler) SetB2B(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req b2bRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	l, err := h.service.SetB2B(r.Context(), editorFrom(r), id, *req.Enabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": l})
}

// SelectTier handles PUT /api/v1/listings/{id}/tiers/selected.
func (h *Handler) SelectTier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req selectTierRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	l, err := h.service.SelectTier(r.Context(), editorFrom(r), id, strings.TrimSpace(req.Range))
	if err != nil {
		h.writeError(w, err)
		return
	}
	tier, err := l.Tiers.Get(l.SelectedRange)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"selectedRange": l.SelectedRange,
		"tier":          tier,
	}})
}

// SetSellerPrice handles PUT /api/v1/listings/{id}/tiers/{range}.
func (h *Handler) SetSellerPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	var req sellerPriceRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	tier, err := h.service.SetSellerPrice(r.Context(), editorFrom(r), id, strings.TrimSpace(chi.URLParam(r, "range")), *req.SellerPrice)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tier})
}

// Summary handles GET /api/v1/listings/{id}/tiers.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), editorFrom(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// Save handles POST /api/v1/listings/{id}/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	l, err := h.service.Save(r.Context(), editorFrom(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": l})
}

// DiscardDraft handles DELETE /api/v1/listings/{id}/draft.
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	if err := h.service.DiscardDraft(r.Context(), editorFrom(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote handles GET /api/v1/listings/{id}/quote?qty=N.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	qty, err := strconv.Atoi(r.URL.Query().Get("qty"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUANTITY", "qty must be a positive integer", nil)
		return
	}
	q, err := h.service.Quote(r.Context(), id, qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "listing not found", nil)
		return uuid.Nil, false
	}
	return id, true
}

func editorFrom(r *http.Request) Editor {
	userID, _ := common.UserID(r.Context())
	return Editor{UserID: userID, Role: common.Role(r.Context())}
}

var errorMappings = []common.ErrorMapping{
	{Target: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "listing not found"},
	{Target: ErrForbidden, Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "only the listing owner can edit it"},
	{Target: ErrNotB2B, Status: http.StatusConflict, Code: "NOT_B2B", Message: "listing is not in b2b mode"},
	{Target: ErrConflict, Status: http.StatusConflict, Code: "CONFLICT", Message: "listing was modified concurrently; discard the draft and retry"},
	{Target: lock.ErrNotAcquired, Status: http.StatusConflict, Code: "LISTING_BUSY", Message: "another save of this listing is in progress"},
	{Target: tiers.ErrInvalidTierRange, Status: http.StatusBadRequest, Code: "INVALID_TIER_RANGE", Details: map[string]any{"allowed": tiers.Ranges()}},
	{Target: tiers.ErrQuantityOutOfRange, Status: http.StatusBadRequest, Code: "INVALID_QUANTITY"},
	{Target: tiers.ErrTierUnset, Status: http.StatusUnprocessableEntity, Code: "TIER_UNSET"},
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := common.MapError(err, errorMappings...); ok {
		common.WriteError(w, appErr)
		return
	}
	h.logger.Error().Err(err).Msg("listing_request_failed")
	common.WriteError(w, err)
}

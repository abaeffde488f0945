package listing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-b2b/internal/common"
	"github.com/noah-isme/backend-b2b/internal/tiers"
)

var (
	// ErrNotFound is returned when a listing does not exist.
	ErrNotFound = errors.New("listing not found")
	// ErrForbidden is returned when the caller may not edit the listing.
	ErrForbidden = errors.New("listing edit not permitted")
	// ErrNotB2B is returned for tier operations on a listing outside B2B mode.
	ErrNotB2B = errors.New("listing is not in b2b mode")
	// ErrConflict is returned when a save races another save of the same listing.
	ErrConflict = errors.New("listing was modified concurrently")
)

// Listing is a product listing. Tiers is nil whenever IsB2B is false.
type Listing struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       string          `json:"ownerId"`
	Title         string          `json:"title"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	Quantity      int             `json:"quantity"`
	IsB2B         bool            `json:"isB2B"`
	SelectedRange tiers.Range     `json:"selectedRange,omitempty"`
	Tiers         *tiers.TierMap  `json:"tiers,omitempty"`
	Version       int64           `json:"version"`
	Draft         bool            `json:"draft"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Editor identifies the caller attempting to modify a listing.
type Editor struct {
	UserID string
	Role   string
}

// CanEdit reports whether e may edit l: only the owning business owner can.
func CanEdit(l Listing, e Editor) bool {
	return e.UserID != "" && e.UserID == l.OwnerID && e.Role == common.RoleBusinessOwner
}

// CreateInput carries the fields accepted when creating a listing.
type CreateInput struct {
	Title     string `json:"title" validate:"required,max=200"`
	BasePrice string `json:"basePrice" validate:"omitempty,max=32"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	IsB2B     bool   `json:"isB2B"`
}

// Page is one page of an owner's saved listings.
type Page struct {
	Items []Listing
	Total int64
	Page  int
	Limit int
}

// Quote is a buyer-facing bulk price for a quantity.
type Quote struct {
	ListingID   uuid.UUID   `json:"listingId"`
	Quantity    int         `json:"quantity"`
	Range       tiers.Range `json:"range"`
	SellerPrice string      `json:"sellerPrice"`
	UnitPrice   string      `json:"unitPrice"`
	Total       string      `json:"total"`
}

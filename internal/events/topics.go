package events

import (
	"time"

	"github.com/noah-isme/backend-b2b/internal/tiers"
)

// Topic constants for domain events emitted by the listing service.
const (
	TopicListingCreated     = "listing.created"
	TopicListingSaved       = "listing.saved"
	TopicListingB2BDisabled = "listing.b2b_disabled"
)

// DefaultTopics returns the topics forwarded to the catalog.
func DefaultTopics() []string {
	return []string{
		TopicListingCreated,
		TopicListingSaved,
		TopicListingB2BDisabled,
	}
}

// ListingPayload is the body of every listing.* event.
type ListingPayload struct {
	ListingID string         `json:"listingId"`
	OwnerID   string         `json:"ownerId"`
	Title     string         `json:"title,omitempty"`
	B2B       bool           `json:"b2b"`
	Version   int64          `json:"version"`
	Tiers     *tiers.TierMap `json:"tiers,omitempty"`
	At        time.Time      `json:"at"`
}

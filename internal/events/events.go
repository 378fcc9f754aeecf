// Package events defines the marketplace trade events and the publishers that
// carry them. Every state transition with observers outside the process emits
// exactly one event after its transaction commits.
package events

import (
	"context"
	"time"

	id "fracmarket/pkg/domain"
)

type EventType string

const (
	// EventNFTListed: an item entered marketplace custody and its share class
	// was minted.
	EventNFTListed EventType = "nft.listed"
	// EventPriceUpdated: a fraction trade moved the current price.
	EventPriceUpdated EventType = "price.updated"
	// EventNFTSold: a whole-item buyout completed and proceeds were earmarked.
	EventNFTSold EventType = "nft.sold"
	// EventFractionsRedeemed: a holder burned shares against sale proceeds.
	EventFractionsRedeemed EventType = "fractions.redeemed"
)

// Event is the single envelope for all marketplace events. Fields not
// meaningful for a given type stay zero and are omitted on the wire.
type Event struct {
	Type        EventType    `json:"type"`
	Marketplace id.AccountID `json:"marketplace"`
	ListingID   id.ListingID `json:"listing_id"`
	ItemRef     id.AssetID   `json:"item_ref,omitempty"`
	Actor       id.AccountID `json:"actor,omitempty"`

	// Amount is shares traded, redeemed, or minted depending on Type.
	Amount uint64 `json:"amount,omitempty"`
	// Price is the listing's current price after the transition.
	Price uint64 `json:"price,omitempty"`
	// Value is the native funds that moved: trade total, buyout price, or
	// redemption payout.
	Value uint64 `json:"value,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events to an external sink. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

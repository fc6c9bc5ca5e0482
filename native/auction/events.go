package auction

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"auctionhouse/core/types"
)

const (
	EventTypeAuctionCreated   = "auction.created"
	EventTypeAuctionCancelled = "auction.cancelled"
	EventTypeBidAccepted      = "auction.bid_accepted"
	EventTypeAuctionResolved  = "auction.resolved"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// auction.
func NewCreatedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionCreated, a)
}

// NewCancelledEvent returns the canonical event payload emitted when a seller
// cancels an auction before maturity.
func NewCancelledEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionCancelled, a)
}

// NewBidAcceptedEvent returns the canonical event payload for an accepted
// bid. The amount is the recorded bid, which for Dutch auctions is the
// oracle price rather than the tendered payment.
func NewBidAcceptedEvent(a *Auction, bidder [20]byte, amount *big.Int) *types.Event {
	evt := newAuctionEvent(EventTypeBidAccepted, a)
	evt.Attributes["bidder"] = hex.EncodeToString(bidder[:])
	if amount != nil {
		evt.Attributes["amount"] = amount.String()
	}
	return evt
}

// NewResolvedEvent returns the canonical event payload emitted when an
// auction settles, either with a sale or with the asset returned to the
// seller.
func NewResolvedEvent(a *Auction) *types.Event {
	evt := newAuctionEvent(EventTypeAuctionResolved, a)
	if a != nil && a.Bid.HasBid {
		evt.Attributes["winner"] = hex.EncodeToString(a.Bid.HighestBidder[:])
		if a.Bid.HighestAmount != nil {
			evt.Attributes["amount"] = a.Bid.HighestAmount.String()
		}
	}
	return evt
}

func newAuctionEvent(eventType string, a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(a.ID, 10)
	attrs["kind"] = a.Kind.String()
	attrs["seller"] = hex.EncodeToString(a.Seller[:])
	attrs["collection"] = hex.EncodeToString(a.Asset.Collection[:])
	if a.Asset.TokenID != nil {
		attrs["tokenId"] = a.Asset.TokenID.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

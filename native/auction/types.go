package auction

import (
	"fmt"
	"math/big"
	"strings"
)

// Kind selects the bid-acceptance mechanism for an auction.
type Kind uint8

const (
	// KindEnglish is the ascending-price mechanism: each bid must meet the
	// standing high bid and the auction only ends on explicit resolution.
	KindEnglish Kind = iota
	// KindDutch is the descending-price mechanism: the quoted price decays
	// linearly and the first accepted bid ends the auction immediately.
	KindDutch
)

// Valid reports whether the kind value is within the supported range.
func (k Kind) Valid() bool {
	switch k {
	case KindEnglish, KindDutch:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name used in events and metrics.
func (k Kind) String() string {
	switch k {
	case KindEnglish:
		return "english"
	case KindDutch:
		return "dutch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Asset identifies the escrowed non-fungible item: the collection it belongs
// to and its token id within that collection.
type Asset struct {
	Collection [20]byte `json:"collection"`
	TokenID    *big.Int `json:"tokenId"`
}

// Schedule carries the three immutable timestamps (unix seconds) that gate the
// auction lifecycle. The invariant Start <= Maturity <= End holds for every
// stored auction.
type Schedule struct {
	Start    uint64 `json:"start"`
	Maturity uint64 `json:"maturity"`
	End      uint64 `json:"end"`
}

// Pricing carries the amounts, denominated in the settlement currency, fixed
// at creation. Initial is the opening price; Final is the Dutch floor price
// (unused for English auctions); Reserved is the reserve a winning bid must
// strictly exceed for the sale to complete.
type Pricing struct {
	Initial  *big.Int `json:"initial"`
	Final    *big.Int `json:"final"`
	Reserved *big.Int `json:"reserved"`
}

// BidState tracks the standing bid. HasBid=false implies a zero amount and no
// bidder; only the bid processor mutates these fields.
type BidState struct {
	HighestAmount *big.Int `json:"highestAmount"`
	HighestBidder [20]byte `json:"highestBidder"`
	HasBid        bool     `json:"hasBid"`
}

// Auction is the unit of sale. All fields except Ended and Bid are immutable
// once created; Ended transitions false->true exactly once and the record is
// never deleted.
type Auction struct {
	ID       uint64   `json:"id"`
	Kind     Kind     `json:"kind"`
	Seller   [20]byte `json:"seller"`
	Ended    bool     `json:"ended"`
	Asset    Asset    `json:"asset"`
	Schedule Schedule `json:"schedule"`
	Pricing  Pricing  `json:"pricing"`
	Bid      BidState `json:"bid"`
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Asset.TokenID != nil {
		clone.Asset.TokenID = new(big.Int).Set(a.Asset.TokenID)
	} else {
		clone.Asset.TokenID = big.NewInt(0)
	}
	clone.Pricing.Initial = cloneAmount(a.Pricing.Initial)
	clone.Pricing.Final = cloneAmount(a.Pricing.Final)
	clone.Pricing.Reserved = cloneAmount(a.Pricing.Reserved)
	clone.Bid.HighestAmount = cloneAmount(a.Bid.HighestAmount)
	return &clone
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Sanitize validates structural invariants and returns a cloned instance with
// non-nil amount fields. The function does not mutate the original value.
func Sanitize(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("auction: nil record")
	}
	clone := a.Clone()
	if !clone.Kind.Valid() {
		return nil, fmt.Errorf("auction: invalid kind: %d", clone.Kind)
	}
	if clone.Schedule.Maturity < clone.Schedule.Start || clone.Schedule.End < clone.Schedule.Maturity {
		return nil, fmt.Errorf("%w: start=%d maturity=%d end=%d", ErrInvalidSchedule,
			clone.Schedule.Start, clone.Schedule.Maturity, clone.Schedule.End)
	}
	for _, amt := range []*big.Int{clone.Pricing.Initial, clone.Pricing.Final, clone.Pricing.Reserved, clone.Bid.HighestAmount} {
		if amt.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative amount", ErrInvalidPricing)
		}
	}
	if !clone.Bid.HasBid && (clone.Bid.HighestAmount.Sign() != 0 || clone.Bid.HighestBidder != ([20]byte{})) {
		return nil, fmt.Errorf("auction: bid state populated without a bid")
	}
	return clone, nil
}

// NormalizeToken validates a settlement-currency ticker and returns the
// canonical uppercase form. Tickers are 2 to 8 ASCII letters.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if len(trimmed) < 2 || len(trimmed) > 8 {
		return "", fmt.Errorf("auction: unsupported settlement token: %q", symbol)
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("auction: unsupported settlement token: %q", symbol)
		}
	}
	return trimmed, nil
}

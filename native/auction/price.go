package auction

import "math/big"

// CurrentPrice computes the currently payable price for an auction at the
// given timestamp. The function is pure: it derives the price from persisted
// fields only, so it can be re-evaluated at any time.
//
// Before the start of the schedule the price is clamped to the initial
// amount. English auctions quote the standing high bid (or the initial price
// when no bid exists). Dutch auctions decay linearly from the initial to the
// final price across the schedule window, truncating on division; past the
// end of the window the quote is clamped to the final price so the query
// surface never returns an amount below the floor.
func CurrentPrice(a *Auction, now uint64) (*big.Int, error) {
	sanitized, err := Sanitize(a)
	if err != nil {
		return nil, err
	}
	if now < sanitized.Schedule.Start {
		return sanitized.Pricing.Initial, nil
	}
	switch sanitized.Kind {
	case KindEnglish:
		if sanitized.Bid.HasBid {
			return sanitized.Bid.HighestAmount, nil
		}
		return sanitized.Pricing.Initial, nil
	default:
		if sanitized.Schedule.End == sanitized.Schedule.Start {
			return nil, ErrDivideByZero
		}
		if now >= sanitized.Schedule.End {
			return sanitized.Pricing.Final, nil
		}
		span := new(big.Int).SetUint64(sanitized.Schedule.End - sanitized.Schedule.Start)
		elapsed := new(big.Int).SetUint64(now - sanitized.Schedule.Start)
		drop := new(big.Int).Sub(sanitized.Pricing.Initial, sanitized.Pricing.Final)
		drop.Mul(drop, elapsed)
		drop.Div(drop, span)
		return new(big.Int).Sub(sanitized.Pricing.Initial, drop), nil
	}
}

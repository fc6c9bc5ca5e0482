package auction

import "errors"

var (
	ErrNotFound        = errors.New("auction: not found")
	ErrPageOutOfRange  = errors.New("auction: page out of range")
	ErrInvalidSchedule = errors.New("auction: invalid schedule")
	ErrInvalidPricing  = errors.New("auction: invalid pricing")
	ErrUnauthorized    = errors.New("auction: unauthorized caller")
	ErrNotYetMature    = errors.New("auction: action window not yet open")
	ErrAlreadyMature   = errors.New("auction: action window closed")
	ErrBidTooLow       = errors.New("auction: bid below current price")
	ErrAlreadyBid      = errors.New("auction: bid already accepted")
	ErrAlreadyEnded    = errors.New("auction: already ended")
	ErrTransferFailed  = errors.New("auction: transfer declined")
	ErrDivideByZero    = errors.New("auction: price window has zero length")
)

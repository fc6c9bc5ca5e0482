package auction

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"auctionhouse/core/events"
	"auctionhouse/core/types"
	nativecommon "auctionhouse/native/common"
)

const moduleName = "auction"

var (
	errNilStore    = errors.New("auction engine: store not configured")
	errNilCustody  = errors.New("auction engine: custody service not configured")
	errNilPayments = errors.New("auction engine: payment service not configured")
	errNilVault    = errors.New("auction engine: escrow vault not configured")
	errNilToken    = errors.New("auction engine: settlement token not configured")
)

// CustodyService transfers ownership of a non-fungible asset. The
// implementation is collaborator-controlled and may re-enter the engine, so
// every call site commits its state before invoking it or is prepared to roll
// back.
type CustodyService interface {
	TransferOwnership(collection [20]byte, tokenID *big.Int, from, to [20]byte) error
}

// PaymentService moves settlement-currency value to a recipient. Like the
// custody service it may re-enter the engine.
type PaymentService interface {
	Pay(token string, to [20]byte, amount *big.Int) error
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine implements the auction lifecycle state machine: creation validation,
// time-gated pricing, bid acceptance, cancellation and settlement. The host
// execution model serializes operations, so the engine holds no locks of its
// own.
type Engine struct {
	store    *Store
	custody  CustodyService
	payments PaymentService
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	token    string
	vault    [20]byte
	nowFn    func() uint64
}

// NewEngine creates an auction engine bound to the supplied store, with a
// no-op emitter. Custody, payments, vault and settlement token must be
// configured before the first operation.
func NewEngine(store *Store) *Engine {
	return &Engine{
		store:   store,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetCustody configures the non-fungible custody collaborator.
func (e *Engine) SetCustody(c CustodyService) { e.custody = c }

// SetPayments configures the settlement-currency payment collaborator.
func (e *Engine) SetPayments(p PaymentService) { e.payments = p }

// SetVault configures the address holding escrowed assets between creation
// and settlement.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetSettlementToken configures the designated settlement currency. The
// ticker is normalized to its canonical uppercase form.
func (e *Engine) SetSettlementToken(symbol string) error {
	normalized, err := NormalizeToken(symbol)
	if err != nil {
		return err
	}
	e.token = normalized
	return nil
}

// SetPauses configures the operator pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.store == nil:
		return errNilStore
	case e.custody == nil:
		return errNilCustody
	case e.payments == nil:
		return errNilPayments
	case e.vault == ([20]byte{}):
		return errNilVault
	case e.token == "":
		return errNilToken
	}
	return nil
}

// Create validates the auction definition, pulls the asset into escrow
// custody and persists the new record. On any precondition failure no custody
// transfer is attempted; if persisting fails after the custody transfer the
// asset is handed back to the seller.
func (e *Engine) Create(seller [20]byte, kind Kind, asset Asset, schedule Schedule, pricing Pricing) (*Auction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("auction: invalid kind: %d", kind)
	}
	now := e.now()
	if schedule.Start > now {
		return nil, fmt.Errorf("%w: start %d after creation time %d", ErrInvalidSchedule, schedule.Start, now)
	}
	if schedule.Maturity < schedule.Start || schedule.End < schedule.Maturity {
		return nil, fmt.Errorf("%w: start=%d maturity=%d end=%d", ErrInvalidSchedule, schedule.Start, schedule.Maturity, schedule.End)
	}
	normalized := Pricing{
		Initial:  cloneAmount(pricing.Initial),
		Final:    cloneAmount(pricing.Final),
		Reserved: cloneAmount(pricing.Reserved),
	}
	for _, amt := range []*big.Int{normalized.Initial, normalized.Final, normalized.Reserved} {
		if amt.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative amount", ErrInvalidPricing)
		}
	}
	if kind == KindDutch && normalized.Initial.Cmp(normalized.Final) < 0 {
		return nil, fmt.Errorf("%w: descending curve requires initial >= final", ErrInvalidPricing)
	}
	tokenID := cloneAmount(asset.TokenID)
	if err := e.custody.TransferOwnership(asset.Collection, tokenID, seller, e.vault); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	id, err := e.store.Allocate()
	if err != nil {
		e.returnAsset(asset.Collection, tokenID, seller)
		return nil, err
	}
	record := &Auction{
		ID:       id,
		Kind:     kind,
		Seller:   seller,
		Asset:    Asset{Collection: asset.Collection, TokenID: tokenID},
		Schedule: schedule,
		Pricing:  normalized,
	}
	if err := e.store.Put(record); err != nil {
		e.returnAsset(asset.Collection, tokenID, seller)
		return nil, err
	}
	e.emit(NewCreatedEvent(record))
	return record.Clone(), nil
}

// returnAsset is the best-effort unwind when creation fails after custody was
// already taken.
func (e *Engine) returnAsset(collection [20]byte, tokenID *big.Int, seller [20]byte) {
	_ = e.custody.TransferOwnership(collection, tokenID, e.vault, seller)
}

// Get returns a copy of the stored auction record.
func (e *Engine) Get(id uint64) (*Auction, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	return e.store.Get(id)
}

// CurrentPrice computes the payable price of a stored auction at the given
// timestamp. Read-only.
func (e *Engine) CurrentPrice(id uint64, now uint64) (*big.Int, error) {
	record, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	return CurrentPrice(record, now)
}

// Bid processes a tendered payment against an open auction. English bids
// displace (and refund) the previous high bid; Dutch auctions accept exactly
// one bid, recorded at the oracle price, and settle immediately. The engine
// only consumes the recorded amount: any excess tendered over a Dutch oracle
// price stays with the host, which returns it to the caller.
func (e *Engine) Bid(id uint64, caller [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	record, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if record.Ended {
		return ErrAlreadyEnded
	}
	now := e.now()
	if now < record.Schedule.Start {
		return fmt.Errorf("%w: bidding opens at %d", ErrNotYetMature, record.Schedule.Start)
	}
	if now > record.Schedule.End {
		return fmt.Errorf("%w: bidding closed at %d", ErrAlreadyMature, record.Schedule.End)
	}
	price, err := CurrentPrice(record, now)
	if err != nil {
		return err
	}
	tendered := cloneAmount(amount)
	if tendered.Cmp(price) < 0 {
		return fmt.Errorf("%w: tendered %s, current price %s", ErrBidTooLow, tendered, price)
	}
	switch record.Kind {
	case KindEnglish:
		return e.acceptEnglishBid(record, caller, tendered)
	default:
		return e.acceptDutchBid(record, caller, price)
	}
}

// acceptEnglishBid refunds the displaced bidder before the new bid is
// recorded, so a declined refund can never leave two live bidders.
func (e *Engine) acceptEnglishBid(record *Auction, caller [20]byte, amount *big.Int) error {
	if record.Bid.HasBid {
		if err := e.payments.Pay(e.token, record.Bid.HighestBidder, record.Bid.HighestAmount); err != nil {
			return fmt.Errorf("%w: refund of displaced bid: %v", ErrTransferFailed, err)
		}
	}
	record.Bid = BidState{HighestAmount: amount, HighestBidder: caller, HasBid: true}
	if err := e.store.Put(record); err != nil {
		return err
	}
	e.emit(NewBidAcceptedEvent(record, caller, amount))
	return nil
}

// acceptDutchBid records the single permitted bid at the oracle price, then
// runs settlement. Excess tendered over the oracle price is never touched
// here, so a failed settlement leaves nothing to claw back from the caller.
func (e *Engine) acceptDutchBid(record *Auction, caller [20]byte, price *big.Int) error {
	if record.Bid.HasBid {
		return ErrAlreadyBid
	}
	snapshot := record.Clone()
	record.Bid = BidState{HighestAmount: cloneAmount(price), HighestBidder: caller, HasBid: true}
	if err := e.settle(record, snapshot); err != nil {
		return err
	}
	e.emit(NewBidAcceptedEvent(record, caller, record.Bid.HighestAmount))
	e.emit(NewResolvedEvent(record))
	return nil
}

// Cancel returns the asset to the seller and refunds any standing bidder.
// Only the seller may cancel, and only until the schedule's maturity.
func (e *Engine) Cancel(id uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	record, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if record.Ended {
		return ErrAlreadyEnded
	}
	if caller != record.Seller {
		return fmt.Errorf("%w: cancel requires the seller", ErrUnauthorized)
	}
	if e.now() > record.Schedule.Maturity {
		return fmt.Errorf("%w: cancellation closed at maturity %d", ErrAlreadyMature, record.Schedule.Maturity)
	}
	snapshot := record.Clone()
	record.Ended = true
	if err := e.store.Put(record); err != nil {
		return err
	}
	if err := e.custody.TransferOwnership(record.Asset.Collection, record.Asset.TokenID, e.vault, record.Seller); err != nil {
		return e.rollback(snapshot, err)
	}
	if record.Bid.HasBid {
		if err := e.payments.Pay(e.token, record.Bid.HighestBidder, record.Bid.HighestAmount); err != nil {
			e.reclaimAsset(record.Asset.Collection, record.Asset.TokenID, record.Seller)
			return e.rollback(snapshot, err)
		}
	}
	e.emit(NewCancelledEvent(record))
	return nil
}

// Resolve settles an auction. English auctions resolve explicitly once the
// schedule has ended; Dutch auctions reach this path through their single
// accepted bid, so an explicit Dutch resolve only succeeds while no bid has
// ended the auction yet.
func (e *Engine) Resolve(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	record, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if record.Ended {
		return ErrAlreadyEnded
	}
	if record.Kind == KindEnglish && e.now() <= record.Schedule.End {
		return fmt.Errorf("%w: resolution opens after %d", ErrNotYetMature, record.Schedule.End)
	}
	snapshot := record.Clone()
	if err := e.settle(record, snapshot); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(record))
	return nil
}

// settle commits the terminal record, then performs the custody and payment
// transfers. State is persisted before either collaborator is invoked so a
// reentrant call observes ended=true; if a transfer is declined every
// completed effect is undone (the asset is reclaimed into the vault when
// custody already moved) and the snapshot taken at operation entry is
// restored, making the whole operation all-or-nothing.
func (e *Engine) settle(record, snapshot *Auction) error {
	record.Ended = true
	if err := e.store.Put(record); err != nil {
		return err
	}
	sold := record.Bid.HasBid && record.Bid.HighestAmount.Cmp(record.Pricing.Reserved) > 0
	recipient := record.Seller
	var payee [20]byte
	var payout *big.Int
	if sold {
		recipient = record.Bid.HighestBidder
		payee, payout = record.Seller, record.Bid.HighestAmount
	} else if record.Bid.HasBid {
		payee, payout = record.Bid.HighestBidder, record.Bid.HighestAmount
	}
	if err := e.custody.TransferOwnership(record.Asset.Collection, record.Asset.TokenID, e.vault, recipient); err != nil {
		return e.rollback(snapshot, err)
	}
	if payout != nil {
		if err := e.payments.Pay(e.token, payee, payout); err != nil {
			e.reclaimAsset(record.Asset.Collection, record.Asset.TokenID, recipient)
			return e.rollback(snapshot, err)
		}
	}
	return nil
}

// reclaimAsset is the best-effort compensation when a payout is declined
// after custody already left the vault. The record restored afterwards still
// holds the asset in escrow, so the transfer is mirrored back.
func (e *Engine) reclaimAsset(collection [20]byte, tokenID *big.Int, holder [20]byte) {
	_ = e.custody.TransferOwnership(collection, tokenID, holder, e.vault)
}

func (e *Engine) rollback(snapshot *Auction, cause error) error {
	if putErr := e.store.Put(snapshot); putErr != nil {
		return fmt.Errorf("%w: %v (rollback failed: %v)", ErrTransferFailed, cause, putErr)
	}
	return fmt.Errorf("%w: %v", ErrTransferFailed, cause)
}

package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"auctionhouse/core/events"
	"auctionhouse/core/types"
	"auctionhouse/native/auction"
	nativecommon "auctionhouse/native/common"
	"auctionhouse/observability/metrics"
	"auctionhouse/storage"
)

var (
	accountPrefix = []byte("account/")
	assetPrefix   = []byte("nft/")

	// ErrInsufficientFunds is returned when an attached payment or an engine
	// payout exceeds the paying account's balance.
	ErrInsufficientFunds = errors.New("state: insufficient balance")
	// ErrUnknownAsset is returned when a custody transfer names an asset that
	// was never registered.
	ErrUnknownAsset = errors.New("state: unknown asset")
	// ErrNotOwner is returned when a custody transfer is attempted by a
	// non-owner.
	ErrNotOwner = errors.New("state: transfer from non-owner")
)

// Manager hosts the auction engine over a key-value database. It stands in
// for the serialized execution environment the engine assumes: every
// operation takes the manager lock, and the custody/payment collaborators are
// backed by the same database so each operation is a single unit of work.
type Manager struct {
	mu      sync.Mutex
	db      storage.Database
	store   *auction.Store
	engine  *auction.Engine
	token   string
	vault   [20]byte
	metrics *metrics.AuctionMetrics
}

// hostState adapts the manager's database into the engine's Storage,
// CustodyService and PaymentService interfaces. It performs no locking: the
// manager serializes operations before the engine runs.
type hostState struct {
	m *Manager
}

// NewManager wires a state manager and its auction engine over the supplied
// database. The vault address holds escrowed assets and attached payments
// until settlement.
func NewManager(db storage.Database, settlementToken string, vault [20]byte) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: nil database")
	}
	if vault == ([20]byte{}) {
		return nil, fmt.Errorf("state: vault address required")
	}
	normalized, err := auction.NormalizeToken(settlementToken)
	if err != nil {
		return nil, err
	}
	m := &Manager{db: db, token: normalized, vault: vault, metrics: metrics.Auction()}
	state := hostState{m: m}
	m.store = auction.NewStore(state)
	engine := auction.NewEngine(m.store)
	engine.SetCustody(state)
	engine.SetPayments(state)
	engine.SetVault(vault)
	if err := engine.SetSettlementToken(normalized); err != nil {
		return nil, err
	}
	m.engine = engine
	return m, nil
}

// SetEmitter configures the event emitter used by the hosted engine.
func (m *Manager) SetEmitter(emitter events.Emitter) { m.engine.SetEmitter(emitter) }

// SetPauses configures the operator pause switches consulted by the engine.
func (m *Manager) SetPauses(p nativecommon.PauseView) { m.engine.SetPauses(p) }

// SetNowFunc overrides the engine time source, primarily for tests.
func (m *Manager) SetNowFunc(now func() uint64) { m.engine.SetNowFunc(now) }

// --- KV codec ---

func (s hostState) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, err := s.m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s hostState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.m.db.Put(key, encoded)
}

// --- accounts ---

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

func (m *Manager) getAccount(addr [20]byte) (*types.Account, error) {
	acc := new(types.Account)
	ok, err := hostState{m: m}.KVGet(accountKey(addr), acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc, nil
}

func (m *Manager) putAccount(addr [20]byte, acc *types.Account) error {
	return hostState{m: m}.KVPut(accountKey(addr), acc)
}

func (m *Manager) transferBalance(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if from == to {
		return nil
	}
	fromAcc, err := m.getAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %x", ErrInsufficientFunds, from)
	}
	toAcc, err := m.getAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.putAccount(from, fromAcc); err != nil {
		return err
	}
	return m.putAccount(to, toAcc)
}

// Pay implements the engine's payment collaborator: value leaves the vault,
// where attached bid payments are staged.
func (s hostState) Pay(token string, to [20]byte, amount *big.Int) error {
	if token != s.m.token {
		return fmt.Errorf("state: unsupported settlement token %q", token)
	}
	return s.m.transferBalance(s.m.vault, to, amount)
}

// --- non-fungible ownership ---

func assetKey(collection [20]byte, tokenID *big.Int) []byte {
	key := append(append([]byte(nil), assetPrefix...), collection[:]...)
	key = append(key, '/')
	if tokenID != nil {
		key = append(key, tokenID.String()...)
	}
	return key
}

// TransferOwnership implements the engine's custody collaborator over the
// persisted ownership registry.
func (s hostState) TransferOwnership(collection [20]byte, tokenID *big.Int, from, to [20]byte) error {
	var owner [20]byte
	ok, err := s.KVGet(assetKey(collection, tokenID), &owner)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %x/%s", ErrUnknownAsset, collection, tokenID)
	}
	if owner != from {
		return fmt.Errorf("%w: asset %x/%s", ErrNotOwner, collection, tokenID)
	}
	return s.KVPut(assetKey(collection, tokenID), to)
}

// --- lifecycle operations ---

// InitializeAuction creates an auction on behalf of the caller, taking the
// named asset into escrow custody.
func (m *Manager) InitializeAuction(caller [20]byte, kind auction.Kind, asset auction.Asset, schedule auction.Schedule, pricing auction.Pricing) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, err := m.engine.Create(caller, kind, asset, schedule, pricing)
	if err != nil {
		return 0, err
	}
	m.metrics.ObserveCreated(kind.String())
	return record.ID, nil
}

// Bid stages the attached payment into the vault and runs the engine's bid
// processor. A rejected bid hands the attached payment straight back; on
// acceptance anything tendered beyond the recorded bid (a Dutch bid above the
// oracle price) is returned to the caller.
func (m *Manager) Bid(caller [20]byte, id uint64, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attached := big.NewInt(0)
	if amount != nil {
		attached = new(big.Int).Set(amount)
	}
	if err := m.transferBalance(caller, m.vault, attached); err != nil {
		return err
	}
	if err := m.engine.Bid(id, caller, attached); err != nil {
		if refundErr := m.transferBalance(m.vault, caller, attached); refundErr != nil {
			return fmt.Errorf("%v (attached payment stranded: %v)", err, refundErr)
		}
		m.metrics.ObserveBidRejected(rejectionReason(err))
		return err
	}
	record, err := m.engine.Get(id)
	if err != nil {
		return err
	}
	if excess := new(big.Int).Sub(attached, record.Bid.HighestAmount); excess.Sign() > 0 {
		if err := m.transferBalance(m.vault, caller, excess); err != nil {
			return err
		}
	}
	m.metrics.ObserveBidAccepted(record.Kind.String())
	if record.Ended {
		m.metrics.ObserveResolved(resolutionOutcome(record))
	}
	return nil
}

// CancelAuction cancels an open auction on behalf of its seller.
func (m *Manager) CancelAuction(caller [20]byte, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.Cancel(id, caller); err != nil {
		return err
	}
	m.metrics.ObserveCancelled()
	return nil
}

// ResolveAuction settles an auction past its end date.
func (m *Manager) ResolveAuction(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.Resolve(id); err != nil {
		return err
	}
	record, err := m.engine.Get(id)
	if err != nil {
		return err
	}
	m.metrics.ObserveResolved(resolutionOutcome(record))
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auction.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, auction.ErrAlreadyBid):
		return "already_bid"
	case errors.Is(err, auction.ErrAlreadyEnded):
		return "already_ended"
	case errors.Is(err, auction.ErrNotYetMature), errors.Is(err, auction.ErrAlreadyMature):
		return "window"
	case errors.Is(err, auction.ErrTransferFailed):
		return "transfer"
	case errors.Is(err, auction.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func resolutionOutcome(record *auction.Auction) string {
	if record.Bid.HasBid && record.Bid.HighestAmount.Cmp(record.Pricing.Reserved) > 0 {
		return "sold"
	}
	return "returned"
}

// --- queries ---

// GetAuction returns the stored auction record.
func (m *Manager) GetAuction(id uint64) (*auction.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(id)
}

// ListAuctions returns a page of auction records ordered by id.
func (m *Manager) ListAuctions(page, pageSize uint64) ([]*auction.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.List(page, pageSize)
}

// AuctionCount returns the number of auctions ever created.
func (m *Manager) AuctionCount() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Count()
}

// CurrentPrice returns the payable price of an auction at the given
// timestamp.
func (m *Manager) CurrentPrice(id uint64, now uint64) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.CurrentPrice(id, now)
}

// BalanceOf returns the settlement-currency balance of an address.
func (m *Manager) BalanceOf(addr [20]byte) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.getAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

// OwnerOf returns the registered owner of a non-fungible asset.
func (m *Manager) OwnerOf(collection [20]byte, tokenID *big.Int) ([20]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owner [20]byte
	ok, err := hostState{m: m}.KVGet(assetKey(collection, tokenID), &owner)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %x/%s", ErrUnknownAsset, collection, tokenID)
	}
	return owner, nil
}

// --- seeding ---

// Mint credits settlement currency to an address. Intended for genesis
// fixtures and tests.
func (m *Manager) Mint(addr [20]byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: mint amount must be positive")
	}
	acc, err := m.getAccount(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return m.putAccount(addr, acc)
}

// RegisterAsset records the initial owner of a non-fungible asset.
func (m *Manager) RegisterAsset(collection [20]byte, tokenID *big.Int, owner [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return hostState{m: m}.KVPut(assetKey(collection, tokenID), owner)
}

package core

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"auctionhouse/native/auction"
	"auctionhouse/storage"
)

const baseTime uint64 = 1_000_000

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	vaultAddr  = testAddress(0xEE)
	sellerAddr = testAddress(0x01)
	bidderB    = testAddress(0x0B)
	bidderC    = testAddress(0x0C)
	collection = testAddress(0xC0)
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(storage.NewMemDB(), "AUC", vaultAddr)
	require.NoError(t, err)
	manager.SetNowFunc(func() uint64 { return baseTime })
	require.NoError(t, manager.Mint(bidderB, big.NewInt(1000)))
	require.NoError(t, manager.Mint(bidderC, big.NewInt(1000)))
	require.NoError(t, manager.RegisterAsset(collection, big.NewInt(7), sellerAddr))
	return manager
}

func testSchedule() auction.Schedule {
	return auction.Schedule{Start: baseTime, Maturity: baseTime + 150, End: baseTime + 300}
}

func testAsset() auction.Asset {
	return auction.Asset{Collection: collection, TokenID: big.NewInt(7)}
}

func requireBalance(t *testing.T, m *Manager, addr [20]byte, want int64) {
	t.Helper()
	balance, err := m.BalanceOf(addr)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(want)), "balance of %x: got %s want %d", addr, balance, want)
}

func TestInitializeAuctionEscrowsAsset(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindEnglish, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	owner, err := manager.OwnerOf(collection, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, vaultAddr, owner)
}

func TestInitializeAuctionRejectsNonOwner(t *testing.T) {
	manager := newTestManager(t)
	_, err := manager.InitializeAuction(bidderB, auction.KindEnglish, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)})
	require.ErrorIs(t, err, auction.ErrTransferFailed)

	owner, err := manager.OwnerOf(collection, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, sellerAddr, owner)
}

func TestEnglishAuctionBidRefundCancelFlow(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindEnglish, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)})
	require.NoError(t, err)

	require.NoError(t, manager.Bid(bidderB, id, big.NewInt(110)))
	requireBalance(t, manager, bidderB, 890)
	requireBalance(t, manager, vaultAddr, 110)

	require.NoError(t, manager.Bid(bidderC, id, big.NewInt(120)))
	requireBalance(t, manager, bidderB, 1000) // displaced bid refunded
	requireBalance(t, manager, bidderC, 880)
	requireBalance(t, manager, vaultAddr, 120)

	require.NoError(t, manager.CancelAuction(sellerAddr, id))
	requireBalance(t, manager, bidderC, 1000)
	requireBalance(t, manager, vaultAddr, 0)

	owner, err := manager.OwnerOf(collection, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, sellerAddr, owner)

	record, err := manager.GetAuction(id)
	require.NoError(t, err)
	require.True(t, record.Ended)
}

func TestDutchAuctionSettlesThroughHost(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindDutch, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(300), Final: big.NewInt(100), Reserved: big.NewInt(0)})
	require.NoError(t, err)

	require.NoError(t, manager.Bid(bidderB, id, big.NewInt(300)))
	requireBalance(t, manager, bidderB, 700)
	requireBalance(t, manager, sellerAddr, 300)
	requireBalance(t, manager, vaultAddr, 0)

	owner, err := manager.OwnerOf(collection, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, bidderB, owner)

	record, err := manager.GetAuction(id)
	require.NoError(t, err)
	require.True(t, record.Ended)
}

func TestDutchOverTenderRefundsExcessThroughHost(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindDutch, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(300), Final: big.NewInt(100), Reserved: big.NewInt(0)})
	require.NoError(t, err)

	// Halfway down the curve the price is 200; the 60 tendered above it
	// comes straight back to the caller.
	manager.SetNowFunc(func() uint64 { return baseTime + 150 })
	require.NoError(t, manager.Bid(bidderB, id, big.NewInt(260)))
	requireBalance(t, manager, bidderB, 800)
	requireBalance(t, manager, sellerAddr, 200)
	requireBalance(t, manager, vaultAddr, 0)

	record, err := manager.GetAuction(id)
	require.NoError(t, err)
	require.True(t, record.Ended)
	require.Zero(t, record.Bid.HighestAmount.Cmp(big.NewInt(200)))
}

func TestRejectedBidReturnsAttachedPayment(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindEnglish, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)})
	require.NoError(t, err)

	require.ErrorIs(t, manager.Bid(bidderB, id, big.NewInt(50)), auction.ErrBidTooLow)
	requireBalance(t, manager, bidderB, 1000)
	requireBalance(t, manager, vaultAddr, 0)
}

func TestBidRequiresFunds(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindEnglish, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)})
	require.NoError(t, err)

	broke := testAddress(0x99)
	require.ErrorIs(t, manager.Bid(broke, id, big.NewInt(110)), ErrInsufficientFunds)
}

func TestResolveThroughHostPaysSeller(t *testing.T) {
	manager := newTestManager(t)
	id, err := manager.InitializeAuction(sellerAddr, auction.KindEnglish, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(50)})
	require.NoError(t, err)
	require.NoError(t, manager.Bid(bidderB, id, big.NewInt(110)))

	manager.SetNowFunc(func() uint64 { return baseTime + 301 })
	require.NoError(t, manager.ResolveAuction(id))
	requireBalance(t, manager, sellerAddr, 110)
	requireBalance(t, manager, vaultAddr, 0)

	owner, err := manager.OwnerOf(collection, big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, bidderB, owner)
}

func TestListAuctionsPagination(t *testing.T) {
	manager := newTestManager(t)
	for i := int64(7); i < 12; i++ {
		require.NoError(t, manager.RegisterAsset(collection, big.NewInt(i), sellerAddr))
		_, err := manager.InitializeAuction(sellerAddr, auction.KindEnglish,
			auction.Asset{Collection: collection, TokenID: big.NewInt(i)}, testSchedule(),
			auction.Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)})
		require.NoError(t, err)
	}
	count, err := manager.AuctionCount()
	require.NoError(t, err)
	require.Equal(t, uint64(5), count)

	page, err := manager.ListAuctions(1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, uint64(2), page[0].ID)

	_, err = manager.ListAuctions(9, 2)
	require.ErrorIs(t, err, auction.ErrPageOutOfRange)
}

func TestAuctionRecordSurvivesReopen(t *testing.T) {
	db := storage.NewMemDB()
	manager, err := NewManager(db, "AUC", vaultAddr)
	require.NoError(t, err)
	manager.SetNowFunc(func() uint64 { return baseTime })
	require.NoError(t, manager.RegisterAsset(collection, big.NewInt(7), sellerAddr))
	id, err := manager.InitializeAuction(sellerAddr, auction.KindDutch, testAsset(), testSchedule(),
		auction.Pricing{Initial: big.NewInt(300), Final: big.NewInt(100), Reserved: big.NewInt(0)})
	require.NoError(t, err)

	reopened, err := NewManager(db, "AUC", vaultAddr)
	require.NoError(t, err)
	record, err := reopened.GetAuction(id)
	require.NoError(t, err)
	require.Equal(t, auction.KindDutch, record.Kind)
	require.Zero(t, record.Pricing.Initial.Cmp(big.NewInt(300)))

	price, err := reopened.CurrentPrice(id, baseTime+150)
	require.NoError(t, err)
	require.Zero(t, price.Cmp(big.NewInt(200)))
}

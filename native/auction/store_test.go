package auction

import (
	"errors"
	"math/big"
	"testing"
)

func storedAuction(id uint64) *Auction {
	return &Auction{
		ID:       id,
		Kind:     KindEnglish,
		Seller:   newTestAddress(0x01),
		Asset:    Asset{Collection: newTestAddress(0xC0), TokenID: big.NewInt(int64(id))},
		Schedule: Schedule{Start: 1000, Maturity: 1100, End: 1300},
		Pricing:  Pricing{Initial: big.NewInt(100), Final: big.NewInt(0), Reserved: big.NewInt(0)},
	}
}

func TestStoreAllocateMonotonic(t *testing.T) {
	store := NewStore(newMockStorage())
	for want := uint64(0); want < 5; want++ {
		id, err := store.Allocate()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
	count, err := store.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected count 5, got %d", count)
	}
}

func TestStoreGetUnknownId(t *testing.T) {
	store := NewStore(newMockStorage())
	if _, err := store.Get(0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(newMockStorage())
	record := storedAuction(0)
	record.Bid = BidState{HighestAmount: big.NewInt(120), HighestBidder: newTestAddress(0x0C), HasBid: true}
	if err := store.Put(record); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := store.Get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Kind != record.Kind || loaded.Seller != record.Seller {
		t.Fatalf("loaded record differs from stored record")
	}
	if loaded.Bid.HighestAmount.Cmp(record.Bid.HighestAmount) != 0 || loaded.Bid.HighestBidder != record.Bid.HighestBidder {
		t.Fatalf("bid state did not survive the round trip")
	}
	if loaded.Schedule != record.Schedule {
		t.Fatalf("schedule did not survive the round trip")
	}
}

func TestStorePutRejectsCorruptRecord(t *testing.T) {
	store := NewStore(newMockStorage())
	record := storedAuction(0)
	record.Bid.HighestAmount = big.NewInt(10) // populated without HasBid
	if err := store.Put(record); err == nil {
		t.Fatalf("expected sanitize rejection")
	}
}

func TestStoreListPagination(t *testing.T) {
	store := NewStore(newMockStorage())
	for i := uint64(0); i < 7; i++ {
		if _, err := store.Allocate(); err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if err := store.Put(storedAuction(i)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	first, err := store.List(0, 3)
	if err != nil {
		t.Fatalf("list page 0: %v", err)
	}
	if len(first) != 3 || first[0].ID != 0 || first[2].ID != 2 {
		t.Fatalf("unexpected first page: %v", first)
	}

	last, err := store.List(2, 3)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(last) != 1 || last[0].ID != 6 {
		t.Fatalf("last page must be the partial tail, got %d records", len(last))
	}

	if _, err := store.List(3, 3); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if _, err := store.List(0, 0); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange for zero page size, got %v", err)
	}
}

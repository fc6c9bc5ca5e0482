package auction

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Storage abstracts the subset of state manager functionality required by the
// auction store. Values are encoded by the implementation; the store only
// decides keys and record boundaries.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	auctionRecordPrefix = []byte("auction/record/")
	auctionSeqKey       = []byte("auction/seq")
)

// Store persists auction records keyed by their monotonically allocated id.
// Ids start at zero and the sequence counter doubles as the total record
// count, which keeps paginated reads a simple id-range slice.
type Store struct {
	storage Storage
}

// NewStore binds a store to the supplied storage backend.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

func recordKey(id uint64) []byte {
	key := make([]byte, len(auctionRecordPrefix)+8)
	copy(key, auctionRecordPrefix)
	binary.BigEndian.PutUint64(key[len(auctionRecordPrefix):], id)
	return key
}

// Count returns the number of allocated auction ids.
func (s *Store) Count() (uint64, error) {
	if s == nil || s.storage == nil {
		return 0, fmt.Errorf("auction store: storage not configured")
	}
	var seq uint64
	if _, err := s.storage.KVGet(auctionSeqKey, &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Allocate returns a fresh, previously unused id. Ids are strictly
// increasing; the counter never rolls back even if the caller abandons the
// allocation.
func (s *Store) Allocate() (uint64, error) {
	seq, err := s.Count()
	if err != nil {
		return 0, err
	}
	if err := s.storage.KVPut(auctionSeqKey, seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

// Get loads the auction stored under the given id.
func (s *Store) Get(id uint64) (*Auction, error) {
	if s == nil || s.storage == nil {
		return nil, fmt.Errorf("auction store: storage not configured")
	}
	record := new(Auction)
	ok, err := s.storage.KVGet(recordKey(id), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return record, nil
}

// Put overwrites the full record atomically. The record is sanitized before
// it is written so no partially valid state ever lands in storage.
func (s *Store) Put(a *Auction) error {
	if s == nil || s.storage == nil {
		return fmt.Errorf("auction store: storage not configured")
	}
	sanitized, err := Sanitize(a)
	if err != nil {
		return err
	}
	return s.storage.KVPut(recordKey(sanitized.ID), sanitized)
}

// List returns the page'th slice of pageSize auctions ordered by id. It fails
// with ErrPageOutOfRange when the page starts at or beyond the allocated
// count.
func (s *Store) List(page, pageSize uint64) ([]*Auction, error) {
	if pageSize == 0 {
		return nil, fmt.Errorf("%w: zero page size", ErrPageOutOfRange)
	}
	count, err := s.Count()
	if err != nil {
		return nil, err
	}
	if page > math.MaxUint64/pageSize {
		return nil, fmt.Errorf("%w: page %d size %d", ErrPageOutOfRange, page, pageSize)
	}
	start := page * pageSize
	if start >= count {
		return nil, fmt.Errorf("%w: page %d size %d count %d", ErrPageOutOfRange, page, pageSize, count)
	}
	end := start + pageSize
	if end > count {
		end = count
	}
	records := make([]*Auction, 0, end-start)
	for id := start; id < end; id++ {
		record, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

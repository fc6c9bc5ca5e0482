package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"auctionhouse/config"
	"auctionhouse/core"
	"auctionhouse/native/auction"
	"auctionhouse/observability/logging"
	"auctionhouse/storage"
)

type auctionView struct {
	ID         uint64 `json:"id"`
	Kind       string `json:"kind"`
	Seller     string `json:"seller"`
	Ended      bool   `json:"ended"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Start      uint64 `json:"start"`
	Maturity   uint64 `json:"maturity"`
	End        uint64 `json:"end"`
	Initial    string `json:"initial"`
	Final      string `json:"final"`
	Reserved   string `json:"reserved"`
	HasBid     bool   `json:"hasBid"`
	Bidder     string `json:"bidder,omitempty"`
	Amount     string `json:"amount,omitempty"`
}

func newView(a *auction.Auction) auctionView {
	view := auctionView{
		ID:         a.ID,
		Kind:       a.Kind.String(),
		Seller:     "0x" + hex.EncodeToString(a.Seller[:]),
		Ended:      a.Ended,
		Collection: "0x" + hex.EncodeToString(a.Asset.Collection[:]),
		TokenID:    a.Asset.TokenID.String(),
		Start:      a.Schedule.Start,
		Maturity:   a.Schedule.Maturity,
		End:        a.Schedule.End,
		Initial:    a.Pricing.Initial.String(),
		Final:      a.Pricing.Final.String(),
		Reserved:   a.Pricing.Reserved.String(),
		HasBid:     a.Bid.HasBid,
	}
	if a.Bid.HasBid {
		view.Bidder = "0x" + hex.EncodeToString(a.Bid.HighestBidder[:])
		view.Amount = a.Bid.HighestAmount.String()
	}
	return view
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendBolt:
		return storage.NewBoltDB(cfg.DataDir + "/auctions.db")
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	id := flag.Int64("id", -1, "Show a single auction by id")
	price := flag.Bool("price", false, "With -id, also print the current price")
	page := flag.Uint64("page", 0, "Page of auctions to list")
	size := flag.Uint64("size", 0, "Page size (defaults to DefaultPageSize from the config)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AUCTIONHOUSE_ENV"))
	logger := logging.Setup("auctionctl", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "path", *configFile, "err", err)
		os.Exit(1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "dataDir", cfg.DataDir, "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	vault, err := cfg.Vault()
	if err != nil {
		logger.Error("invalid vault address", "err", err)
		os.Exit(1)
	}
	manager, err := core.NewManager(db, cfg.SettlementToken, vault)
	if err != nil {
		logger.Error("failed to initialise state manager", "err", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if *id >= 0 {
		record, err := manager.GetAuction(uint64(*id))
		if err != nil {
			logger.Error("failed to load auction", "id", *id, "err", err)
			os.Exit(1)
		}
		if err := encoder.Encode(newView(record)); err != nil {
			logger.Error("failed to encode auction", "err", err)
			os.Exit(1)
		}
		if *price {
			now := uint64(time.Now().Unix())
			current, err := manager.CurrentPrice(uint64(*id), now)
			if err != nil {
				logger.Error("failed to compute current price", "id", *id, "err", err)
				os.Exit(1)
			}
			fmt.Printf("current price at %d: %s %s\n", now, current, cfg.SettlementToken)
		}
		return
	}

	pageSize := *size
	if pageSize == 0 {
		pageSize = cfg.DefaultPageSize
	}
	records, err := manager.ListAuctions(*page, pageSize)
	if err != nil {
		logger.Error("failed to list auctions", "page", *page, "size", pageSize, "err", err)
		os.Exit(1)
	}
	views := make([]auctionView, 0, len(records))
	for _, record := range records {
		views = append(views, newView(record))
	}
	if err := encoder.Encode(views); err != nil {
		logger.Error("failed to encode auctions", "err", err)
		os.Exit(1)
	}
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type AuctionMetrics struct {
	created      *prometheus.CounterVec
	resolved     *prometheus.CounterVec
	cancelled    prometheus.Counter
	bidsAccepted *prometheus.CounterVec
	bidsRejected *prometheus.CounterVec
	openAuctions prometheus.Gauge
}

var (
	auctionOnce     sync.Once
	auctionRegistry *AuctionMetrics
)

func Auction() *AuctionMetrics {
	auctionOnce.Do(func() {
		auctionRegistry = &AuctionMetrics{
			created: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "auction_created_total",
				Help: "Count of auctions created by kind.",
			}, []string{"kind"}),
			resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "auction_resolved_total",
				Help: "Count of resolved auctions by outcome (sold or returned).",
			}, []string{"outcome"}),
			cancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "auction_cancelled_total",
				Help: "Count of auctions cancelled by their seller.",
			}),
			bidsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "auction_bids_accepted_total",
				Help: "Count of accepted bids by auction kind.",
			}, []string{"kind"}),
			bidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "auction_bids_rejected_total",
				Help: "Count of rejected bids by rejection reason.",
			}, []string{"reason"}),
			openAuctions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "auction_open",
				Help: "Number of auctions currently open.",
			}),
		}
		prometheus.MustRegister(
			auctionRegistry.created,
			auctionRegistry.resolved,
			auctionRegistry.cancelled,
			auctionRegistry.bidsAccepted,
			auctionRegistry.bidsRejected,
			auctionRegistry.openAuctions,
		)
	})
	return auctionRegistry
}

func (m *AuctionMetrics) ObserveCreated(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.created.WithLabelValues(kind).Inc()
	m.openAuctions.Inc()
}

func (m *AuctionMetrics) ObserveResolved(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.resolved.WithLabelValues(outcome).Inc()
	m.openAuctions.Dec()
}

func (m *AuctionMetrics) ObserveCancelled() {
	if m == nil {
		return
	}
	m.cancelled.Inc()
	m.openAuctions.Dec()
}

func (m *AuctionMetrics) ObserveBidAccepted(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.bidsAccepted.WithLabelValues(kind).Inc()
}

func (m *AuctionMetrics) ObserveBidRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.bidsRejected.WithLabelValues(reason).Inc()
}

// Package metrics exposes the Prometheus collectors of the auction engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auction_engine"

const (
	TriggerDeadline   = "deadline"
	TriggerEarlyClose = "early_close"
)

var (
	AuctionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auctions_closed_total",
		Help:      "Auctions closed by this instance, by trigger.",
	}, []string{"trigger"})

	ClosureRaceLosses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "closure_race_losses_total",
		Help:      "Closures that found the auction already completed by another actor.",
	})

	ClosureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "closure_failures_total",
		Help:      "Closures that failed and were left for the next tick.",
	})

	TrackedAuctions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_auctions",
		Help:      "Open auctions currently held in the deadline table.",
	})

	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Executions of the periodic expiry check.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_events_published_total",
		Help:      "Events handed to the fanout hub, by event type.",
	}, []string{"event"})

	DeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_deliveries_dropped_total",
		Help:      "Deliveries skipped because the subscriber buffer was full or closed.",
	})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fanout_connections",
		Help:      "Live subscriber connections.",
	})
)

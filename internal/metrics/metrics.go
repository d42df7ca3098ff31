// Package metrics holds the Prometheus collectors of the wallet service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	// Transfers counts transfer attempts by outcome: completed, replayed or an error kind.
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transfers_total",
		Help: "Transfer attempts by outcome",
	}, []string{"outcome"})

	// Settlements counts webhook deliveries by result: settled, ignored, duplicate or an error kind.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_deposit_settlements_total",
		Help: "Deposit webhook deliveries by result",
	}, []string{"result"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_outbox_published_total",
		Help: "Outbox events relayed to Kafka by result",
	}, []string{"result"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_batches_total",
			Help: "Webhook batches received",
		},
		[]string{"result"}, // ok|invalid_signature|invalid_payload
	)

	WebhookEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_entries_total",
			Help: "Webhook batch entries processed",
		},
		[]string{"outcome"}, // applied|noop|error
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transactions_total",
			Help: "Payment transactions by type and final status",
		},
		[]string{"type", "status"},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Outbound gateway calls",
		},
		[]string{"op", "result"}, // ok|rejected|error
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(WebhookBatchesTotal)
	prometheus.MustRegister(WebhookEntriesTotal)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(GatewayRequestsTotal)
	prometheus.MustRegister(WorkerQueueDepth)
}

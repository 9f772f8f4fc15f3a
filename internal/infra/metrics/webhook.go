package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookHandshakes,
		webhookDeliveries,
		sessionsCreated,
	)
}

var (
	webhookHandshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_handshakes_total",
			Help: "Webhook verification attempts by result (verified|rejected).",
		},
		[]string{"result"},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Delivery notifications by outcome (handled|empty|error).",
		},
		[]string{"outcome"},
	)

	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_created_total",
			Help: "Sessions created for previously unseen students.",
		},
	)
)

func IncHandshake(result string) {
	webhookHandshakes.WithLabelValues(norm(result)).Inc()
}

func IncDelivery(outcome string) {
	webhookDeliveries.WithLabelValues(norm(outcome)).Inc()
}

func IncSessionCreated() {
	sessionsCreated.Inc()
}

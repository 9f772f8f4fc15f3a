package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		messagesSent,
		sendLatencyMs,
	)
}

var (
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_messages_sent_total",
			Help: "Outbound WhatsApp send attempts by result (ok|error).",
		},
		[]string{"result"},
	)

	sendLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsapp_send_latency_ms",
			Help:    "Latency of WhatsApp Graph API send calls in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"success"},
	)
)

func ObserveSend(latencyMs int, success bool) {
	result := "ok"
	if !success {
		result = "error"
	}
	messagesSent.WithLabelValues(result).Inc()
	sendLatencyMs.WithLabelValues(strconv.FormatBool(success)).Observe(float64(latencyMs))
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pressbus_connections_active",
			Help: "Number of currently connected clients",
		},
	)

	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pressbus_connections_total",
			Help: "Total number of accepted connections",
		},
	)

	// Protocol metrics
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressbus_messages_received_total",
			Help: "Total number of protocol messages received by type",
		},
		[]string{"type"},
	)

	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressbus_request_errors_total",
			Help: "Total number of requests answered with an ERROR response",
		},
		[]string{"type"},
	)

	// Distribution metrics
	ArticlesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pressbus_articles_published_total",
			Help: "Total number of articles published by category",
		},
		[]string{"category"},
	)

	NewsDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pressbus_news_deliveries_total",
			Help: "Total number of NEWS messages enqueued to subscribers",
		},
	)

	// History metrics
	HistorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pressbus_history_size",
			Help: "Number of articles currently retained in history",
		},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(MessagesReceived)
	prometheus.MustRegister(RequestErrors)
	prometheus.MustRegister(ArticlesPublished)
	prometheus.MustRegister(NewsDeliveries)
	prometheus.MustRegister(HistorySize)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Monitoring ticks run"},
	)
	NotificationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "notifications_sent_total", Help: "Decisions delivered to the subscriber"},
	)
	NotificationsSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notifications_suppressed_total", Help: "Decisions suppressed by the gate"},
		[]string{"reason"},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fetch_errors_total", Help: "Provider fetch failures"},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, NotificationsSentTotal, NotificationsSuppressedTotal, FetchErrorsTotal)
}

// Handler exposes the default registry for mounting on the admin server.
func Handler() http.Handler {
	return promhttp.Handler()
}

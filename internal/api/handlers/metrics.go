package handlers

import (
	"fmt"
	"net/http"

	"replayhub/internal/engine/webhooks"
)

// StatsSource reports dispatcher counters.
type StatsSource interface {
	Stats() webhooks.Stats
}

// MetricsHandler exports counters in the Prometheus text format.
type MetricsHandler struct {
	dispatcher StatsSource
}

func NewMetricsHandler(dispatcher StatsSource) *MetricsHandler {
	return &MetricsHandler{dispatcher: dispatcher}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	stats := h.dispatcher.Stats()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP replayhub_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE replayhub_up gauge\n")
	fmt.Fprintf(w, "replayhub_up 1\n")
	fmt.Fprintf(w, "# HELP replayhub_webhook_events_total Webhook notifications by outcome\n")
	fmt.Fprintf(w, "# TYPE replayhub_webhook_events_total counter\n")
	fmt.Fprintf(w, "replayhub_webhook_events_total{outcome=\"delivered\"} %d\n", stats.Delivered)
	fmt.Fprintf(w, "replayhub_webhook_events_total{outcome=\"failed\"} %d\n", stats.Failed)
	fmt.Fprintf(w, "replayhub_webhook_events_total{outcome=\"dropped\"} %d\n", stats.Dropped)
}

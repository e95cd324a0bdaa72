package rest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the Prometheus registry the observability
// Collector registers into, the counterpart to the teacher's health/ready
// probes but for scraping rather than liveness.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}

package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status labels shared by RPC and transaction metrics
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Handler exposes the metrics gathered by g in Prometheus text format.
// A nil g falls back to prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

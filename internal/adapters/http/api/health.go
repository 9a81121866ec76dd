package api

import (
	"net/http"

	"github.com/okian/leaderboard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RootMessage is the body of GET /.
const RootMessage = "Leaderboard API is running!"

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests with the Prometheus exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// HandleRoot handles GET / and answers 404 for every unrouted path.
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootMessage))
}

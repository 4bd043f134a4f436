// Package router configures HTTP routes for frontier's HTTP API.
//
// Routes configured:
//   - GET /frontier/current - Latest ready set snapshot
//   - GET /healthz - Health check (503 once shutdown has been requested)
//   - GET /metrics - Prometheus metrics endpoint
//
// Snapshots older than the stale threshold carry an X-Frontier-Stale header,
// which tells consumers the poll loop has stopped producing fresh cycles.
package router

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/frontier/pkg/httpx"
	"github.com/HatiCode/frontier/pkg/shutdown"
	"github.com/HatiCode/frontier/pkg/sink"
)

// StaleHeader marks snapshots older than the stale threshold.
const StaleHeader = "X-Frontier-Stale"

var errShuttingDown = errors.New("shutting down")

// SetupRoutes configures HTTP endpoints for frontier.
func SetupRoutes(holder *sink.Holder, sig *shutdown.Signal, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandlerWithCheck(func() error {
		if sig.Requested() {
			return errShuttingDown
		}
		return nil
	}))

	mux.HandleFunc("/frontier/current", handleGetCurrent(holder, staleAfter, logger))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetCurrent returns a handler for GET /frontier/current.
func handleGetCurrent(holder *sink.Holder, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		snap, ok := holder.Get()
		if !ok {
			httpx.WriteErrorMessage(w, http.StatusNotFound, "no poll cycle has completed yet")
			return
		}

		if time.Since(snap.GeneratedAt) > staleAfter {
			w.Header().Set(StaleHeader, "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snap); err != nil {
			logger.Error("failed to write snapshot", "error", err)
		}
	}
}

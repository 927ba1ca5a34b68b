// Package api exposes the node's /health and /metrics HTTP surface.
// Serving job logs and authenticating callers are genuinely out of
// scope here, left to the externally-provided log endpoint the spec
// names.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/meridian-network/node/pkg/health"
	"github.com/meridian-network/node/pkg/log"
	"github.com/meridian-network/node/pkg/metrics"
)

// HealthChecker is the subset of pkg/health.NodeMonitor the /health
// handler needs.
type HealthChecker interface {
	Check(ctx context.Context) health.Verdict
}

// NewMux builds the node's HTTP handler: /health reports the Node
// Monitor's current verdict, /metrics serves the Prometheus registry.
func NewMux(checker HealthChecker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		verdict := checker.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !verdict.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(verdict); err != nil {
			log.WithComponent("api").Error().Err(err).Msg("encode health response failed")
		}
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}

// Package health exposes liveness and readiness probes for a fabric
// participant over HTTP, backed by heptiolabs/healthcheck.
package health

import (
	"fmt"
	"net/http"

	"github.com/heptiolabs/healthcheck"
)

// Endpoint tracks a single node handle (Sink or Source) this process
// depends on.
type Endpoint struct {
	Name     string
	Poisoned func() bool
}

// Handler builds an HTTP handler exposing /live and /ready, registering
// one readiness check per tracked Endpoint: an endpoint that has
// detected a poisoned peer (spec §7 PeerDied/Poisoned) fails readiness
// until the process restarts and rebinds.
type Handler struct {
	checks healthcheck.Handler
}

// NewHandler builds a Handler with a goroutine-count liveness check (as
// heptiolabs/healthcheck's own examples recommend) and one readiness
// check per endpoint.
func NewHandler(maxGoroutines int, endpoints ...Endpoint) *Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))

	for _, ep := range endpoints {
		ep := ep
		h.AddReadinessCheck(ep.Name+"-poisoned", func() error {
			if ep.Poisoned() {
				return fmt.Errorf("node %s is poisoned", ep.Name)
			}
			return nil
		})
	}
	return &Handler{checks: h}
}

// ServeHTTP delegates to the underlying healthcheck.Handler, which
// itself routes /live and /ready.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.checks.ServeHTTP(w, r)
}

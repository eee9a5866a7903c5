package httpapi

import (
	"net/http"
	"time"
)

// HealthStatus reports liveness; grounded on the teacher's health
// server shape, narrowed to the fields this process actually tracks.
type HealthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ReadinessStatus reports whether every hard dependency is reachable;
// a 503 here means the load balancer should stop routing traffic, not
// that the process should restart.
type ReadinessStatus struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// handleHealth implements `GET /health` (§6, liveness probe): it never
// touches a dependency, since a dependency outage shouldn't make an
// orchestrator kill an otherwise-healthy process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status: "ok",
		Uptime: time.Since(s.startedAt).String(),
	})
}

// handleReady implements `GET /ready` (§6, readiness probe): Postgres
// and Redis must both answer, or the caller gets a 503 body listing
// which one failed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if err := s.db.Health(r.Context()); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := s.redis.Health(r.Context()); err != nil {
		checks["redis"] = err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	for _, b := range s.breakers.AllStatus() {
		checks["breaker:"+b.ResourceKey] = string(b.State)
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ReadinessStatus{Ready: ready, Checks: checks})
}

// handleMetrics implements `GET /metrics` (§6, scrape endpoint). No
// metrics library is wired in per spec.md §1's explicit exclusion of
// "monitoring scrape endpoints" as an external collaborator; this
// returns the breaker status list (without /ready's dependency checks)
// so an operator still has something to scrape without adopting a metrics
// stack SPEC_FULL.md never asked for.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.breakers.AllStatus())
}

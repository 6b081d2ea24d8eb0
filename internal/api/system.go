package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-blegw/internal/connectivity"
)

// healthResponse reports gateway liveness.
type healthResponse struct {
	Status        string `json:"status"`
	State         string `json:"state"`
	Devices       int    `json:"devices"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// handleHealth reports "ok" while publishing is possible and "degraded"
// otherwise. The gateway keeps scanning either way, so both return 200.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.state.State()

	status := "ok"
	if state != connectivity.AssocUpSessionUp {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		State:         state.String(),
		Devices:       s.registry.Len(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

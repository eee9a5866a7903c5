package httpapi

import "net/http"

// handlePortfolio implements `GET /portfolio` (§6).
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	snapshot, err := s.ledger.Snapshot(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

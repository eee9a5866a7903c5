package httpapi

import "net/http"

type aiAnalyzeRequest struct {
	Prompt string `json:"prompt"`
}

type aiAnalyzeResponse struct {
	Text     string `json:"text"`
	Degraded bool   `json:"degraded"`
}

// handleAIAnalyze exposes internal/ai.Service as an opaque completion
// endpoint (§1 "opaque text-completion service with a timeout and
// fallback"); a failed or disabled provider never surfaces as an HTTP
// error, only as degraded: true (§7's AI recoverability carve-out).
func (s *Server) handleAIAnalyze(w http.ResponseWriter, r *http.Request) {
	var req aiAnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result := s.ai.Complete(r.Context(), req.Prompt)
	writeJSON(w, http.StatusOK, aiAnalyzeResponse{Text: result.Text, Degraded: result.Degraded})
}

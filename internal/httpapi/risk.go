package httpapi

import (
	"net/http"
	"strings"

	"github.com/tradecore/backend/internal/portfolio"
	"github.com/tradecore/backend/pkg/errs"
)

// handleRiskStatus exposes risk.Engine.Assess for the caller's own
// portfolio — leverage/drawdown usage against limits, the same data
// the kill-switch checker consults (§4.5.4 position-sizing assistance,
// §9 supplemented early-warning thresholds).
func (s *Server) handleRiskStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	snapshot, err := s.ledger.Snapshot(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.riskEngine.Assess(portfolio.ToRiskSnapshot(snapshot)))
}

// handleListApprovals implements the read side of §4.6.1's Assisted-mode
// approval queue.
func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, s.router.Approvals().Pending(p.UserID))
}

// handleApproveProposal implements `POST /approvals/{id}/approve`,
// promoting a queued Assisted-mode proposal into a live submission
// (§4.6.1).
func (s *Server) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := approvalIDFromPath(r.URL.Path, "/approve")
	if id == "" {
		writeError(w, errs.New(errs.KindValidation, "missing proposal id"))
		return
	}

	result, err := s.router.ApproveQueued(r.Context(), p.UserID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRejectProposal implements `POST /approvals/{id}/reject`.
func (s *Server) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := approvalIDFromPath(r.URL.Path, "/reject")
	if id == "" {
		writeError(w, errs.New(errs.KindValidation, "missing proposal id"))
		return
	}
	if !s.router.Approvals().Reject(p.UserID, id) {
		writeError(w, errs.New(errs.KindNotFound, "proposal not found or expired"))
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func approvalIDFromPath(path, suffix string) string {
	path = strings.TrimPrefix(path, "/approvals/")
	path = strings.TrimSuffix(path, suffix)
	return strings.Trim(path, "/")
}

package httpapi

import (
	"net/http"

	"github.com/tradecore/backend/internal/router"
	"github.com/tradecore/backend/pkg/errs"
)

type killSwitchRequest struct {
	OwnerID string `json:"owner_id"`
	Reason  string `json:"reason"`
}

// handleActivateKillSwitch implements `POST /kill-switch` (§6, admin
// only): it halts the named owner's trading and closes every open
// position against the current quote, per §4.6.5.
func (s *Server) handleActivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	admin, _ := principalFrom(r.Context())

	var req killSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OwnerID == "" {
		writeError(w, errs.New(errs.KindValidation, "owner_id is required"))
		return
	}

	if err := s.router.ActivateKillSwitchAndClose(r.Context(), req.OwnerID, router.KillSwitchManual, admin.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleDeactivateKillSwitch implements `DELETE /kill-switch` (§6,
// admin only): manual release per §4.6.5's "requires manual
// intervention".
func (s *Server) handleDeactivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	admin, _ := principalFrom(r.Context())

	var req killSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OwnerID == "" {
		writeError(w, errs.New(errs.KindValidation, "owner_id is required"))
		return
	}

	s.router.KillSwitch().Deactivate(req.OwnerID, admin.UserID)
	writeJSON(w, http.StatusOK, nil)
}

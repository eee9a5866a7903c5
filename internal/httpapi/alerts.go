package httpapi

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

type createAlertRequest struct {
	Symbol    string          `json:"symbol"`
	Condition string          `json:"condition"`
	Threshold decimal.Decimal `json:"threshold"`
}

// handleCreateAlert implements `POST /alerts` (§6), arming a SmartAlert
// through the notify Engine so its symbol immediately joins the scan
// loop (§4.8) rather than waiting for a separate watch call.
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req createAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	condition, ok := parseAlertCondition(req.Condition)
	if !ok {
		writeError(w, errs.New(errs.KindValidation, "unknown alert condition"))
		return
	}

	alert, err := s.notify.ArmAlert(r.Context(), p.UserID, req.Symbol, condition, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// handleListAlerts implements `GET /alerts` (§6).
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	alerts, err := s.notifyRepo.ListArmedForOwner(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleDismissAlert implements `DELETE /alerts/{id}` (§6).
func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := strings.TrimPrefix(r.URL.Path, "/alerts/")
	if id == "" {
		writeError(w, errs.New(errs.KindValidation, "missing alert id"))
		return
	}
	if err := s.notifyRepo.Dismiss(r.Context(), p.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleListNotifications backs the notification feed `GET
// /notifications`, the read-side counterpart of the alert/trade events
// fanned out live over the `/ws` notifications channel.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	const defaultLimit = 50
	notifications, err := s.notifyRepo.ListForOwner(r.Context(), p.UserID, defaultLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func parseAlertCondition(s string) (models.AlertCondition, bool) {
	switch models.AlertCondition(s) {
	case models.ConditionPriceAbove, models.ConditionPriceBelow,
		models.ConditionRSIAbove, models.ConditionRSIBelow, models.ConditionVolumeSpike:
		return models.AlertCondition(s), true
	}
	return "", false
}

// Package httpapi is the HTTP boundary of §6: JSON request/response
// mapping over the domain services, bearer-token authentication, and
// the errs.Kind -> status code translation of §7. The teacher has no
// general REST API (it is Telegram-bot-driven), so the route wiring
// here is new code following Go stdlib net/http's own ServeMux, the
// same "no foreign framework" posture the rest of the pack takes with
// HTTP-ish handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/users"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// writeJSON marshals v as the response body, setting status and the
// JSON content type first.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response body", zap.Error(err))
	}
}

// notFoundErr is returned for a recognized path prefix that doesn't
// match any registered sub-route (e.g. /platforms/<id>/unknown).
var notFoundErr = errs.New(errs.KindNotFound, "no such route")

// errorBody is the stable JSON envelope every failed request returns.
type errorBody struct {
	Error   string                 `json:"error"`
	Kind    errs.Kind              `json:"kind"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError maps err to its HTTP status per errs.HTTPStatus and writes
// the structured body §7 calls for. Errors that never crossed a
// classified boundary degrade to KindInternal, matching errs.KindOf.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := errs.HTTPStatus(kind)

	body := errorBody{Error: err.Error(), Kind: kind}
	var e *errs.Error
	if ae, ok := err.(*errs.Error); ok {
		e = ae
	}
	if e != nil {
		body.Error = e.Message
		body.Details = e.Details
	}
	if kind == errs.KindInternal {
		logger.Error("internal error reached http boundary", zap.Error(err))
		body.Error = "internal error"
		body.Details = nil
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.KindValidation, "malformed request body", err)
	}
	return nil
}

// principalKey is the context key the auth middleware stores the
// caller's identity under.
type principalKey struct{}

type principal struct {
	UserID string
	Role   models.Role
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

// requireAuth parses the bearer token with users.Service.ParseToken and
// stores the resulting principal on the request context; a missing or
// invalid token short-circuits with 401 before the handler runs.
func requireAuth(authSvc *users.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, errs.New(errs.KindAuth, "missing bearer token"))
			return
		}
		userID, role, err := authSvc.ParseToken(token)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal{UserID: userID, Role: role})
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin wraps requireAuth, additionally rejecting non-admin
// callers with 403 (§6 "POST /kill-switch (admin)").
func requireAdmin(authSvc *users.Service, next http.HandlerFunc) http.HandlerFunc {
	return requireAuth(authSvc, func(w http.ResponseWriter, r *http.Request) {
		p, _ := principalFrom(r.Context())
		if p.Role != models.RoleAdmin {
			writeError(w, errs.New(errs.KindForbidden, "admin role required"))
			return
		}
		next(w, r)
	})
}

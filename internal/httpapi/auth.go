package httpapi

import (
	"net/http"

	"github.com/tradecore/backend/pkg/errs"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// handleRegister implements `POST /auth/register` (§6).
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := s.users.IssueToken(user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{AccessToken: token, UserID: user.ID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// handleLogin implements `POST /auth/login` (§6). A missing/invalid
// TOTP code on a 2FA-enrolled account surfaces as KindAuth, mapped to
// 401 like any other bad credential per users.Service.Authenticate's
// deliberate non-disclosure of which check failed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password, req.TOTP)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := s.users.IssueToken(user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token})
}

// handleSetMode implements the mode-switch operation behind §4.6.1;
// there is no dedicated spec.md route name for it, so it's exposed
// under the account namespace as `PUT /account/mode`.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	mode, ok := parseTradingMode(req.Mode)
	if !ok {
		writeError(w, errs.New(errs.KindValidation, "unknown trading mode"))
		return
	}

	if err := s.users.SetMode(r.Context(), p.UserID, mode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/tradecore/backend/internal/platform"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// handleListPlatforms implements `GET /platforms` (§6).
func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	platforms, err := s.platforms.List(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, platforms)
}

type createPlatformRequest struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase"`
	IsSandbox  bool   `json:"is_sandbox"`
}

// handleCreatePlatform implements `POST /platforms` (§6).
func (s *Server) handleCreatePlatform(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req createPlatformRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	kind, ok := parsePlatformKind(req.Kind)
	if !ok {
		writeError(w, errs.New(errs.KindValidation, "unknown platform kind"))
		return
	}

	created, err := s.platforms.Create(r.Context(), p.UserID, req.Name, kind, req.IsSandbox, platform.CredentialInput{
		APIKey: req.APIKey, APISecret: req.SecretKey, Passphrase: req.Passphrase,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleTestPlatform implements `PUT /platforms/{id}/test` (§6).
func (s *Server) handleTestPlatform(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := platformIDFromPath(r.URL.Path)
	if id == "" {
		writeError(w, errs.New(errs.KindValidation, "missing platform id"))
		return
	}

	result, err := s.platforms.Test(r.Context(), p.UserID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeletePlatform implements `DELETE /platforms/{id}`, implied by
// the CRUD surface §6 names for platforms.
func (s *Server) handleDeletePlatform(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := platformIDFromPath(strings.TrimSuffix(r.URL.Path, "/test"))
	if id == "" {
		writeError(w, errs.New(errs.KindValidation, "missing platform id"))
		return
	}
	if err := s.platforms.Delete(r.Context(), p.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleSetDefaultPlatform implements the default-platform tiebreaker
// §4.6.2's resolvePlatform depends on.
func (s *Server) handleSetDefaultPlatform(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := platformIDFromPath(strings.TrimSuffix(r.URL.Path, "/default"))
	if id == "" {
		writeError(w, errs.New(errs.KindValidation, "missing platform id"))
		return
	}
	if err := s.platforms.SetDefault(r.Context(), p.UserID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func platformIDFromPath(path string) string {
	const prefix = "/platforms/"
	idx := strings.Index(path, prefix)
	if idx < 0 {
		return ""
	}
	rest := path[idx+len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func parsePlatformKind(s string) (models.PlatformKind, bool) {
	switch models.PlatformKind(s) {
	case models.PlatformBinance, models.PlatformBybit, models.PlatformOKX:
		return models.PlatformKind(s), true
	}
	return "", false
}

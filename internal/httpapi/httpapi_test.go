package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/users"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

func TestWriteError_ScrubsInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errs.Wrap(errs.KindInternal, "database exploded", context.DeadlineExceeded))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error != "internal error" {
		t.Errorf("expected scrubbed message, got %q", body.Error)
	}
	if body.Kind != errs.KindInternal {
		t.Errorf("expected kind %q, got %q", errs.KindInternal, body.Kind)
	}
	if body.Details != nil {
		t.Errorf("expected no details leaked, got %v", body.Details)
	}
}

func TestWriteError_PreservesClassifiedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errs.New(errs.KindValidation, "quantity must be positive").WithDetails(map[string]interface{}{"field": "quantity"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error != "quantity must be positive" {
		t.Errorf("expected original message preserved, got %q", body.Error)
	}
	if body.Kind != errs.KindValidation {
		t.Errorf("expected kind %q, got %q", errs.KindValidation, body.Kind)
	}
	if body.Details["field"] != "quantity" {
		t.Errorf("expected details to survive, got %v", body.Details)
	}
}

func TestWriteError_UnclassifiedErrorDefaultsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, context.DeadlineExceeded)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != "internal error" {
		t.Errorf("expected scrubbed message for unclassified error, got %q", body.Error)
	}
}

func TestDecodeJSON_MalformedBodyIsValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader("{not json"))
	var v map[string]interface{}
	err := decodeJSON(req, &v)
	if err == nil {
		t.Fatal("expected an error decoding malformed json")
	}
	if errs.KindOf(err) != errs.KindValidation {
		t.Errorf("expected KindValidation, got %q", errs.KindOf(err))
	}
}

func testAuthService(t *testing.T) *users.Service {
	t.Helper()
	cfg := &config.Config{
		Auth:  config.AuthConfig{JWTSecret: "a-test-secret-at-least-32-bytes-long"},
		Users: config.UsersConfig{SeedBalance: 10000},
	}
	return users.NewService(nil, nil, cfg)
}

func TestRequireAuth_RejectsMissingToken(t *testing.T) {
	svc := testAuthService(t)
	handler := requireAuth(svc, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a valid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/portfolio", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_RejectsInvalidToken(t *testing.T) {
	svc := testAuthService(t)
	handler := requireAuth(svc, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a garbage token")
	})

	req := httptest.NewRequest(http.MethodGet, "/portfolio", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-jwt")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_AcceptsValidTokenAndStoresPrincipal(t *testing.T) {
	svc := testAuthService(t)
	user := &models.User{ID: "user-123", Role: models.RoleUser}
	token, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var gotPrincipal principal
	handler := requireAuth(svc, func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			t.Fatal("expected a principal on the request context")
		}
		gotPrincipal = p
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/portfolio", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotPrincipal.UserID != "user-123" || gotPrincipal.Role != models.RoleUser {
		t.Errorf("unexpected principal: %+v", gotPrincipal)
	}
}

func TestRequireAdmin_RejectsNonAdminRole(t *testing.T) {
	svc := testAuthService(t)
	user := &models.User{ID: "user-123", Role: models.RoleUser}
	token, _ := svc.IssueToken(user)

	handler := requireAdmin(svc, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for a non-admin caller")
	})

	req := httptest.NewRequest(http.MethodPost, "/kill-switch", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAdmin_AllowsAdminRole(t *testing.T) {
	svc := testAuthService(t)
	admin := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	token, _ := svc.IssueToken(admin)

	ran := false
	handler := requireAdmin(svc, func(w http.ResponseWriter, r *http.Request) {
		ran = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/kill-switch", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if !ran {
		t.Fatal("expected the wrapped handler to run for an admin caller")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestParseOrderSideAndType(t *testing.T) {
	if _, ok := parseOrderSide("buy"); !ok {
		t.Error("expected buy to be a valid side")
	}
	if _, ok := parseOrderSide("sideways"); ok {
		t.Error("expected an unknown side to be rejected")
	}
	if _, ok := parseOrderType("market"); !ok {
		t.Error("expected market to be a valid order type")
	}
	if _, ok := parseOrderType("teleport"); ok {
		t.Error("expected an unknown order type to be rejected")
	}
}

func TestParseTradingMode(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"learning_only", true},
		{"assisted", true},
		{"autopilot", true},
		{"yolo", false},
	}
	for _, c := range cases {
		if _, ok := parseTradingMode(c.in); ok != c.ok {
			t.Errorf("parseTradingMode(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
	}
}

func TestParseAlertCondition(t *testing.T) {
	if _, ok := parseAlertCondition("price_above"); !ok {
		t.Error("expected price_above to be a valid condition")
	}
	if _, ok := parseAlertCondition("moon_landing"); ok {
		t.Error("expected an unknown condition to be rejected")
	}
}

func TestParsePlatformKind(t *testing.T) {
	if _, ok := parsePlatformKind("binance"); !ok {
		t.Error("expected binance to be a valid platform kind")
	}
	if _, ok := parsePlatformKind("not-a-real-exchange"); ok {
		t.Error("expected an unknown platform kind to be rejected")
	}
}

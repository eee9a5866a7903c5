package users

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/models"
)

func TestIssueAndParseToken(t *testing.T) {
	s := &Service{auth: testAuthConfig()}
	user := &models.User{ID: "user-1", Role: models.RoleAdmin}

	token, err := s.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	userID, role, err := s.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if userID != user.ID {
		t.Errorf("ParseToken() userID = %s, want %s", userID, user.ID)
	}
	if role != models.RoleAdmin {
		t.Errorf("ParseToken() role = %s, want %s", role, models.RoleAdmin)
	}
}

func TestParseToken_RejectsWrongSecret(t *testing.T) {
	s := &Service{auth: testAuthConfig()}
	token, err := s.IssueToken(&models.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	other := &Service{auth: testAuthConfig()}
	other.auth.JWTSecret = "a-completely-different-secret-value-0000"
	if _, _, err := other.ParseToken(token); err == nil {
		t.Fatal("ParseToken() should reject a token signed with a different secret")
	}
}

func TestParseToken_RejectsExpired(t *testing.T) {
	s := &Service{auth: testAuthConfig()}
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, _, err := s.ParseToken(signed); err == nil {
		t.Fatal("ParseToken() should reject an expired token")
	}
}

func TestTOTPCodeValidatesAgainstOwnSecret(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "tradecore", AccountName: "test@example.com"})
	if err != nil {
		t.Fatalf("totp.Generate() error = %v", err)
	}
	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatalf("totp.GenerateCode() error = %v", err)
	}
	if !totp.Validate(code, key.Secret()) {
		t.Fatal("freshly generated TOTP code should validate against its own secret")
	}
	if totp.Validate("000000", key.Secret()) {
		t.Fatal("an arbitrary code should not validate")
	}
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: "test-secret-at-least-32-bytes-long!!"}
}

// Package users implements registration, authentication and mode
// selection (§4.1, §4.6.1). It wraps internal/storage's Postgres
// repositories with the domain rules password hashing, JWT issuance and
// two-factor verification depend on.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// Service is the single entry point for account lifecycle operations.
type Service struct {
	users      *storage.UsersRepository
	portfolios *storage.PortfolioRepository
	auth       config.AuthConfig
	seedBalance decimal.Decimal
}

func NewService(users *storage.UsersRepository, portfolios *storage.PortfolioRepository, cfg *config.Config) *Service {
	return &Service{
		users:       users,
		portfolios:  portfolios,
		auth:        cfg.Auth,
		seedBalance: decimal.NewFromFloat(cfg.Users.SeedBalance),
	}
}

// Register creates a user and seeds their portfolio (§3, §9 open
// question on seed balance resolved via UsersConfig.SeedBalance). The
// new account starts in LearningOnly mode per §4.6.1's default.
func (s *Service) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	if len(password) < 8 {
		return nil, errs.New(errs.KindValidation, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to hash password", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Mode:         models.ModeLearningOnly,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.portfolios.Seed(ctx, created.ID, s.seedBalance); err != nil {
		return nil, err
	}

	logger.Info("user registered", zap.String("user_id", created.ID))
	return created, nil
}

// Authenticate verifies email/password and, when 2FA is enabled,
// requires a valid TOTP code. A mismatch surfaces as KindAuth
// regardless of which check failed, so callers can't distinguish a bad
// password from a bad username (§6 auth error mapping).
func (s *Service) Authenticate(ctx context.Context, email, password, totpCode string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, errs.New(errs.KindAuth, "invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errs.New(errs.KindAuth, "invalid credentials")
	}

	if user.TOTPEnabled {
		if totpCode == "" || !totp.Validate(totpCode, user.TOTPSecret) {
			return nil, errs.New(errs.KindAuth, "invalid or missing two-factor code")
		}
	}

	return user, nil
}

// EnrollTOTP generates a new secret and key URI for the user to scan.
// The secret is not persisted until ConfirmTOTP validates the first
// code, so a user who abandons enrollment never ends up locked out.
func (s *Service) EnrollTOTP(user *models.User) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "tradecore",
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", errs.Wrap(errs.KindInternal, "failed to generate totp secret", err)
	}
	return key.Secret(), key.URL(), nil
}

func (s *Service) ConfirmTOTP(ctx context.Context, userID, secret, code string) error {
	if !totp.Validate(code, secret) {
		return errs.New(errs.KindAuth, "invalid two-factor code")
	}
	return s.users.SetTOTP(ctx, userID, secret, true)
}

func (s *Service) DisableTOTP(ctx context.Context, userID string) error {
	return s.users.SetTOTP(ctx, userID, "", false)
}

// SetMode changes a user's trading mode (§4.6.1). Switching out of
// Autopilot never cancels in-flight orders; the Trade Router consults
// the mode fresh on each submission.
func (s *Service) SetMode(ctx context.Context, userID string, mode models.TradingMode) error {
	switch mode {
	case models.ModeLearningOnly, models.ModeAssisted, models.ModeAutopilot:
	default:
		return errs.New(errs.KindValidation, fmt.Sprintf("unknown trading mode %q", mode))
	}
	return s.users.SetMode(ctx, userID, mode)
}

// claims is the JWT payload issued on successful authentication.
type claims struct {
	UserID string     `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a short-lived JWT carrying the user's id and role.
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "failed to sign token", err)
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns the caller's identity.
func (s *Service) ParseToken(tokenString string) (userID string, role models.Role, err error) {
	var c claims
	_, err = jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.auth.JWTSecret), nil
	})
	if err != nil {
		return "", "", errs.Wrap(errs.KindAuth, "invalid or expired token", err)
	}
	return c.UserID, c.Role, nil
}

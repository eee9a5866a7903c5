// Package platform implements Platform CRUD and connectivity testing
// (§4.3): credentials never leave internal/vault's ciphertext except
// transiently inside an exchange.Adapter constructor. A new platform is
// stored as disconnected, and only Test updates its status, from the
// adapter's own Test() result rather than client-asserted state.
package platform

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/exchange"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/internal/vault"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// Service is the single entry point for platform lifecycle operations.
type Service struct {
	repo    *storage.PlatformRepository
	vault   *vault.Vault
	factory *exchange.Factory
}

func NewService(repo *storage.PlatformRepository, v *vault.Vault, factory *exchange.Factory) *Service {
	return &Service{repo: repo, vault: v, factory: factory}
}

// CredentialInput carries plaintext credentials for the duration of a
// single Create call; nothing retains a reference to it once the
// vault has sealed the fields.
type CredentialInput struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// Create seals creds and persists a new disconnected Platform; the
// caller is expected to follow up with Test to establish connectivity
// before the Trade Router will consider it (§4.6.2 only selects
// Connected platforms).
func (s *Service) Create(ctx context.Context, ownerID, name string, kind models.PlatformKind, sandbox bool, creds CredentialInput) (*models.Platform, error) {
	if kind == models.PlatformPaper {
		return nil, errs.New(errs.KindValidation, "paper platforms are implicit and cannot be created explicitly")
	}

	enc, err := s.vault.EncryptCredentials(vault.Credentials{
		APIKey:     creds.APIKey,
		APISecret:  creds.APISecret,
		Passphrase: creds.Passphrase,
	})
	if err != nil {
		return nil, err
	}

	platform := &models.Platform{
		OwnerID:             ownerID,
		Name:                name,
		Kind:                kind,
		IsSandbox:           sandbox,
		EncryptedAPIKey:     enc.APIKey,
		EncryptedAPISecret:  enc.APISecret,
		EncryptedPassphrase: enc.Passphrase,
	}
	created, err := s.repo.Create(ctx, platform)
	if err != nil {
		return nil, err
	}
	logger.Info("platform created", zap.String("platform_id", created.ID), zap.String("kind", string(kind)))
	return created, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.Platform, error) {
	return s.repo.ListForOwner(ctx, ownerID)
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.Platform, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, errs.New(errs.KindForbidden, "platform does not belong to this account")
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SetDefault marks id as ownerID's default platform (§4.6.2's
// platform-choice rule consults IsDefault as a tiebreaker).
func (s *Service) SetDefault(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.repo.SetDefault(ctx, ownerID, id)
}

// Test builds a live adapter from the platform's stored (still
// encrypted) credentials and calls its Test() method, persisting the
// resulting status and timestamp regardless of outcome so ListForOwner
// always reflects the last real connectivity check.
func (s *Service) Test(ctx context.Context, ownerID, id string) (*exchange.TestResult, error) {
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	adapter, err := s.factory.Build(*p)
	if err != nil {
		_ = s.repo.UpdateStatus(ctx, id, models.PlatformError, time.Now())
		return nil, err
	}

	result, err := adapter.Test(ctx)
	status := models.PlatformConnected
	if err != nil || !result.OK {
		status = models.PlatformError
	}
	if updateErr := s.repo.UpdateStatus(ctx, id, status, time.Now()); updateErr != nil {
		logger.Error("failed to persist platform test status", zap.String("platform_id", id), zap.Error(updateErr))
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/internal/vault"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// DefaultPaperSeedBalance is the starting balance of every paper
// adapter Build creates (§4.4).
var DefaultPaperSeedBalance = decimal.NewFromInt(10000)

// Factory constructs Adapters from a decrypted Platform. It is the only
// place a Platform's ciphertext is turned into a live connection
// (§3 invariant 3).
type Factory struct {
	vault      *vault.Vault
	aggregator *market.Aggregator
}

func NewFactory(v *vault.Vault, aggregator *market.Aggregator) *Factory {
	return &Factory{vault: v, aggregator: aggregator}
}

// Build decrypts platform's stored credentials (if any) and constructs
// the matching live or paper Adapter. Decrypted credentials never leave
// this call's stack.
func (f *Factory) Build(platform models.Platform) (Adapter, error) {
	if platform.Kind == models.PlatformPaper {
		return NewPaperAdapter(f.aggregator, DefaultPaperSeedBalance), nil
	}

	creds, err := f.vault.DecryptCredentials(vault.EncryptedCredentials{
		APIKey:     platform.EncryptedAPIKey,
		APISecret:  platform.EncryptedAPISecret,
		Passphrase: platform.EncryptedPassphrase,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindVault, "failed to decrypt platform credentials", err)
	}
	adapterCreds := Credentials{APIKey: creds.APIKey, APISecret: creds.APISecret, Passphrase: creds.Passphrase}

	switch platform.Kind {
	case models.PlatformBinance:
		return NewBinanceAdapter(adapterCreds, platform.IsSandbox)
	case models.PlatformBybit:
		return NewBybitAdapter(adapterCreds, platform.IsSandbox)
	case models.PlatformOKX:
		return NewOKXAdapter(adapterCreds, platform.IsSandbox)
	default:
		return nil, errs.New(errs.KindValidation, "unsupported platform kind: "+string(platform.Kind))
	}
}

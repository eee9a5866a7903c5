// Package vault implements symmetric, authenticated encryption of
// exchange credentials at rest. A missing or invalid key is a fatal
// startup error (enforced by internal/config); a decryption failure is
// always surfaced as a *errs.Error with KindVault and is never
// swallowed into a zero-value default.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"github.com/tradecore/backend/pkg/errs"
)

// Vault encrypts and decrypts plaintext secrets with AES-256-GCM. The
// key never leaves the process after construction.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a 32-byte AES-256 key. Callers are expected to
// have already validated key length (internal/config.VaultConfig.Key).
func New(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, errs.New(errs.KindVault, "vault key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.KindVault, "failed to initialize cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.KindVault, "failed to initialize AEAD", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt authenticates and encrypts plaintext, returning a
// base64-encoded ciphertext (nonce prefix + sealed data) safe to store
// as a single text column.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errs.Wrap(errs.KindVault, "failed to generate nonce", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any tampering, truncation, or key mismatch
// surfaces as a KindVault error — callers must not convert this into a
// silent empty-string default.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errs.Wrap(errs.KindVault, "ciphertext is not valid base64", err)
	}
	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errs.New(errs.KindVault, "ciphertext shorter than nonce size")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errs.Wrap(errs.KindVault, "decryption failed: ciphertext is invalid or tampered", err)
	}
	return string(plaintext), nil
}

// Credentials is a bundle of exchange API credentials. EncryptCredentials
// and DecryptCredentials are the only path through which a Platform's
// stored secrets become plaintext.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string // optional, okx-style
}

// EncryptCredentials seals each field independently: the key and secret
// always, the passphrase only when non-empty, so a missing passphrase
// (e.g. binance/bybit) never needs a sentinel value.
func (v *Vault) EncryptCredentials(c Credentials) (EncryptedCredentials, error) {
	var out EncryptedCredentials
	var err error
	if out.APIKey, err = v.Encrypt(c.APIKey); err != nil {
		return EncryptedCredentials{}, err
	}
	if out.APISecret, err = v.Encrypt(c.APISecret); err != nil {
		return EncryptedCredentials{}, err
	}
	if c.Passphrase != "" {
		if out.Passphrase, err = v.Encrypt(c.Passphrase); err != nil {
			return EncryptedCredentials{}, err
		}
	}
	return out, nil
}

// EncryptedCredentials is the ciphertext blob persisted on a Platform row.
type EncryptedCredentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// DecryptCredentials is only ever called from inside an exchange Adapter
// constructor (§3 invariant 3) — never from an HTTP handler or log call.
func (v *Vault) DecryptCredentials(c EncryptedCredentials) (Credentials, error) {
	var out Credentials
	var err error
	if out.APIKey, err = v.Decrypt(c.APIKey); err != nil {
		return Credentials{}, err
	}
	if out.APISecret, err = v.Decrypt(c.APISecret); err != nil {
		return Credentials{}, err
	}
	if c.Passphrase != "" {
		if out.Passphrase, err = v.Decrypt(c.Passphrase); err != nil {
			return Credentials{}, err
		}
	}
	return out, nil
}

// ErrKeyStrength is returned by ValidateKeyStrength when a raw key fails
// the minimum bar for a vault key (kept distinct from decode/auth
// failures so callers can give operators a specific startup message).
var ErrKeyStrength = errors.New("vault key does not meet minimum strength requirements")

// KeyStrength reports which minimum-strength checks a raw (pre-encoding)
// secret satisfies. Used by admin tooling when rotating the vault key,
// not on the hot decrypt path.
type KeyStrength struct {
	MinLength    bool
	HasSpecial   bool
	HasDigit     bool
	HasLetter    bool
}

// OK reports whether every check passed.
func (k KeyStrength) OK() bool {
	return k.MinLength && k.HasSpecial && k.HasDigit && k.HasLetter
}

// ValidateKeyStrength checks a candidate raw secret (e.g. a rotation
// candidate) against the same bar the original vault enforced.
func ValidateKeyStrength(raw string) KeyStrength {
	const specials = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	var hasSpecial, hasDigit, hasLetter bool
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		default:
			for _, s := range specials {
				if r == s {
					hasSpecial = true
				}
			}
		}
	}
	return KeyStrength{
		MinLength:  len(raw) >= 32,
		HasSpecial: hasSpecial,
		HasDigit:   hasDigit,
		HasLetter:  hasLetter,
	}
}

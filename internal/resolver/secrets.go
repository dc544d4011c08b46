package resolver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brandwell/dispatch/internal/vault"
)

// Per-provider secret schemas. Stored JSON-encoded inside the encrypted blob;
// required fields are validated on decryption, never silently defaulted.

type bufferSecrets struct {
	AccessToken string `json:"accessToken"`
}

type twilioSecrets struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	FromNumber string `json:"fromNumber"`
}

type googleSecrets struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

type sendgridSecrets struct {
	APIKey    string `json:"apiKey"`
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName,omitempty"`
}

func decryptSecrets(v *vault.Vault, cred *Credential, out any) error {
	plaintext, err := v.Decrypt(cred.SecretsEnc)
	if err != nil {
		return fmt.Errorf("decrypt %s secrets: %w", cred.Provider, err)
	}
	if err := json.Unmarshal([]byte(plaintext), out); err != nil {
		return &ConfigError{Provider: cred.Provider, Reason: "secrets blob is not valid JSON"}
	}
	return nil
}

// EncryptSecrets serializes and seals a secret schema for storage. Exposed
// for the connect flows that create credentials.
func EncryptSecrets(v *vault.Vault, secrets any) (string, error) {
	data, err := json.Marshal(secrets)
	if err != nil {
		return "", fmt.Errorf("marshal secrets: %w", err)
	}
	enc, err := v.Encrypt(string(data))
	if err != nil {
		return "", fmt.Errorf("encrypt secrets: %w", err)
	}
	return enc, nil
}

// NewGoogleSecrets builds the google_business secret schema from a token
// exchange result.
func NewGoogleSecrets(accessToken, refreshToken string, expiry time.Time) any {
	return googleSecrets{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
	}
}

// NewBufferSecrets builds the buffer secret schema.
func NewBufferSecrets(accessToken string) any {
	return bufferSecrets{AccessToken: accessToken}
}

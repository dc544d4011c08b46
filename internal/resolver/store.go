// Package resolver turns a tenant + provider kind into a ready-to-call
// adapter: credential lookup, secret decryption, config validation, and
// OAuth token refresh-on-expiry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider identifies an integration kind.
type Provider string

const (
	ProviderBuffer         Provider = "buffer"
	ProviderTwilio         Provider = "twilio"
	ProviderGoogleBusiness Provider = "google_business"
	ProviderSendgrid       Provider = "sendgrid"
)

// Credential statuses.
const (
	CredentialConnected    = "connected"
	CredentialDisconnected = "disconnected"
)

var (
	// ErrNotConnected is returned when no connected credential exists for the
	// tenant + provider pair.
	ErrNotConnected = errors.New("integration not connected")
	// ErrAuthExpired is returned when the access token is expired and no
	// refresh token is available. The operator must reconnect the integration.
	ErrAuthExpired = errors.New("access token expired and no refresh token available")
	// ErrCredentialNotFound is the store-level missing row error.
	ErrCredentialNotFound = errors.New("credential not found")
)

// ConfigError marks a credential whose config or secrets are unusable:
// missing required fields, unresolvable channels, malformed shapes. Retrying
// won't help until a human fixes the integration.
type ConfigError struct {
	Provider Provider
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Provider, e.Reason)
}

// Credential is one tenant's connection to one provider. Secrets live only
// in SecretsEnc, encrypted by the vault; Config holds non-secret settings
// (channel mappings, location identifiers, API base overrides).
type Credential struct {
	ID         uuid.UUID      `json:"id"`
	OwnerID    string         `json:"owner_id"`
	BrandID    string         `json:"brand_id"`
	Provider   Provider       `json:"provider"`
	Status     string         `json:"status"`
	Config     map[string]any `json:"config"`
	SecretsEnc string         `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CredentialStore persists integration credentials keyed by
// (owner, brand, provider).
type CredentialStore interface {
	// Get returns the credential for the tenant + provider, or
	// ErrCredentialNotFound.
	Get(ctx context.Context, ownerID, brandID string, provider Provider) (*Credential, error)

	// Upsert inserts or replaces the tenant's credential for the provider.
	Upsert(ctx context.Context, cred *Credential) error

	// UpdateSecrets swaps the encrypted secrets blob after a token refresh.
	// Last write wins; each refresh is self-consistent.
	UpdateSecrets(ctx context.Context, id uuid.UUID, secretsEnc string, updatedAt time.Time) error
}

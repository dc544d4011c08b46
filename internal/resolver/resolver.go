package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/brandwell/dispatch/internal/providers"
	"github.com/brandwell/dispatch/internal/vault"
)

// refreshSkew is how far ahead of expiry a token is treated as expired.
// TODO: measure real refresh round-trip latency; 15s leaves little headroom.
const refreshSkew = 15 * time.Second

// Endpoints carries deployment-wide provider base URL overrides. A
// per-credential apiBaseUrl config entry still wins over these.
type Endpoints struct {
	Buffer         string
	Twilio         string
	GoogleBusiness string
	Sendgrid       string
}

// Resolver constructs provider adapters from stored tenant credentials.
type Resolver struct {
	store     CredentialStore
	vault     *vault.Vault
	oauth     *providers.GoogleOAuth
	endpoints Endpoints
	clock     clockwork.Clock
	logger    zerolog.Logger
}

func New(store CredentialStore, v *vault.Vault, oauth *providers.GoogleOAuth, clock clockwork.Clock, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		vault:  v,
		oauth:  oauth,
		clock:  clock,
		logger: logger,
	}
}

// SetEndpoints installs deployment-wide base URL overrides.
func (r *Resolver) SetEndpoints(endpoints Endpoints) {
	r.endpoints = endpoints
}

func (r *Resolver) baseURL(cred *Credential, fallback string) string {
	if override := configString(cred.Config, "apiBaseUrl"); override != "" {
		return override
	}
	return fallback
}

func (r *Resolver) credential(ctx context.Context, ownerID, brandID string, provider Provider) (*Credential, error) {
	cred, err := r.store.Get(ctx, ownerID, brandID, provider)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, fmt.Errorf("%s: %w", provider, ErrNotConnected)
		}
		return nil, fmt.Errorf("load %s credential: %w", provider, err)
	}
	if cred.Status != CredentialConnected {
		return nil, fmt.Errorf("%s: %w", provider, ErrNotConnected)
	}
	return cred, nil
}

// ResolveScheduler returns the Buffer adapter plus the tenant's channel map.
func (r *Resolver) ResolveScheduler(ctx context.Context, ownerID, brandID string) (*SchedulerHandle, error) {
	cred, err := r.credential(ctx, ownerID, brandID, ProviderBuffer)
	if err != nil {
		return nil, err
	}

	var secrets bufferSecrets
	if err := decryptSecrets(r.vault, cred, &secrets); err != nil {
		return nil, err
	}
	if secrets.AccessToken == "" {
		return nil, &ConfigError{Provider: ProviderBuffer, Reason: "missing access token"}
	}

	channels := resolveChannels(configChannelMap(cred.Config), configProfiles(cred.Config))

	return &SchedulerHandle{
		Provider: providers.NewBuffer(secrets.AccessToken, r.baseURL(cred, r.endpoints.Buffer)),
		channels: channels,
	}, nil
}

// ResolveSms returns the Twilio adapter.
func (r *Resolver) ResolveSms(ctx context.Context, ownerID, brandID string) (providers.SmsProvider, error) {
	cred, err := r.credential(ctx, ownerID, brandID, ProviderTwilio)
	if err != nil {
		return nil, err
	}

	var secrets twilioSecrets
	if err := decryptSecrets(r.vault, cred, &secrets); err != nil {
		return nil, err
	}
	if secrets.AccountSID == "" || secrets.AuthToken == "" {
		return nil, &ConfigError{Provider: ProviderTwilio, Reason: "missing account SID or auth token"}
	}
	if secrets.FromNumber == "" {
		return nil, &ConfigError{Provider: ProviderTwilio, Reason: "missing sending number"}
	}

	return providers.NewTwilio(secrets.AccountSID, secrets.AuthToken, secrets.FromNumber, r.baseURL(cred, r.endpoints.Twilio)), nil
}

// ResolveGbp returns the Google Business adapter, refreshing the access token
// first when it is at or past expiry (minus skew). The refreshed credential
// is re-encrypted and persisted before the adapter is built.
func (r *Resolver) ResolveGbp(ctx context.Context, ownerID, brandID string) (providers.GbpProvider, error) {
	cred, err := r.credential(ctx, ownerID, brandID, ProviderGoogleBusiness)
	if err != nil {
		return nil, err
	}

	var secrets googleSecrets
	if err := decryptSecrets(r.vault, cred, &secrets); err != nil {
		return nil, err
	}
	if secrets.AccessToken == "" {
		return nil, &ConfigError{Provider: ProviderGoogleBusiness, Reason: "missing access token"}
	}

	now := r.clock.Now()
	if !secrets.Expiry.After(now.Add(refreshSkew)) {
		if secrets.RefreshToken == "" {
			return nil, fmt.Errorf("%s: %w", ProviderGoogleBusiness, ErrAuthExpired)
		}

		token, err := r.oauth.Refresh(ctx, secrets.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("refresh google business token: %w", err)
		}

		secrets.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			secrets.RefreshToken = token.RefreshToken
		}
		secrets.Expiry = token.Expiry(now)

		enc, err := EncryptSecrets(r.vault, secrets)
		if err != nil {
			return nil, err
		}
		if err := r.store.UpdateSecrets(ctx, cred.ID, enc, now); err != nil {
			return nil, fmt.Errorf("persist refreshed credential: %w", err)
		}

		r.logger.Info().
			Str("owner_id", ownerID).
			Str("brand_id", brandID).
			Time("new_expiry", secrets.Expiry).
			Msg("refreshed google business access token")
	}

	locationName := configString(cred.Config, "locationName")
	if locationName == "" {
		return nil, &ConfigError{Provider: ProviderGoogleBusiness, Reason: "missing location name"}
	}

	return providers.NewGoogleBusiness(secrets.AccessToken, locationName, r.baseURL(cred, r.endpoints.GoogleBusiness)), nil
}

// ResolveEmail returns the SendGrid adapter.
func (r *Resolver) ResolveEmail(ctx context.Context, ownerID, brandID string) (providers.EmailProvider, error) {
	cred, err := r.credential(ctx, ownerID, brandID, ProviderSendgrid)
	if err != nil {
		return nil, err
	}

	var secrets sendgridSecrets
	if err := decryptSecrets(r.vault, cred, &secrets); err != nil {
		return nil, err
	}
	if secrets.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderSendgrid, Reason: "missing API key"}
	}
	if secrets.FromEmail == "" {
		return nil, &ConfigError{Provider: ProviderSendgrid, Reason: "missing from address"}
	}

	return providers.NewSendgrid(secrets.APIKey, secrets.FromEmail, secrets.FromName, r.baseURL(cred, r.endpoints.Sendgrid)), nil
}

func configString(config map[string]any, key string) string {
	if config == nil {
		return ""
	}
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func configChannelMap(config map[string]any) map[string]string {
	out := map[string]string{}
	raw, ok := config["channels"].(map[string]any)
	if !ok {
		return out
	}
	for platform, v := range raw {
		if id, ok := v.(string); ok {
			out[platform] = id
		}
	}
	return out
}

func configProfiles(config map[string]any) []providers.BufferProfile {
	raw, ok := config["profiles"].([]any)
	if !ok {
		return nil
	}
	profiles := make([]providers.BufferProfile, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		profile := providers.BufferProfile{}
		if id, ok := obj["id"].(string); ok {
			profile.ID = id
		}
		if service, ok := obj["service"].(string); ok {
			profile.Service = service
		}
		if profile.ID != "" {
			profiles = append(profiles, profile)
		}
	}
	return profiles
}

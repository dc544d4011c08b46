// Package oauth implements the credential connect flows: signed-state
// lifecycle for the Google Business authorization-code handshake, and the
// token-based Buffer connect that snapshots profiles for channel resolution.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/brandwell/dispatch/internal/providers"
	"github.com/brandwell/dispatch/internal/resolver"
	"github.com/brandwell/dispatch/internal/vault"
)

// DefaultMaxStateAge bounds how long a state token stays valid between the
// authorize redirect and the callback.
const DefaultMaxStateAge = 900 * time.Second

var (
	// ErrStateExpired is returned when a state token's issuedAt is older than
	// the freshness window.
	ErrStateExpired = errors.New("oauth state token expired")
	// ErrInvalidState is returned for state tokens that verify but do not
	// carry a usable payload.
	ErrInvalidState = errors.New("oauth state token invalid")
)

// StatePayload is the tamper-evident capsule carried through the handshake.
type StatePayload struct {
	UserID   string `json:"userId"`
	BrandID  string `json:"brandId"`
	IssuedAt int64  `json:"issuedAt"`
}

// BufferClient is the connect-time slice of the Buffer adapter.
type BufferClient interface {
	FetchProfiles(ctx context.Context) ([]providers.BufferProfile, error)
}

// NewBufferClient constructs the Buffer client used during connect.
// Swappable in tests.
type NewBufferClient func(accessToken string) BufferClient

// Service owns the connect and callback flows.
type Service struct {
	vault       *vault.Vault
	creds       resolver.CredentialStore
	google      *providers.GoogleOAuth
	newBuffer   NewBufferClient
	clock       clockwork.Clock
	maxStateAge time.Duration
	logger      zerolog.Logger
}

func NewService(v *vault.Vault, creds resolver.CredentialStore, google *providers.GoogleOAuth, newBuffer NewBufferClient, clock clockwork.Clock, logger zerolog.Logger) *Service {
	if newBuffer == nil {
		newBuffer = func(accessToken string) BufferClient {
			return providers.NewBuffer(accessToken, "")
		}
	}
	return &Service{
		vault:       v,
		creds:       creds,
		google:      google,
		newBuffer:   newBuffer,
		clock:       clock,
		maxStateAge: DefaultMaxStateAge,
		logger:      logger,
	}
}

// SetMaxStateAge overrides the freshness window.
func (s *Service) SetMaxStateAge(maxAge time.Duration) {
	s.maxStateAge = maxAge
}

// BuildAuthorizeURL signs a fresh state capsule and returns the Google
// consent URL carrying it.
func (s *Service) BuildAuthorizeURL(userID, brandID string) (string, error) {
	payload, err := json.Marshal(StatePayload{
		UserID:   userID,
		BrandID:  brandID,
		IssuedAt: s.clock.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal state payload: %w", err)
	}

	return s.google.AuthorizeURL(s.vault.SignState(payload)), nil
}

// VerifyState checks the signature and the freshness window and returns the
// capsule. The vault validates the signature; the age check lives here.
func (s *Service) VerifyState(token string) (*StatePayload, error) {
	payload, err := s.vault.VerifyState(token)
	if err != nil {
		return nil, err
	}

	var state StatePayload
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, ErrInvalidState
	}
	if state.UserID == "" || state.BrandID == "" {
		return nil, ErrInvalidState
	}

	age := s.clock.Now().Unix() - state.IssuedAt
	if age < 0 || time.Duration(age)*time.Second > s.maxStateAge {
		return nil, ErrStateExpired
	}

	return &state, nil
}

// CompleteAuthorization verifies the state, exchanges the code for tokens,
// and persists the encrypted google_business credential. Returns the tenant
// identity carried by the state.
func (s *Service) CompleteAuthorization(ctx context.Context, code, stateToken string) (*StatePayload, error) {
	state, err := s.VerifyState(stateToken)
	if err != nil {
		return nil, err
	}

	token, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	now := s.clock.Now()
	enc, err := resolver.EncryptSecrets(s.vault,
		resolver.NewGoogleSecrets(token.AccessToken, token.RefreshToken, token.Expiry(now)))
	if err != nil {
		return nil, err
	}

	cred := s.existingOrNew(ctx, state.UserID, state.BrandID, resolver.ProviderGoogleBusiness, now)
	cred.Status = resolver.CredentialConnected
	cred.SecretsEnc = enc
	cred.UpdatedAt = now

	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist google business credential: %w", err)
	}

	s.logger.Info().
		Str("owner_id", state.UserID).
		Str("brand_id", state.BrandID).
		Msg("google business integration connected")

	return state, nil
}

// ConnectBuffer stores a Buffer access token and snapshots the tenant's
// connected profiles into the credential config for later channel backfill.
func (s *Service) ConnectBuffer(ctx context.Context, ownerID, brandID, accessToken string) error {
	if accessToken == "" {
		return &resolver.ConfigError{Provider: resolver.ProviderBuffer, Reason: "missing access token"}
	}

	profiles, err := s.newBuffer(accessToken).FetchProfiles(ctx)
	if err != nil {
		return fmt.Errorf("fetch buffer profiles: %w", err)
	}

	enc, err := resolver.EncryptSecrets(s.vault, resolver.NewBufferSecrets(accessToken))
	if err != nil {
		return err
	}

	now := s.clock.Now()
	cred := s.existingOrNew(ctx, ownerID, brandID, resolver.ProviderBuffer, now)
	cred.Status = resolver.CredentialConnected
	cred.SecretsEnc = enc
	cred.UpdatedAt = now

	if cred.Config == nil {
		cred.Config = map[string]any{}
	}
	profileList := make([]any, 0, len(profiles))
	for _, p := range profiles {
		profileList = append(profileList, map[string]any{"id": p.ID, "service": p.Service})
	}
	cred.Config["profiles"] = profileList

	if err := s.creds.Upsert(ctx, cred); err != nil {
		return fmt.Errorf("persist buffer credential: %w", err)
	}

	s.logger.Info().
		Str("owner_id", ownerID).
		Str("brand_id", brandID).
		Int("profiles", len(profiles)).
		Msg("buffer integration connected")

	return nil
}

// existingOrNew keeps the stored config and ID when reconnecting.
func (s *Service) existingOrNew(ctx context.Context, ownerID, brandID string, provider resolver.Provider, now time.Time) *resolver.Credential {
	if cred, err := s.creds.Get(ctx, ownerID, brandID, provider); err == nil {
		return cred
	}
	return &resolver.Credential{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		BrandID:   brandID,
		Provider:  provider,
		CreatedAt: now,
	}
}

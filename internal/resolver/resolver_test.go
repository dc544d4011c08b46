package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwell/dispatch/internal/providers"
	"github.com/brandwell/dispatch/internal/vault"
)

const testVaultSecret = "unit-test-vault-secret-0123456789abcdef"

type fixture struct {
	store *MemoryCredentialStore
	vault *vault.Vault
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, tokenBaseURL string) (*Resolver, *fixture) {
	t.Helper()

	v, err := vault.New(testVaultSecret)
	require.NoError(t, err)

	f := &fixture{
		store: NewMemoryCredentialStore(),
		vault: v,
		clock: clockwork.NewFakeClock(),
	}

	oauth := providers.NewGoogleOAuth("cid", "csecret", "https://app.example/callback", tokenBaseURL)
	r := New(f.store, v, oauth, f.clock, zerolog.Nop())
	return r, f
}

func (f *fixture) seed(t *testing.T, provider Provider, config map[string]any, secrets any) *Credential {
	t.Helper()

	enc, err := EncryptSecrets(f.vault, secrets)
	require.NoError(t, err)

	cred := &Credential{
		ID:         uuid.New(),
		OwnerID:    "owner-1",
		BrandID:    "brand-1",
		Provider:   provider,
		Status:     CredentialConnected,
		Config:     config,
		SecretsEnc: enc,
		CreatedAt:  f.clock.Now(),
		UpdatedAt:  f.clock.Now(),
	}
	require.NoError(t, f.store.Upsert(context.Background(), cred))
	return cred
}

func TestResolve_NotConnected(t *testing.T) {
	t.Parallel()

	r, _ := newFixture(t, "")

	_, err := r.ResolveSms(context.Background(), "owner-1", "brand-1")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestResolve_DisconnectedCredential(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "")
	cred := f.seed(t, ProviderTwilio, nil, twilioSecrets{AccountSID: "AC1", AuthToken: "tok", FromNumber: "+1555"})
	cred.Status = CredentialDisconnected
	require.NoError(t, f.store.Upsert(context.Background(), cred))

	_, err := r.ResolveSms(context.Background(), "owner-1", "brand-1")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestResolveSms_MissingSecretFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secrets twilioSecrets
		reason  string
	}{
		{
			name:    "no auth token",
			secrets: twilioSecrets{AccountSID: "AC1", FromNumber: "+1555"},
			reason:  "auth token",
		},
		{
			name:    "no from number",
			secrets: twilioSecrets{AccountSID: "AC1", AuthToken: "tok"},
			reason:  "sending number",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, f := newFixture(t, "")
			f.seed(t, ProviderTwilio, nil, tt.secrets)

			_, err := r.ResolveSms(context.Background(), "owner-1", "brand-1")

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, cfgErr.Reason, tt.reason)
		})
	}
}

func TestResolveScheduler_ChannelResolution(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "")
	f.seed(t, ProviderBuffer, map[string]any{
		"channels": map[string]any{"instagram": "explicit-ig"},
		"profiles": []any{
			map[string]any{"id": "p-ig", "service": "instagram_business"},
			map[string]any{"id": "p-fb", "service": "facebook_page"},
			map[string]any{"id": "p-li", "service": "linkedin"},
		},
	}, bufferSecrets{AccessToken: "tok"})

	handle, err := r.ResolveScheduler(context.Background(), "owner-1", "brand-1")
	require.NoError(t, err)

	// Explicit mapping wins over the matching profile.
	ig, err := handle.ChannelFor("instagram")
	require.NoError(t, err)
	assert.Equal(t, "explicit-ig", ig)

	// Profiles backfill unmapped platforms by service substring.
	fb, err := handle.ChannelFor("facebook")
	require.NoError(t, err)
	assert.Equal(t, "p-fb", fb)

	// Unmatched profiles land in the "other" bucket.
	other, err := handle.ChannelFor("other")
	require.NoError(t, err)
	assert.Equal(t, "p-li", other)

	// No channel for the platform is a configuration error, not a guess.
	_, err = handle.ChannelFor("tiktok")
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "tiktok")
}

func TestResolveGbp_FreshTokenSkipsRefresh(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "http://unused.invalid")
	f.seed(t, ProviderGoogleBusiness,
		map[string]any{"locationName": "accounts/1/locations/2"},
		googleSecrets{
			AccessToken:  "live-token",
			RefreshToken: "refresh-1",
			Expiry:       f.clock.Now().Add(time.Hour),
		})

	adapter, err := r.ResolveGbp(context.Background(), "owner-1", "brand-1")
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

func TestResolveGbp_RefreshOnExpiry(t *testing.T) {
	t.Parallel()

	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		refreshCalls++
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", req.PostForm.Get("refresh_token"))
		io.WriteString(w, `{"access_token":"fresh-token","expires_in":3600}`)
	}))
	defer srv.Close()

	r, f := newFixture(t, srv.URL)
	cred := f.seed(t, ProviderGoogleBusiness,
		map[string]any{"locationName": "accounts/1/locations/2"},
		googleSecrets{
			AccessToken:  "stale-token",
			RefreshToken: "refresh-1",
			// Inside the skew window: treated as expired.
			Expiry: f.clock.Now().Add(10 * time.Second),
		})

	_, err := r.ResolveGbp(context.Background(), "owner-1", "brand-1")
	require.NoError(t, err)
	assert.Equal(t, 1, refreshCalls)

	// The refreshed credential is persisted re-encrypted, keeping the old
	// refresh token since Google did not return a new one.
	stored, err := f.store.Get(context.Background(), "owner-1", "brand-1", ProviderGoogleBusiness)
	require.NoError(t, err)
	assert.NotEqual(t, cred.SecretsEnc, stored.SecretsEnc)

	var persisted googleSecrets
	require.NoError(t, decryptSecrets(f.vault, stored, &persisted))
	assert.Equal(t, "fresh-token", persisted.AccessToken)
	assert.Equal(t, "refresh-1", persisted.RefreshToken)
	assert.Equal(t, f.clock.Now().Add(time.Hour), persisted.Expiry)
}

func TestResolveGbp_ExpiredWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "http://unused.invalid")
	f.seed(t, ProviderGoogleBusiness,
		map[string]any{"locationName": "accounts/1/locations/2"},
		googleSecrets{
			AccessToken: "stale-token",
			Expiry:      f.clock.Now().Add(-time.Minute),
		})

	_, err := r.ResolveGbp(context.Background(), "owner-1", "brand-1")
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestResolveGbp_MissingLocation(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "")
	f.seed(t, ProviderGoogleBusiness, nil, googleSecrets{
		AccessToken: "live-token",
		Expiry:      f.clock.Now().Add(time.Hour),
	})

	_, err := r.ResolveGbp(context.Background(), "owner-1", "brand-1")

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "location")
}

func TestResolveEmail_TamperedSecrets(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "")
	cred := f.seed(t, ProviderSendgrid, nil, sendgridSecrets{APIKey: "key", FromEmail: "a@b.c"})

	cred.SecretsEnc = "not.a.blob"
	require.NoError(t, f.store.Upsert(context.Background(), cred))

	_, err := r.ResolveEmail(context.Background(), "owner-1", "brand-1")
	assert.ErrorIs(t, err, vault.ErrMalformedCiphertext)
}

func TestResolveEmail_OK(t *testing.T) {
	t.Parallel()

	r, f := newFixture(t, "")
	f.seed(t, ProviderSendgrid, nil, sendgridSecrets{APIKey: "key", FromEmail: "noreply@brand.example"})

	adapter, err := r.ResolveEmail(context.Background(), "owner-1", "brand-1")
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}

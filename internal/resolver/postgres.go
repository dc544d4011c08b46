package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCredentialStore persists credentials in integration_credentials,
// uniquely keyed by (owner_id, brand_id, provider).
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

func (s *PostgresCredentialStore) Get(ctx context.Context, ownerID, brandID string, provider Provider) (*Credential, error) {
	query := `
		SELECT id, owner_id, brand_id, provider, status, config, secrets_enc, created_at, updated_at
		FROM integration_credentials
		WHERE owner_id = $1 AND brand_id = $2 AND provider = $3
	`

	var (
		cred       Credential
		prov       string
		configJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, ownerID, brandID, string(provider)).Scan(
		&cred.ID,
		&cred.OwnerID,
		&cred.BrandID,
		&prov,
		&cred.Status,
		&configJSON,
		&cred.SecretsEnc,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	cred.Provider = Provider(prov)
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &cred.Config); err != nil {
			return nil, fmt.Errorf("unmarshal credential config: %w", err)
		}
	}
	return &cred, nil
}

func (s *PostgresCredentialStore) Upsert(ctx context.Context, cred *Credential) error {
	configJSON, err := json.Marshal(cred.Config)
	if err != nil {
		return fmt.Errorf("marshal credential config: %w", err)
	}

	query := `
		INSERT INTO integration_credentials (id, owner_id, brand_id, provider, status, config, secrets_enc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, brand_id, provider) DO UPDATE
		SET status = EXCLUDED.status,
		    config = EXCLUDED.config,
		    secrets_enc = EXCLUDED.secrets_enc,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		cred.ID,
		cred.OwnerID,
		cred.BrandID,
		string(cred.Provider),
		cred.Status,
		configJSON,
		cred.SecretsEnc,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *PostgresCredentialStore) UpdateSecrets(ctx context.Context, id uuid.UUID, secretsEnc string, updatedAt time.Time) error {
	query := `
		UPDATE integration_credentials
		SET secrets_enc = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, secretsEnc, updatedAt)
	if err != nil {
		return fmt.Errorf("update credential secrets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type credentialKey struct {
	ownerID  string
	brandID  string
	provider Provider
}

// MemoryCredentialStore is an in-memory CredentialStore for tests and local
// development.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	creds map[credentialKey]*Credential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[credentialKey]*Credential),
	}
}

func (s *MemoryCredentialStore) Get(ctx context.Context, ownerID, brandID string, provider Provider) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[credentialKey{ownerID, brandID, provider}]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cp := *cred
	return &cp, nil
}

func (s *MemoryCredentialStore) Upsert(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cred
	s.creds[credentialKey{cred.OwnerID, cred.BrandID, cred.Provider}] = &cp
	return nil
}

func (s *MemoryCredentialStore) UpdateSecrets(ctx context.Context, id uuid.UUID, secretsEnc string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cred := range s.creds {
		if cred.ID == id {
			cred.SecretsEnc = secretsEnc
			cred.UpdatedAt = updatedAt
			return nil
		}
	}
	return ErrCredentialNotFound
}

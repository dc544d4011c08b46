// Package vault protects provider secrets at rest and signs short-lived
// OAuth handshake state. It offers authenticated symmetric encryption
// (AES-256-GCM) and HMAC-SHA256 detached signatures over opaque payloads.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const minSecretLen = 32

var (
	// ErrSecretTooShort is returned when the vault secret has insufficient entropy.
	ErrSecretTooShort = errors.New("vault secret must be at least 32 characters")
	// ErrMalformedCiphertext is returned when an encrypted blob does not have
	// the expected nonce.ciphertext.tag shape.
	ErrMalformedCiphertext = errors.New("malformed encrypted payload")
	// ErrDecryptFailed is returned when the authentication tag does not verify
	// (tampered data or wrong key).
	ErrDecryptFailed = errors.New("decryption failed: authentication error")
	// ErrBadSignature is returned when a signed state token fails verification.
	ErrBadSignature = errors.New("state signature verification failed")
)

// Vault derives its cipher and signing keys from a single high-entropy secret.
// The raw secret is never used directly as key material.
type Vault struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// New derives the AES-256 key as SHA-256 of the supplied secret and fails
// fast if the secret is shorter than 32 characters.
func New(secret string) (*Vault, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Vault{
		aead:    aead,
		hmacKey: key[:],
	}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce).base64(ciphertext).base64(tag). Two calls with the same
// plaintext produce different outputs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// GCM appends the tag to the ciphertext; store them as separate segments
	// so the blob is self-describing.
	tagStart := len(sealed) - v.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(tag),
	}, "."), nil
}

// Decrypt reverses Encrypt. A blob that does not split into three valid
// base64 segments fails with ErrMalformedCiphertext; a tag mismatch fails
// with ErrDecryptFailed. No partial plaintext is ever returned.
func (v *Vault) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ".")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	tag, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	if len(nonce) != v.aead.NonceSize() || len(tag) != v.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// SignState returns base64url(payload) + "." + base64url(HMAC-SHA256(payload)).
// The vault is agnostic to the payload schema; freshness windows are the
// caller's concern.
func (v *Vault) SignState(payload []byte) string {
	mac := hmac.New(sha256.New, v.hmacKey)
	mac.Write(payload)

	return base64.RawURLEncoding.EncodeToString(payload) +
		"." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyState recomputes the HMAC over the embedded payload and compares it
// in constant time. Returns the payload on success.
func (v *Vault) VerifyState(token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrBadSignature
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrBadSignature
	}

	mac := hmac.New(sha256.New, v.hmacKey)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, ErrBadSignature
	}

	return payload, nil
}

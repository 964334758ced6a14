// Package fingerprint turns raw password input into the opaque encrypted
// fingerprint the registry stores. The production system would swap in a real
// homomorphic scheme; the registry only requires that output is text-safe and
// that two calls with the same input may differ.
package fingerprint

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypter is the pluggable encryption collaborator.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Version prefix lets the sealed format evolve without breaking stored
// fingerprints.
const sealedPrefix = "v1"

// Sealer encrypts plaintext under XChaCha20-Poly1305 with a random nonce and
// prepends a keyed blind-index digest. The random nonce makes the full output
// non-deterministic; the digest gives matchers a stable handle without ever
// exposing the plaintext.
type Sealer struct {
	aeadKey   []byte
	digestKey []byte
}

// NewSealer derives the sealing and digest keys from a single master key.
func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("master key is required")
	}
	aeadKey := deriveKey(masterKey, "seal")
	digestKey := deriveKey(masterKey, "digest")
	return &Sealer{aeadKey: aeadKey, digestKey: digestKey}, nil
}

func (s *Sealer) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.aeadKey)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return strings.Join([]string{
		sealedPrefix,
		Digest(s.digestKey, plaintext),
		base64.RawURLEncoding.EncodeToString(sealed),
	}, ":"), nil
}

// Digest computes the keyed blind-index digest for a plaintext.
func Digest(digestKey []byte, plaintext string) string {
	mac := hmac.New(sha256.New, digestKey)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// DigestOf extracts the blind-index digest from a sealed fingerprint.
func DigestOf(sealed string) (string, bool) {
	parts := strings.SplitN(sealed, ":", 3)
	if len(parts) != 3 || parts[0] != sealedPrefix || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// DigestKey exposes the sealer's digest key so corpus builders can hash known
// breached inputs consistently.
func (s *Sealer) DigestKey() []byte {
	out := make([]byte, len(s.digestKey))
	copy(out, s.digestKey)
	return out
}

func deriveKey(master []byte, label string) []byte {
	mac := hmac.New(sha256.New, master)
	mac.Write([]byte(label))
	return mac.Sum(nil)[:chacha20poly1305.KeySize]
}

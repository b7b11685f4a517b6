// Package pii encrypts personally identifiable fields at rest.
//
// Blobs are base64(nonce ‖ tag ‖ ciphertext) under AES-256-GCM with a fresh
// 96-bit nonce per call. The lookup hash is an HMAC over a fixed prefix of the
// plaintext and exists only for duplicate detection; it is not reversible.
package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

// KeyDerivation selects how the AES key is derived from the configured secret.
type KeyDerivation string

const (
	// LegacySHA256 is key = SHA-256(secret). Existing records were written with it.
	LegacySHA256 KeyDerivation = "sha256"
	// HKDFSHA256 derives the key with HKDF. Records written under LegacySHA256
	// cannot be read with it; switching requires re-encrypting every blob.
	HKDFSHA256 KeyDerivation = "hkdf"
)

const (
	MaxPlaintextBytes = 1024

	nonceSize = 12
	tagSize   = 16
	keySize   = 32

	hkdfInfo = "contracts/pii/aes-256-gcm/v1"
)

var (
	ErrDecrypt           = apperr.New(apperr.KindDecrypt, "decrypt_failed", "decryption failed")
	ErrPlaintextTooLarge = apperr.New(apperr.KindValidation, "plaintext_too_large", "plaintext exceeds 1024 bytes")
)

type Encryptor struct {
	aead       cipher.AEAD
	lookupSalt []byte
	rand       io.Reader
}

func NewEncryptor(secret, lookupSalt string, kd KeyDerivation) (*Encryptor, error) {
	if secret == "" {
		return nil, errors.New("pii: secret is required")
	}
	if lookupSalt == "" {
		return nil, errors.New("pii: lookup salt is required")
	}
	key, err := deriveKey(secret, kd)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pii: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pii: gcm: %w", err)
	}
	return &Encryptor{aead: aead, lookupSalt: []byte(lookupSalt), rand: rand.Reader}, nil
}

func deriveKey(secret string, kd KeyDerivation) ([]byte, error) {
	switch kd {
	case LegacySHA256, "":
		sum := sha256.Sum256([]byte(secret))
		return sum[:], nil
	case HKDFSHA256:
		key := make([]byte, keySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
			return nil, fmt.Errorf("pii: hkdf: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("pii: unknown key derivation %q", kd)
	}
}

// Encrypt seals plaintext and returns base64(nonce ‖ tag ‖ ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if len(plaintext) > MaxPlaintextBytes {
		return "", ErrPlaintextTooLarge
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return "", fmt.Errorf("pii: nonce: %w", err)
	}
	// GCM appends the tag after the ciphertext; the stored layout puts it first.
	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt verifies and opens a blob produced by Encrypt. Any malformed or
// tampered input returns ErrDecrypt and an empty string.
func (e *Encryptor) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecrypt.Withf("malformed base64").Wrap(err)
	}
	if len(raw) < nonceSize+tagSize {
		return "", ErrDecrypt.Withf("blob too short")
	}
	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	pt, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt.Withf("authentication failed")
	}
	return string(pt), nil
}

// LookupHash returns hex(HMAC-SHA256(salt, first prefixLen runes of value)).
// A prefixLen <= 0 hashes the whole value.
func (e *Encryptor) LookupHash(value string, prefixLen int) string {
	r := []rune(value)
	if prefixLen > 0 && len(r) > prefixLen {
		r = r[:prefixLen]
	}
	mac := hmac.New(sha256.New, e.lookupSalt)
	mac.Write([]byte(string(r)))
	return hex.EncodeToString(mac.Sum(nil))
}

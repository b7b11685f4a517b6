package pii

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

func newTestEncryptor(t *testing.T, kd KeyDerivation) *Encryptor {
	t.Helper()
	e, err := NewEncryptor("test-secret", "test-salt", kd)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	return e
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	for _, kd := range []KeyDerivation{LegacySHA256, HKDFSHA256} {
		e := newTestEncryptor(t, kd)
		for _, pt := range []string{"", "9001011234567", "한글 계좌 110-123-456789", strings.Repeat("x", MaxPlaintextBytes)} {
			blob, err := e.Encrypt(pt)
			if err != nil {
				t.Fatalf("%s Encrypt(%d bytes): %v", kd, len(pt), err)
			}
			got, err := e.Decrypt(blob)
			if err != nil {
				t.Fatalf("%s Decrypt: %v", kd, err)
			}
			if got != pt {
				t.Errorf("%s round trip mismatch for %d bytes", kd, len(pt))
			}
		}
	}
}

func TestEncrypt_Layout(t *testing.T) {
	e := newTestEncryptor(t, LegacySHA256)
	blob, _ := e.Encrypt("hello")
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("blob is not base64: %v", err)
	}
	if len(raw) != nonceSize+tagSize+len("hello") {
		t.Errorf("blob length = %d, want nonce+tag+ct = %d", len(raw), nonceSize+tagSize+5)
	}
}

func TestEncrypt_FreshNonce(t *testing.T) {
	e := newTestEncryptor(t, LegacySHA256)
	a, _ := e.Encrypt("same")
	b, _ := e.Encrypt("same")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestEncrypt_TooLarge(t *testing.T) {
	e := newTestEncryptor(t, LegacySHA256)
	_, err := e.Encrypt(strings.Repeat("x", MaxPlaintextBytes+1))
	if !errors.Is(err, ErrPlaintextTooLarge) {
		t.Fatalf("expected ErrPlaintextTooLarge, got %v", err)
	}
}

// Flipping any single byte of the stored blob must fail, never yield plaintext.
func TestDecrypt_TamperEveryByte(t *testing.T) {
	e := newTestEncryptor(t, LegacySHA256)
	blob, _ := e.Encrypt("9001011234567")
	raw, _ := base64.StdEncoding.DecodeString(blob)

	for i := range raw {
		mut := append([]byte(nil), raw...)
		mut[i] ^= 0x01
		got, err := e.Decrypt(base64.StdEncoding.EncodeToString(mut))
		if !errors.Is(err, ErrDecrypt) {
			t.Fatalf("byte %d: expected ErrDecrypt, got %v", i, err)
		}
		if got != "" {
			t.Fatalf("byte %d: returned partial plaintext %q", i, got)
		}
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	e := newTestEncryptor(t, LegacySHA256)
	cases := map[string]string{
		"not base64": "%%%",
		"too short":  base64.StdEncoding.EncodeToString(make([]byte, nonceSize+tagSize-1)),
		"empty":      "",
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.Decrypt(blob)
			if !errors.Is(err, ErrDecrypt) {
				t.Fatalf("expected ErrDecrypt, got %v", err)
			}
			if apperr.KindOf(err) != apperr.KindDecrypt {
				t.Errorf("kind = %s", apperr.KindOf(err))
			}
		})
	}
}

func TestKeyDerivation_NotInterchangeable(t *testing.T) {
	legacy := newTestEncryptor(t, LegacySHA256)
	upgraded := newTestEncryptor(t, HKDFSHA256)
	blob, _ := legacy.Encrypt("secret")
	if _, err := upgraded.Decrypt(blob); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("hkdf key must not open legacy blobs, got %v", err)
	}
}

func TestLegacyKeyIsSHA256OfSecret(t *testing.T) {
	key, _ := deriveKey("test-secret", LegacySHA256)
	want := sha256.Sum256([]byte("test-secret"))
	if string(key) != string(want[:]) {
		t.Error("legacy key derivation changed; existing records would become unreadable")
	}
}

func TestNewEncryptor_Errors(t *testing.T) {
	if _, err := NewEncryptor("", "salt", LegacySHA256); err == nil {
		t.Error("empty secret accepted")
	}
	if _, err := NewEncryptor("s", "", LegacySHA256); err == nil {
		t.Error("empty salt accepted")
	}
	if _, err := NewEncryptor("s", "salt", "rot13"); err == nil {
		t.Error("unknown derivation accepted")
	}
}

func TestLookupHash(t *testing.T) {
	e := newTestEncryptor(t, LegacySHA256)

	a := e.LookupHash("9001011234567", 7)
	b := e.LookupHash("9001011999999", 7)
	c := e.LookupHash("9001012234567", 7)
	if a != b {
		t.Error("same prefix should hash equal")
	}
	if a == c {
		t.Error("different prefix should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if strings.Contains(a, "900101") {
		t.Error("hash leaks plaintext")
	}

	other, _ := NewEncryptor("test-secret", "other-salt", LegacySHA256)
	if other.LookupHash("9001011234567", 7) == a {
		t.Error("salt must change the hash")
	}
}

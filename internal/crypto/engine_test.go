package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
)

var testSalt = []byte("\x15\xba\x81\xd7R\xd3\xf9(\xa3\xce@\x15\xf6\x92\xd7(")

// newTestEngine uses a low iteration count to keep tests fast.
func newTestEngine(t *testing.T, passphrase string) *Engine {
	t.Helper()
	e, err := NewEngine(passphrase, testSalt, 1000)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	a := DeriveKey("passphrase", testSalt, 1000, KeySize)
	b := DeriveKey("passphrase", testSalt, 1000, KeySize)
	if !bytes.Equal(a, b) {
		t.Fatal("DeriveKey should return identical keys for identical inputs")
	}
	if len(a) != KeySize {
		t.Fatalf("Expected %d byte key, got %d", KeySize, len(a))
	}

	c := DeriveKey("passphrase", []byte("other-salt"), 1000, KeySize)
	if bytes.Equal(a, c) {
		t.Error("Different salts should produce different keys")
	}
}

func TestDeriveKeyKnownVector(t *testing.T) {
	// RFC 7914 section 11, PBKDF2-HMAC-SHA256 test vector.
	got := DeriveKey("passwd", []byte("salt"), 1, 64)
	want := "55ac046e56e3089fec1691c22544b605f94185216dde0465e68b9d57c20dacbc" +
		"49ca9cccf179b645991664b39d77ef317c71b845b1e30bd509112041d3a19783"
	if hex.EncodeToString(got) != want {
		t.Errorf("DeriveKey() = %x, want %s", got, want)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := newTestEngine(t, "shared")

	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("UEsDBBQAAAAIAA=="),
		bytes.Repeat([]byte{0xAB}, 100000),
	}

	for _, p := range inputs {
		nonce, ct, err := e.Encrypt(p)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if len(nonce) != NonceSize {
			t.Fatalf("Expected %d byte nonce, got %d", NonceSize, len(nonce))
		}
		if len(ct) != len(p)+16 {
			t.Fatalf("Expected ciphertext with 16 byte tag, got %d for %d input bytes", len(ct), len(p))
		}

		got, err := e.Decrypt(nonce, ct)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("Round trip mismatch for %d byte input", len(p))
		}
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	e := newTestEngine(t, "shared")

	n1, c1, _ := e.Encrypt([]byte("same"))
	n2, c2, _ := e.Encrypt([]byte("same"))
	if bytes.Equal(n1, n2) {
		t.Error("Nonces should differ between calls")
	}
	if bytes.Equal(c1, c2) {
		t.Error("Ciphertexts should differ between calls")
	}
}

func TestDecryptDetectsEveryBitFlip(t *testing.T) {
	e := newTestEngine(t, "shared")
	nonce, ct, err := e.Encrypt([]byte("integrity matters"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for i := 0; i < len(ct)*8; i++ {
		tampered := bytes.Clone(ct)
		tampered[i/8] ^= 1 << (i % 8)

		got, err := e.Decrypt(nonce, tampered)
		if !errors.Is(err, kerrors.ErrAuthenticationFailure) {
			t.Fatalf("bit %d: expected ErrAuthenticationFailure, got %v", i, err)
		}
		if got != nil {
			t.Fatalf("bit %d: expected no plaintext on failure", i)
		}
	}
}

func TestDecryptWithWrongKeyOrNonce(t *testing.T) {
	sender := newTestEngine(t, "shared")
	other := newTestEngine(t, "different")

	nonce, ct, _ := sender.Encrypt([]byte("payload"))

	if _, err := other.Decrypt(nonce, ct); !errors.Is(err, kerrors.ErrAuthenticationFailure) {
		t.Errorf("Wrong key: expected ErrAuthenticationFailure, got %v", err)
	}

	wrongNonce := bytes.Clone(nonce)
	wrongNonce[0] ^= 0xFF
	if _, err := sender.Decrypt(wrongNonce, ct); !errors.Is(err, kerrors.ErrAuthenticationFailure) {
		t.Errorf("Wrong nonce: expected ErrAuthenticationFailure, got %v", err)
	}

	if _, err := sender.Decrypt(nonce[:8], ct); !errors.Is(err, kerrors.ErrMalformedEnvelope) {
		t.Errorf("Short nonce: expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestNewEngineFromKeyRejectsBadLength(t *testing.T) {
	if _, err := NewEngineFromKey(make([]byte, 16)); err == nil {
		t.Error("Expected error for 16 byte key")
	}
	if _, err := NewEngine("x", testSalt, 0); err == nil {
		t.Error("Expected error for zero iterations")
	}
}

func TestHash(t *testing.T) {
	const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Hash(nil); got != emptyDigest {
		t.Errorf("Hash(nil) = %s", got)
	}

	data := []byte("hello world")
	h1, h2 := Hash(data), Hash(data)
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if len(h1) != HashHexSize {
		t.Errorf("Expected %d hex chars, got %d", HashHexSize, len(h1))
	}

	changed := bytes.Clone(data)
	changed[0] = 'H'
	if Hash(changed) == h1 {
		t.Error("Single byte change should alter the digest")
	}
}

func TestHashFile(t *testing.T) {
	data := bytes.Repeat([]byte("ventas"), 20000)
	path := filepath.Join(t.TempDir(), "Ventas-01-02-2024.lima")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if got != Hash(data) {
		t.Errorf("HashFile() = %s, want %s", got, Hash(data))
	}

	if _, err := HashFile(filepath.Join(t.TempDir(), "absent")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist for a missing file, got %v", err)
	}
}

func TestHashReaderMatchesHash(t *testing.T) {
	// Larger than one chunk and not chunk aligned.
	data := bytes.Repeat([]byte("0123456789"), 1000)

	got, err := HashReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("HashReader failed: %v", err)
	}
	if got != Hash(data) {
		t.Errorf("HashReader() = %s, want %s", got, Hash(data))
	}

	got, err = HashReader(strings.NewReader(""))
	if err != nil || got != Hash(nil) {
		t.Errorf("HashReader(empty) = %s, %v", got, err)
	}
}

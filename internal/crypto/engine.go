package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length produced by DeriveKey.
	KeySize = 32

	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12

	// HashHexSize is the width of a hex-encoded SHA-256 digest.
	HashHexSize = sha256.Size * 2

	// DefaultIterations is the PBKDF2 work factor shared by all installations.
	DefaultIterations = 100000

	hashChunkSize = 4096
)

// DeriveKey stretches a passphrase with PBKDF2-HMAC-SHA256. The result is
// deterministic for identical inputs.
func DeriveKey(passphrase string, salt []byte, iterations, length int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, length, sha256.New)
}

// Engine seals and opens live-path payloads with AES-256-GCM under one
// derived key. Build it once per process and pass it to whoever needs it.
type Engine struct {
	aead cipher.AEAD
}

// NewEngine derives the shared key and prepares the AEAD.
func NewEngine(passphrase string, salt []byte, iterations int) (*Engine, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("invalid PBKDF2 iteration count %d", iterations)
	}
	return NewEngineFromKey(DeriveKey(passphrase, salt, iterations, KeySize))
}

// NewEngineFromKey builds an engine around an existing 32-byte key.
func NewEngineFromKey(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d, want %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Engine{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. The returned
// ciphertext carries the 16-byte authentication tag at its end.
func (e *Engine) Encrypt(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, e.aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt verifies the tag and returns the plaintext. A failed verification
// yields ErrAuthenticationFailure and no data.
func (e *Engine) Decrypt(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes", kerrors.ErrMalformedEnvelope, len(nonce))
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, kerrors.ErrAuthenticationFailure
	}
	return plaintext, nil
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader digests r in fixed-size chunks so memory stays bounded.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile digests the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	digest, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

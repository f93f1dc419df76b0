package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
)

const (
	// LegacyIVSize is the AES-CBC IV length at the head of a legacy envelope.
	LegacyIVSize = aes.BlockSize

	// LegacyHeaderSize covers the IV and the embedded key.
	LegacyHeaderSize = LegacyIVSize + KeySize
)

// LegacyEnvelope is the batch format: [IV 16][key 32][AES-256-CBC ciphertext].
//
// The key travels next to the data it protects, so the format gives no
// confidentiality to anyone holding the file. It is reproduced byte for byte
// for compatibility with existing servers and must not be relied on as a
// security boundary.
type LegacyEnvelope struct {
	IV         []byte
	Key        []byte
	Ciphertext []byte
}

// NewLegacyKey returns a random AES-256 key and CBC IV.
func NewLegacyKey() (key, iv []byte, err error) {
	key = make([]byte, KeySize)
	iv = make([]byte, LegacyIVSize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("generating IV: %w", err)
	}
	return key, iv, nil
}

// SealLegacy encrypts plaintext under a fresh random key and IV.
func SealLegacy(plaintext []byte) (*LegacyEnvelope, error) {
	key, iv, err := NewLegacyKey()
	if err != nil {
		return nil, err
	}

	ct, err := EncryptCBC(key, iv, plaintext)
	if err != nil {
		return nil, err
	}
	return &LegacyEnvelope{IV: iv, Key: key, Ciphertext: ct}, nil
}

// Open decrypts and unpads the envelope's ciphertext.
func (e *LegacyEnvelope) Open() ([]byte, error) {
	return DecryptCBC(e.Key, e.IV, e.Ciphertext)
}

// Marshal lays the envelope out as IV, key, ciphertext.
func (e *LegacyEnvelope) Marshal() []byte {
	out := make([]byte, 0, LegacyHeaderSize+len(e.Ciphertext))
	out = append(out, e.IV...)
	out = append(out, e.Key...)
	return append(out, e.Ciphertext...)
}

// ParseLegacy splits a legacy envelope at its fixed offsets.
func ParseLegacy(b []byte) (*LegacyEnvelope, error) {
	if len(b) < LegacyHeaderSize+aes.BlockSize {
		return nil, fmt.Errorf("%w: legacy envelope is %d bytes", kerrors.ErrMalformedEnvelope, len(b))
	}
	ct := b[LegacyHeaderSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", kerrors.ErrMalformedEnvelope)
	}
	return &LegacyEnvelope{
		IV:         bytes.Clone(b[:LegacyIVSize]),
		Key:        bytes.Clone(b[LegacyIVSize:LegacyHeaderSize]),
		Ciphertext: bytes.Clone(ct),
	}, nil
}

// EncryptCBC pads plaintext with PKCS#7 and encrypts it with AES-256-CBC.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}

	padded := PKCS7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptCBC decrypts AES-256-CBC ciphertext and strips PKCS#7 padding.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not block aligned", kerrors.ErrMalformedEnvelope)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return PKCS7Unpad(out, block.BlockSize())
}

// PKCS7Pad always appends between 1 and blockSize bytes.
func PKCS7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

// PKCS7Unpad validates and removes PKCS#7 padding.
func PKCS7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, kerrors.ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, kerrors.ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, kerrors.ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}

package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
)

func TestPKCS7(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		padLen int
	}{
		{"Empty", []byte{}, 16},
		{"OneByte", []byte{1}, 15},
		{"FullBlock", bytes.Repeat([]byte{7}, 16), 16},
		{"SeventeenBytes", bytes.Repeat([]byte{7}, 17), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			padded := PKCS7Pad(tt.input, 16)
			if len(padded) != len(tt.input)+tt.padLen {
				t.Fatalf("Expected %d padding bytes, got %d", tt.padLen, len(padded)-len(tt.input))
			}
			if int(padded[len(padded)-1]) != tt.padLen {
				t.Fatalf("Expected pad byte %d, got %d", tt.padLen, padded[len(padded)-1])
			}
			unpadded, err := PKCS7Unpad(padded, 16)
			if err != nil {
				t.Fatalf("PKCS7Unpad failed: %v", err)
			}
			if !bytes.Equal(unpadded, tt.input) {
				t.Fatalf("Unpad mismatch: got %v", unpadded)
			}
		})
	}
}

func TestPKCS7UnpadRejectsBadPadding(t *testing.T) {
	bad := [][]byte{
		{},
		bytes.Repeat([]byte{0}, 16),
		bytes.Repeat([]byte{17}, 16),
		append(bytes.Repeat([]byte{1}, 14), 3, 2),
		bytes.Repeat([]byte{1}, 15),
	}
	for i, b := range bad {
		if _, err := PKCS7Unpad(b, 16); !errors.Is(err, kerrors.ErrInvalidPadding) {
			t.Errorf("case %d: expected ErrInvalidPadding, got %v", i, err)
		}
	}
}

func TestLegacyEnvelopeLayout(t *testing.T) {
	plaintext := []byte("RmluYW56YXMgcmVwb3J0")

	env, err := SealLegacy(plaintext)
	if err != nil {
		t.Fatalf("SealLegacy failed: %v", err)
	}

	raw := env.Marshal()
	if !bytes.Equal(raw[:16], env.IV) {
		t.Error("IV must occupy bytes 0-15")
	}
	if !bytes.Equal(raw[16:48], env.Key) {
		t.Error("Key must occupy bytes 16-47")
	}
	if len(raw[48:])%16 != 0 {
		t.Error("Ciphertext must be block aligned")
	}

	parsed, err := ParseLegacy(raw)
	if err != nil {
		t.Fatalf("ParseLegacy failed: %v", err)
	}
	got, err := parsed.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Expected %q, got %q", plaintext, got)
	}
}

func TestLegacyMatchesKnownCBCVector(t *testing.T) {
	// NIST SP 800-38A F.2.5, first block of CBC-AES256.Encrypt.
	key := mustHex(t, "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	pt := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	want := mustHex(t, "f58c4c04d6e5f1ba779eabfb5f7bfbd6")

	ct, err := EncryptCBC(key, iv, pt)
	if err != nil {
		t.Fatalf("EncryptCBC failed: %v", err)
	}
	if !bytes.Equal(ct[:16], want) {
		t.Errorf("First block = %x, want %x", ct[:16], want)
	}
	if len(ct) != 32 {
		t.Errorf("Expected a full padding block, got %d bytes", len(ct))
	}
}

func TestParseLegacyRejectsShortOrUnaligned(t *testing.T) {
	if _, err := ParseLegacy(make([]byte, 50)); !errors.Is(err, kerrors.ErrMalformedEnvelope) {
		t.Errorf("Expected ErrMalformedEnvelope for short input, got %v", err)
	}
	if _, err := ParseLegacy(make([]byte, 48+20)); !errors.Is(err, kerrors.ErrMalformedEnvelope) {
		t.Errorf("Expected ErrMalformedEnvelope for unaligned input, got %v", err)
	}
}

func TestLegacyOpenWithTamperedKeyFailsPadding(t *testing.T) {
	env, err := SealLegacy([]byte("short"))
	if err != nil {
		t.Fatalf("SealLegacy failed: %v", err)
	}
	env.Key[0] ^= 0xFF

	got, err := env.Open()
	// A wrong key garbles the last block; padding almost always fails to validate.
	if err == nil && bytes.Equal(got, []byte("short")) {
		t.Fatal("Tampered key should not recover the plaintext")
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

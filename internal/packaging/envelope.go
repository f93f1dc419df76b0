package packaging

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/esicorp/securetransfer/internal/crypto"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
)

// HeaderSize is the fixed prefix of a live envelope: nonce then hex digest.
const HeaderSize = crypto.NonceSize + crypto.HashHexSize

// Envelope is the live transfer artifact:
//
//	[nonce 12][sha256 hex 64][AES-256-GCM ciphertext+tag]
//
// There is no length field; the reader relies on the fixed prefix widths.
type Envelope struct {
	Nonce      []byte
	Hash       string
	Ciphertext []byte
}

// BuildEnvelope concatenates the three fields after checking their widths.
func BuildEnvelope(nonce []byte, hashHex string, ciphertext []byte) ([]byte, error) {
	if len(nonce) != crypto.NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes", kerrors.ErrMalformedEnvelope, len(nonce))
	}
	if len(hashHex) != crypto.HashHexSize {
		return nil, fmt.Errorf("%w: hash is %d characters", kerrors.ErrMalformedEnvelope, len(hashHex))
	}

	out := make([]byte, 0, HeaderSize+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, hashHex...)
	return append(out, ciphertext...), nil
}

// Bytes frames the envelope.
func (e *Envelope) Bytes() ([]byte, error) {
	return BuildEnvelope(e.Nonce, e.Hash, e.Ciphertext)
}

// ParseEnvelope reads exactly 12 nonce bytes and 64 hash bytes; the rest is
// ciphertext. Inputs shorter than HeaderSize are ErrMalformedEnvelope.
func ParseEnvelope(b []byte) (*Envelope, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", kerrors.ErrMalformedEnvelope, len(b), HeaderSize)
	}
	return &Envelope{
		Nonce:      bytes.Clone(b[:crypto.NonceSize]),
		Hash:       string(b[crypto.NonceSize:HeaderSize]),
		Ciphertext: bytes.Clone(b[HeaderSize:]),
	}, nil
}

// WriteEnvelope frames env and writes it to path via a temporary file.
func WriteEnvelope(path string, env *Envelope) error {
	data, err := env.Bytes()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// ReadEnvelope loads and parses the envelope stored at path.
func ReadEnvelope(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
		}
		return nil, err
	}
	return ParseEnvelope(data)
}

// Seal turns archive bytes into an envelope: the archive is Base64-encoded,
// the encoded text is hashed, then encrypted.
func Seal(engine *crypto.Engine, archive []byte) (*Envelope, error) {
	encoded := []byte(base64.StdEncoding.EncodeToString(archive))

	nonce, ciphertext, err := engine.Encrypt(encoded)
	if err != nil {
		return nil, err
	}
	return &Envelope{Nonce: nonce, Hash: crypto.Hash(encoded), Ciphertext: ciphertext}, nil
}

// Opened is a decrypted, integrity-checked envelope.
type Opened struct {
	Archive      []byte
	ComputedHash string
}

// Open decrypts env and verifies its recorded digest. The digest may cover
// either the Base64 text or, for envelopes from older senders, the raw
// archive. Tag failures are ErrAuthenticationFailure, digest failures
// ErrIntegrityMismatch; neither returns data.
func Open(engine *crypto.Engine, env *Envelope) (*Opened, error) {
	encoded, err := engine.Decrypt(env.Nonce, env.Ciphertext)
	if err != nil {
		return nil, err
	}

	archive, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", kerrors.ErrMalformedEnvelope, err)
	}

	if !isHexDigest(env.Hash) {
		return nil, fmt.Errorf("%w: recorded hash is not hex", kerrors.ErrMalformedEnvelope)
	}

	computed := crypto.Hash(encoded)
	if computed != env.Hash {
		rawDigest := crypto.Hash(archive)
		if rawDigest != env.Hash {
			return nil, fmt.Errorf("%w: expected %s, computed %s", kerrors.ErrIntegrityMismatch, env.Hash, computed)
		}
		computed = rawDigest
	}

	return &Opened{Archive: archive, ComputedHash: computed}, nil
}

func isHexDigest(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil && len(s) == crypto.HashHexSize
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

package keyexchange

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	kerrors "github.com/esicorp/securetransfer/internal/errors"

	"golang.org/x/crypto/ssh"
)

// AcceptedKeyTypes lists the public key algorithms the exchange installs.
var AcceptedKeyTypes = []string{ssh.KeyAlgoRSA, ssh.KeyAlgoED25519, ssh.KeyAlgoECDSA256}

// KeyInfo describes a validated authorized_keys line.
type KeyInfo struct {
	Type    string
	Bits    int
	Comment string

	// Text is the trimmed line as received.
	Text string
	Key  ssh.PublicKey
}

// ValidatePublicKey parses an authorized_keys line and checks its type.
func ValidatePublicKey(text string) (*KeyInfo, error) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: expected \"<type> <base64> [comment]\"", kerrors.ErrInvalidPublicKey)
	}
	if !slices.Contains(AcceptedKeyTypes, fields[0]) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrUnsupportedKeyType, fields[0])
	}

	key, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPublicKey, err)
	}
	if key.Type() != fields[0] {
		return nil, fmt.Errorf("%w: declared %s but key is %s", kerrors.ErrInvalidPublicKey, fields[0], key.Type())
	}

	info := &KeyInfo{Type: key.Type(), Comment: comment, Text: text, Key: key}
	if cpk, ok := key.(ssh.CryptoPublicKey); ok {
		if rsaKey, ok := cpk.CryptoPublicKey().(*rsa.PublicKey); ok {
			info.Bits = rsaKey.N.BitLen()
		}
	}
	return info, nil
}

// Fingerprint returns SHA256:<first 16 hex>...<last 8 hex> over the key
// blob, the short form operators compare by eye.
func Fingerprint(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: missing key data", kerrors.ErrInvalidPublicKey)
	}
	blob, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrInvalidPublicKey, err)
	}
	sum := sha256.Sum256(blob)
	h := hex.EncodeToString(sum[:])
	return "SHA256:" + h[:16] + "..." + h[len(h)-8:], nil
}

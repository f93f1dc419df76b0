package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kerrors "github.com/esicorp/securetransfer/internal/errors"

	"golang.org/x/crypto/ssh"
)

const (
	DefaultBits = 4096

	PrivateKeyName = "id_rsa"
	PublicKeyName  = "id_rsa.pub"
)

// Manager owns the local RSA identity used for SFTP.
type Manager struct {
	Dir string

	// Bits is the modulus size for new keys. Zero means DefaultBits.
	Bits int

	// Comment is appended to the public key line, typically user@host.
	Comment string
}

// Keypair describes the key files on disk.
type Keypair struct {
	PrivatePath string
	PublicPath  string

	// Generated is false when existing keys were reused.
	Generated bool
}

func (m *Manager) PrivatePath() string {
	return filepath.Join(m.Dir, PrivateKeyName)
}

func (m *Manager) PublicPath() string {
	return filepath.Join(m.Dir, PublicKeyName)
}

// Exists reports whether both halves of the keypair are present.
func (m *Manager) Exists() bool {
	for _, p := range []string{m.PrivatePath(), m.PublicPath()} {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// Ensure returns the existing keypair, or generates one when either half is
// missing or force is set. New files are written to temporaries and renamed
// into place, so a failed regeneration keeps the old key.
func (m *Manager) Ensure(force bool) (*Keypair, error) {
	kp := &Keypair{PrivatePath: m.PrivatePath(), PublicPath: m.PublicPath()}
	if m.Exists() && !force {
		return kp, nil
	}

	bits := m.Bits
	if bits == 0 {
		bits = DefaultBits
	}

	if err := os.MkdirAll(m.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory at %s: %w", m.Dir, err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}

	privPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pub, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if m.Comment != "" {
		pubLine += " " + m.Comment
	}

	privTmp, err := writeTemp(m.Dir, PrivateKeyName, privPem, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	pubTmp, err := writeTemp(m.Dir, PublicKeyName, []byte(pubLine+"\n"), 0644)
	if err != nil {
		os.Remove(privTmp)
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	if err := os.Rename(privTmp, kp.PrivatePath); err != nil {
		os.Remove(privTmp)
		os.Remove(pubTmp)
		return nil, fmt.Errorf("failed to install private key: %w", err)
	}
	if err := os.Rename(pubTmp, kp.PublicPath); err != nil {
		os.Remove(pubTmp)
		return nil, fmt.Errorf("failed to install public key: %w", err)
	}

	kp.Generated = true
	return kp, nil
}

func writeTemp(dir, name string, data []byte, perm os.FileMode) (path string, err error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// PublicKeyText returns the public key line as stored.
func (m *Manager) PublicKeyText() (string, error) {
	data, err := os.ReadFile(m.PublicPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", kerrors.ErrPublicKeyNotFound, m.PublicPath())
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Signer loads the private key for SSH authentication.
func (m *Manager) Signer() (ssh.Signer, error) {
	data, err := os.ReadFile(m.PrivatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrPrivateKeyNotFound, m.PrivatePath())
		}
		return nil, err
	}
	return ParseSigner(data)
}

// ParseSigner accepts PKCS#1, PKCS#8 and OpenSSH private keys.
func ParseSigner(data []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, kerrors.ErrPassphraseRequired
		}
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
	}
	return signer, nil
}

// Fingerprint returns the OpenSSH SHA256 fingerprint of the public key.
func (m *Manager) Fingerprint() (string, error) {
	text, err := m.PublicKeyText()
	if err != nil {
		return "", err
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(text))
	if err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrInvalidPublicKey, err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

package configs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}

	salt, err := cfg.Crypto.Salt()
	if err != nil {
		t.Fatalf("Salt() failed: %v", err)
	}
	want := []byte("\x15\xba\x81\xd7R\xd3\xf9(\xa3\xce@\x15\xf6\x92\xd7(")
	if !bytes.Equal(salt, want) {
		t.Errorf("Default salt = %x, want %x", salt, want)
	}

	if cfg.Network.Port != 5000 || cfg.Network.BufferSize != 4096 {
		t.Errorf("Unexpected network defaults: %+v", cfg.Network)
	}
	if cfg.Exchange.Port != 5555 || cfg.Exchange.Timeout().Seconds() != 60 {
		t.Errorf("Unexpected exchange defaults: %+v", cfg.Exchange)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Crypto.Iterations != 100000 {
		t.Errorf("Expected default iterations, got %d", cfg.Crypto.Iterations)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
[network]
port = 6000

[sftp]
host = "files.internal"
unzip = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Network.Port != 6000 {
		t.Errorf("Expected port 6000, got %d", cfg.Network.Port)
	}
	if cfg.Network.BufferSize != 4096 {
		t.Errorf("Expected default buffer size to survive, got %d", cfg.Network.BufferSize)
	}
	if cfg.SFTP.Host != "files.internal" || !cfg.SFTP.Unzip {
		t.Errorf("Unexpected sftp section: %+v", cfg.SFTP)
	}
	if cfg.SFTP.User != "esicorp" {
		t.Errorf("Expected default sftp user, got %q", cfg.SFTP.User)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"BadSalt", "[crypto]\nsalt_hex = \"zz\"\n", "salt_hex"},
		{"ZeroIterations", "[crypto]\niterations = 0\n", "iterations"},
		{"PortOutOfRange", "[exchange]\nport = 70000\n", "exchange.port"},
		{"TinyBuffer", "[network]\nbuffer_size = 8\n", "buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnsureIdentityPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()

	id, err := EnsureIdentity(path, cfg)
	if err != nil {
		t.Fatalf("EnsureIdentity failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated identity")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Identity.UUID != id {
		t.Errorf("Expected persisted UUID %q, got %q", id, reloaded.Identity.UUID)
	}

	again, err := EnsureIdentity(path, reloaded)
	if err != nil {
		t.Fatalf("EnsureIdentity failed: %v", err)
	}
	if again != id {
		t.Errorf("EnsureIdentity should keep the existing UUID, got %q", again)
	}
}

func TestSettingsResolvesRelativePaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.SSHDir = "/etc/ssh-test"

	s := cfg.Settings(base)

	if s.TransfersPath != filepath.Join(base, "transfers") {
		t.Errorf("TransfersPath = %q", s.TransfersPath)
	}
	if s.PrivateKeyPath != filepath.Join(base, "keys", "id_rsa") {
		t.Errorf("PrivateKeyPath = %q", s.PrivateKeyPath)
	}
	if s.AuthorizedKeysPath != filepath.Join("/etc/ssh-test", "authorized_keys") {
		t.Errorf("AuthorizedKeysPath = %q", s.AuthorizedKeysPath)
	}
	if s.SFTPHostKeysPath == s.KnownHostsPath {
		t.Errorf("SFTP host keys must not share known_hosts, got %q", s.SFTPHostKeysPath)
	}
	if s.AuditLogPath != filepath.Join(base, "transfers", "audit.jsonl") {
		t.Errorf("AuditLogPath = %q", s.AuditLogPath)
	}
}

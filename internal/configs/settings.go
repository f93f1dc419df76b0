package configs

import (
	"path/filepath"
)

// Settings are the resolved filesystem locations for one run.
type Settings struct {
	TransfersPath      string
	KeysPath           string
	OutboxPath         string
	ProcessedPath      string
	SSHPath            string
	PrivateKeyPath     string
	PublicKeyPath      string
	AuthorizedKeysPath string
	KnownHostsPath     string
	SFTPHostKeysPath   string
	AuditLogPath       string
}

// Settings resolves the configured paths relative to baseDir. Absolute
// paths in the configuration are kept as is.
func (c *Config) Settings(baseDir string) *Settings {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	transfers := abs(c.Paths.Transfers)
	keys := abs(c.Paths.Keys)
	ssh := abs(c.Paths.SSHDir)

	return &Settings{
		TransfersPath:      transfers,
		KeysPath:           keys,
		OutboxPath:         abs(c.Paths.Outbox),
		ProcessedPath:      abs(c.Paths.Processed),
		SSHPath:            ssh,
		PrivateKeyPath:     filepath.Join(keys, "id_rsa"),
		PublicKeyPath:      filepath.Join(keys, "id_rsa.pub"),
		AuthorizedKeysPath: filepath.Join(ssh, "authorized_keys"),
		KnownHostsPath:     filepath.Join(ssh, "known_hosts"),
		SFTPHostKeysPath:   filepath.Join(keys, "sftp_known_hosts"),
		AuditLogPath:       filepath.Join(transfers, "audit.jsonl"),
	}
}

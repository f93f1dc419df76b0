package configs

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "securetransfer.toml"

type Config struct {
	Identity Identity       `toml:"identity"`
	Crypto   CryptoConfig   `toml:"crypto"`
	Network  NetworkConfig  `toml:"network"`
	SFTP     SFTPConfig     `toml:"sftp"`
	Exchange ExchangeConfig `toml:"exchange"`
	Paths    PathsConfig    `toml:"paths"`
}

type Identity struct {
	UUID string `toml:"uuid"`
}

// CryptoConfig holds the inputs of the shared symmetric key derivation.
// Every installation that must read another's envelopes needs the same values.
type CryptoConfig struct {
	Passphrase string `toml:"passphrase"`
	SaltHex    string `toml:"salt_hex"`
	Iterations int    `toml:"iterations"`
}

type NetworkConfig struct {
	Port               int   `toml:"port"`
	BufferSize         int   `toml:"buffer_size"`
	MaxPayloadBytes    int64 `toml:"max_payload_bytes"`
	DialTimeoutSeconds int   `toml:"dial_timeout_seconds"`
}

type SFTPConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	User           string `toml:"user"`
	RemotePath     string `toml:"remote_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Unzip          bool   `toml:"unzip"`
}

type ExchangeConfig struct {
	Port                 int `toml:"port"`
	TimeoutSeconds       int `toml:"timeout_seconds"`
	AcceptTimeoutSeconds int `toml:"accept_timeout_seconds"`
}

type PathsConfig struct {
	Transfers string `toml:"transfers"`
	Keys      string `toml:"keys"`
	Outbox    string `toml:"outbox"`
	Processed string `toml:"processed"`
	SSHDir    string `toml:"ssh_dir"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	sshDir := ".ssh"
	if home, err := os.UserHomeDir(); err == nil {
		sshDir = filepath.Join(home, ".ssh")
	}

	return &Config{
		Crypto: CryptoConfig{
			Passphrase: "EsicorpPasswordSegura2024!",
			SaltHex:    "15ba81d752d3f928a3ce4015f692d728",
			Iterations: 100000,
		},
		Network: NetworkConfig{
			Port:               5000,
			BufferSize:         4096,
			MaxPayloadBytes:    4 << 30,
			DialTimeoutSeconds: 10,
		},
		SFTP: SFTPConfig{
			Host:           "192.168.1.100",
			Port:           22,
			User:           "esicorp",
			RemotePath:     "/home/esicorp/upload/",
			TimeoutSeconds: 10,
		},
		Exchange: ExchangeConfig{
			Port:                 5555,
			TimeoutSeconds:       60,
			AcceptTimeoutSeconds: 300,
		},
		Paths: PathsConfig{
			Transfers: "transfers",
			Keys:      "keys",
			Outbox:    "salida",
			Processed: "procesados",
			SSHDir:    sshDir,
		},
	}
}

// Salt decodes the configured PBKDF2 salt.
func (c CryptoConfig) Salt() ([]byte, error) {
	salt, err := hex.DecodeString(c.SaltHex)
	if err != nil {
		return nil, fmt.Errorf("invalid salt_hex: %w", err)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("salt_hex must not be empty")
	}
	return salt, nil
}

func (n NetworkConfig) DialTimeout() time.Duration {
	return time.Duration(n.DialTimeoutSeconds) * time.Second
}

func (s SFTPConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (e ExchangeConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func (e ExchangeConfig) AcceptTimeout() time.Duration {
	return time.Duration(e.AcceptTimeoutSeconds) * time.Second
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Crypto.Passphrase == "" {
		return fmt.Errorf("crypto.passphrase must not be empty")
	}
	if _, err := c.Crypto.Salt(); err != nil {
		return err
	}
	if c.Crypto.Iterations < 1 {
		return fmt.Errorf("crypto.iterations must be positive, got %d", c.Crypto.Iterations)
	}
	for name, port := range map[string]int{
		"network.port":  c.Network.Port,
		"sftp.port":     c.SFTP.Port,
		"exchange.port": c.Exchange.Port,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.Network.BufferSize < 64 {
		return fmt.Errorf("network.buffer_size too small: %d", c.Network.BufferSize)
	}
	if c.Network.MaxPayloadBytes < 1 {
		return fmt.Errorf("network.max_payload_bytes must be positive")
	}
	return nil
}

// ResolvePath picks the config file to use: an explicit path wins, then
// FileName in the working directory, then the user config directory.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "securetransfer", "config.toml")
	}
	return FileName
}

// Load reads the config file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if err := LoadTOML(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if err := SaveTOML(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// EnsureIdentity assigns an installation UUID on first use and persists it.
func EnsureIdentity(path string, cfg *Config) (string, error) {
	if cfg.Identity.UUID != "" {
		return cfg.Identity.UUID, nil
	}

	cfg.Identity.UUID = uuid.New().String()
	if err := Save(path, cfg); err != nil {
		return "", err
	}
	return cfg.Identity.UUID, nil
}

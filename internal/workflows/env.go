package workflows

import (
	"fmt"

	"github.com/esicorp/securetransfer/internal/audit"
	"github.com/esicorp/securetransfer/internal/configs"
	"github.com/esicorp/securetransfer/internal/crypto"
	"github.com/esicorp/securetransfer/internal/keys"
	logger "github.com/esicorp/securetransfer/internal/logging"
	"github.com/esicorp/securetransfer/internal/utils"
)

// Env carries the state every workflow needs for one run. It is built once
// by the root command and passed explicitly.
type Env struct {
	Config   *configs.Config
	Settings *configs.Settings
	Engine   *crypto.Engine
	Identity utils.HostIdentity
	Trail    *audit.Trail
	Logger   logger.Logger
}

// NewEnv derives the symmetric key from cfg and resolves paths against baseDir.
func NewEnv(cfg *configs.Config, baseDir string, log logger.Logger) (*Env, error) {
	salt, err := cfg.Crypto.Salt()
	if err != nil {
		return nil, err
	}

	engine, err := crypto.NewEngine(cfg.Crypto.Passphrase, salt, cfg.Crypto.Iterations)
	if err != nil {
		return nil, fmt.Errorf("deriving transfer key: %w", err)
	}

	settings := cfg.Settings(baseDir)
	identity := utils.LocalIdentity()

	return &Env{
		Config:   cfg,
		Settings: settings,
		Engine:   engine,
		Identity: identity,
		Trail: &audit.Trail{
			Path: settings.AuditLogPath,
			User: identity.User,
			Host: identity.Hostname,
			UUID: cfg.Identity.UUID,
		},
		Logger: log,
	}, nil
}

// Keys returns the manager for the local SFTP identity.
func (e *Env) Keys() *keys.Manager {
	return &keys.Manager{
		Dir:     e.Settings.KeysPath,
		Comment: e.Identity.User + "@" + e.Identity.Hostname,
	}
}

package workflows

import (
	"context"

	"github.com/esicorp/securetransfer/internal/packaging"
	"github.com/esicorp/securetransfer/internal/utils"
)

// InfoResult describes this machine as a transfer peer.
type InfoResult struct {
	Identity utils.HostIdentity
	IP       string
	Port     int

	TransfersPath string
	Sessions      int

	// PublicKeyPath is set when the SFTP keypair exists.
	PublicKeyPath string
	Fingerprint   string
}

// Info gathers what a peer needs to reach this machine.
func Info(ctx context.Context, env *Env) (*InfoResult, error) {
	result := &InfoResult{
		Identity:      env.Identity,
		IP:            utils.LocalIP(),
		Port:          env.Config.Network.Port,
		TransfersPath: env.Settings.TransfersPath,
	}

	sessions, err := packaging.ListSessions(env.Settings.TransfersPath)
	if err != nil {
		return nil, err
	}
	result.Sessions = len(sessions)

	manager := env.Keys()
	if manager.Exists() {
		result.PublicKeyPath = manager.PublicPath()
		fp, err := manager.Fingerprint()
		if err != nil {
			env.Logger.Warnf("Reading key fingerprint: %v", err)
		}
		result.Fingerprint = fp
	}
	return result, nil
}

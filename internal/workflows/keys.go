package workflows

import (
	"context"

	"github.com/esicorp/securetransfer/internal/keys"
)

// KeysResult describes the local SFTP identity.
type KeysResult struct {
	Keypair     *keys.Keypair
	PublicKey   string
	Fingerprint string
}

// GenerateKeys makes sure the RSA keypair exists, regenerating it when
// force is set.
func GenerateKeys(ctx context.Context, env *Env, force bool) (*KeysResult, error) {
	entry := env.Trail.New("keys")

	result, err := generateKeys(env, force)
	if result != nil {
		entry.Files = []string{result.Keypair.PublicPath}
		entry.Hash = result.Fingerprint
		if !result.Keypair.Generated {
			entry.Result = "reused"
		}
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return result, err
}

func generateKeys(env *Env, force bool) (*KeysResult, error) {
	manager := env.Keys()
	kp, err := manager.Ensure(force)
	if err != nil {
		return nil, err
	}
	if kp.Generated {
		env.Logger.Infof("Generated RSA keypair in %s", manager.Dir)
	}
	return describeKeys(manager, kp)
}

// ShowKeys returns the existing public key without generating one.
//
// Returns ErrPublicKeyNotFound if no key has been generated yet.
func ShowKeys(ctx context.Context, env *Env) (*KeysResult, error) {
	manager := env.Keys()
	return describeKeys(manager, &keys.Keypair{
		PrivatePath: manager.PrivatePath(),
		PublicPath:  manager.PublicPath(),
	})
}

func describeKeys(manager *keys.Manager, kp *keys.Keypair) (*KeysResult, error) {
	text, err := manager.PublicKeyText()
	if err != nil {
		return nil, err
	}
	fp, err := manager.Fingerprint()
	if err != nil {
		return nil, err
	}
	return &KeysResult{Keypair: kp, PublicKey: text, Fingerprint: fp}, nil
}

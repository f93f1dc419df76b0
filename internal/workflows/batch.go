package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/esicorp/securetransfer/internal/batch"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/keys"
	"github.com/esicorp/securetransfer/internal/remote"
	"golang.org/x/crypto/ssh"
)

// BatchOptions configures the SFTP batch workflow. Zero values fall back
// to the [sftp] section of the configuration.
type BatchOptions struct {
	Host       string
	Port       int
	User       string
	RemotePath string

	// Paths are files or folders to bundle. Empty means the outbox.
	Paths []string

	// All skips the filename pattern when scanning the outbox.
	All bool

	// Unzip extracts each bundle on the server after upload.
	Unzip bool

	OnUpload func(upload *remote.UploadResult)
}

// BatchResult contains the outcome of a batch upload.
type BatchResult struct {
	Keypair *keys.Keypair
	Bundles []*batch.Bundle
	Uploads []*remote.UploadResult
	Unzips  []*remote.UnzipResult

	// Target is user@host:port of the server.
	Target string
}

// BatchSend bundles files with the legacy codec and uploads them one at a
// time over SFTP, authenticating with the local RSA key.
//
// Returns ErrNoFilesFound if nothing was bundled.
// Returns ErrRemoteAuthRequired if the server does not trust the key yet;
// the result then carries the keypair so enrollment instructions can be
// shown.
func BatchSend(ctx context.Context, env *Env, opts BatchOptions) (*BatchResult, error) {
	entry := env.Trail.New("batch")

	result, err := batchSend(ctx, env, opts)
	if result != nil {
		entry.Peer = result.Target
		entry.FilesCount = len(result.Uploads)
		for _, u := range result.Uploads {
			entry.Files = append(entry.Files, u.RemotePath)
			entry.Bytes += u.Size
		}
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return result, err
}

func batchSend(ctx context.Context, env *Env, opts BatchOptions) (*BatchResult, error) {
	cfg := resolveBatchOptions(env, opts)
	if cfg.Host == "" {
		return nil, kerrors.ErrMissingRemoteHost
	}

	result := &BatchResult{Target: fmt.Sprintf("%s@%s", cfg.User, (remote.Config{Host: cfg.Host, Port: cfg.Port}).Addr())}

	bundles, bundleErr := bundle(env, cfg)
	result.Bundles = bundles
	if len(bundles) == 0 {
		if bundleErr != nil {
			return result, bundleErr
		}
		return result, kerrors.ErrNoFilesFound
	}

	kp, err := env.Keys().Ensure(false)
	if err != nil {
		return result, fmt.Errorf("preparing SSH keys: %w", err)
	}
	result.Keypair = kp
	if kp.Generated {
		env.Logger.WarnfUser("Generated a new SSH key; the server must trust %s before uploads succeed", kp.PublicPath)
	}

	signer, err := env.Keys().Signer()
	if err != nil {
		return result, err
	}

	session, err := remote.Connect(ctx, remoteConfig(env, cfg, signer))
	if err != nil {
		return result, err
	}
	defer session.Close()

	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		upload, err := session.Upload(b.ZipPath, cfg.RemotePath)
		if err != nil {
			return result, err
		}
		result.Uploads = append(result.Uploads, upload)
		if opts.OnUpload != nil {
			opts.OnUpload(upload)
		}

		if cfg.Unzip {
			unzip, err := session.Unzip(upload.RemotePath)
			if err != nil {
				return result, err
			}
			result.Unzips = append(result.Unzips, unzip)
		}
	}

	if err := session.Close(); err != nil {
		env.Logger.Warnf("Closing SFTP session: %v", err)
	}
	return result, bundleErr
}

// remoteConfig points host key checks at the tool's own file. known_hosts
// holds the user keys written by key exchange, not sshd host keys.
func remoteConfig(env *Env, opts BatchOptions, signer ssh.Signer) remote.Config {
	return remote.Config{
		Host:         opts.Host,
		Port:         opts.Port,
		User:         opts.User,
		Signer:       signer,
		HostKeysPath: env.Settings.SFTPHostKeysPath,
		Timeout:      env.Config.SFTP.Timeout(),
		Logger:       env.Logger,
	}
}

func resolveBatchOptions(env *Env, opts BatchOptions) BatchOptions {
	sftp := env.Config.SFTP
	if opts.Host == "" {
		opts.Host = sftp.Host
	}
	if opts.Port == 0 {
		opts.Port = sftp.Port
	}
	if opts.User == "" {
		opts.User = sftp.User
	}
	if opts.RemotePath == "" {
		opts.RemotePath = sftp.RemotePath
	}
	opts.Unzip = opts.Unzip || sftp.Unzip
	return opts
}

func bundle(env *Env, opts BatchOptions) ([]*batch.Bundle, error) {
	processor := &batch.Processor{
		OutboxDir:    env.Settings.OutboxPath,
		ProcessedDir: env.Settings.ProcessedPath,
		Logger:       env.Logger,
	}

	if len(opts.Paths) > 0 {
		var bundles []*batch.Bundle
		var errs []error
		for _, p := range opts.Paths {
			b, err := processor.ProcessPath(p)
			bundles = append(bundles, b...)
			if err != nil {
				errs = append(errs, err)
			}
		}
		return bundles, errors.Join(errs...)
	}

	files, err := processor.FindFiles(!opts.All)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", kerrors.ErrNoFilesFound, env.Settings.OutboxPath)
	}
	env.Logger.Infof("Found %d files in %s", len(files), env.Settings.OutboxPath)
	return processor.ProcessFiles(files)
}

// Enrollment returns the instructions for trusting the local key on the
// configured server.
func Enrollment(env *Env, host, user string) string {
	if host == "" {
		host = env.Config.SFTP.Host
	}
	if user == "" {
		user = env.Config.SFTP.User
	}
	manager := env.Keys()
	publicKey, _ := manager.PublicKeyText()
	return remote.EnrollmentInstructions(manager.PublicPath(), publicKey, host, user)
}

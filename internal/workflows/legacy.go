package workflows

import (
	"context"
	"fmt"

	"github.com/esicorp/securetransfer/internal/audit"
	"github.com/esicorp/securetransfer/internal/batch"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/utils"
)

// LegacyDecryptResult contains the outcome of a server-side restore.
type LegacyDecryptResult struct {
	// Unbundled lists the bundles that were unpacked.
	Unbundled []string
	Report    *batch.DecryptReport
}

// LegacyDecrypt restores legacy envelopes in dir: uploaded bundles are
// unpacked first, then every envelope is decrypted and checked against its
// hash record. Outputs that fail the check are removed.
//
// Returns ErrFileNotFound if dir does not exist.
func LegacyDecrypt(ctx context.Context, env *Env, dir string) (*LegacyDecryptResult, error) {
	entry := env.Trail.New("legacy-decrypt")
	entry.Files = []string{dir}

	result, err := legacyDecrypt(ctx, env, dir)
	if result != nil && result.Report != nil {
		entry.FilesCount = len(result.Report.Restored)
		if n := len(result.Report.Failed); n > 0 {
			entry.Result = audit.ResultFailed
			entry.Error = fmt.Sprintf("%d envelopes could not be restored", n)
		}
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return result, err
}

func legacyDecrypt(ctx context.Context, env *Env, dir string) (*LegacyDecryptResult, error) {
	if !utils.DirExists(dir) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, dir)
	}

	unbundled, err := batch.UnbundleDir(dir)
	if err != nil {
		return nil, err
	}
	if len(unbundled) > 0 {
		env.Logger.Infof("Unpacked %d bundles", len(unbundled))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decryptor := &batch.Decryptor{Logger: env.Logger}
	report, err := decryptor.DecryptDir(dir)
	if err != nil {
		return nil, err
	}
	return &LegacyDecryptResult{Unbundled: unbundled, Report: report}, nil
}

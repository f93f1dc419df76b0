package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/esicorp/securetransfer/internal/packaging"
)

// TempArchiveName is the decrypted archive written before extraction.
const TempArchiveName = "temp_decrypted.zip"

// DecryptOptions configures the decrypt workflow.
type DecryptOptions struct {
	EnvelopePath string

	// OutputDir receives the decrypted_files directory. Empty means the
	// directory holding the envelope.
	OutputDir string
}

// DecryptResult contains the outcome of a decrypt operation.
type DecryptResult struct {
	// Dir is the fresh directory the archive was unpacked into.
	Dir     string
	Entries int

	// Hash is the verified digest.
	Hash string
}

// Decrypt reads a live envelope, authenticates and verifies it, then
// unpacks the archive. Nothing is written unless every check passes.
//
// Returns ErrFileNotFound if the envelope does not exist.
// Returns ErrMalformedEnvelope if it is shorter than its header.
// Returns ErrAuthenticationFailure if the ciphertext does not authenticate.
// Returns ErrIntegrityMismatch if the recorded hash does not match.
func Decrypt(ctx context.Context, env *Env, opts DecryptOptions) (*DecryptResult, error) {
	entry := env.Trail.New("decrypt")
	entry.Files = []string{opts.EnvelopePath}

	result, err := decrypt(ctx, env, opts)
	if result != nil {
		entry.Hash = result.Hash
		entry.FilesCount = result.Entries
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return result, err
}

func decrypt(ctx context.Context, env *Env, opts DecryptOptions) (*DecryptResult, error) {
	opened, err := openEnvelope(env, opts.EnvelopePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.EnvelopePath)
	}
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return nil, err
	}

	tmp := filepath.Join(outDir, TempArchiveName)
	if err := os.WriteFile(tmp, opened.Archive, 0600); err != nil {
		return nil, fmt.Errorf("writing decrypted archive: %w", err)
	}
	defer os.Remove(tmp)

	extracted, err := packaging.Extract(tmp, outDir)
	if err != nil {
		return nil, err
	}
	env.Logger.Infof("Extracted %d entries into %s", extracted.Entries, extracted.Dir)

	return &DecryptResult{Dir: extracted.Dir, Entries: extracted.Entries, Hash: opened.ComputedHash}, nil
}

// ValidateResult reports a verified envelope.
type ValidateResult struct {
	Hash        string
	ArchiveSize int
}

// Validate checks authenticity and integrity of an envelope without
// writing anything.
func Validate(ctx context.Context, env *Env, envelopePath string) (*ValidateResult, error) {
	entry := env.Trail.New("validate")
	entry.Files = []string{envelopePath}

	var result *ValidateResult
	opened, err := openEnvelope(env, envelopePath)
	if err == nil {
		result = &ValidateResult{Hash: opened.ComputedHash, ArchiveSize: len(opened.Archive)}
		entry.Hash = result.Hash
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return result, err
}

func openEnvelope(env *Env, path string) (*packaging.Opened, error) {
	envelope, err := packaging.ReadEnvelope(path)
	if err != nil {
		return nil, err
	}
	env.Logger.Debugf("Envelope %s: %d ciphertext bytes, recorded hash %s", path, len(envelope.Ciphertext), envelope.Hash)

	opened, err := packaging.Open(env.Engine, envelope)
	if err != nil {
		return nil, err
	}
	env.Logger.Infof("Integrity verified: %s", opened.ComputedHash)
	return opened, nil
}

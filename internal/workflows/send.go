package workflows

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/packaging"
	"github.com/esicorp/securetransfer/internal/transfer"
	"github.com/esicorp/securetransfer/internal/utils"
)

// Package is an envelope built from a local file or folder, ready to send.
type Package struct {
	Session      *packaging.Session
	EnvelopePath string

	// Filename is the base name of the input, announced to the receiver.
	Filename string

	// Hash is the digest recorded in the envelope.
	Hash    string
	Entries int
	Size    int64
}

// PrepareOptions configures the packaging step.
type PrepareOptions struct {
	InputPath string

	// SessionID names the session directory. Empty means one derived from
	// the current time.
	SessionID string
}

// Prepare runs the packaging pipeline: stage, compress, encode, hash,
// encrypt and frame. The intermediate archive is removed once the envelope
// is written.
//
// Returns ErrFileNotFound if the input does not exist.
func Prepare(ctx context.Context, env *Env, opts PrepareOptions) (*Package, error) {
	input := strings.TrimSpace(opts.InputPath)
	if input == "" || (!utils.FileExists(input) && !utils.DirExists(input)) {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, opts.InputPath)
	}

	id := opts.SessionID
	if id == "" {
		id = packaging.NewSessionID(time.Now())
	}
	session, err := packaging.NewSession(env.Settings.TransfersPath, id)
	if err != nil {
		return nil, err
	}
	env.Logger.Infof("Session %s", session.ID)

	env.Logger.Debugf("Compressing %s", input)
	archive, err := session.Compress(input)
	if err != nil {
		return nil, fmt.Errorf("compressing %s: %w", input, err)
	}
	defer os.Remove(archive.Path)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(archive.Path)
	if err != nil {
		return nil, err
	}

	envelope, err := packaging.Seal(env.Engine, data)
	if err != nil {
		return nil, fmt.Errorf("sealing archive: %w", err)
	}
	env.Logger.Debugf("Archive hash %s", envelope.Hash)

	path := session.SenderPath(packaging.EnvelopeName)
	if err := packaging.WriteEnvelope(path, envelope); err != nil {
		return nil, fmt.Errorf("writing envelope: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &Package{
		Session:      session,
		EnvelopePath: path,
		Filename:     filepath.Base(strings.TrimRight(input, string(os.PathSeparator))),
		Hash:         envelope.Hash,
		Entries:      archive.Entries,
		Size:         info.Size(),
	}, nil
}

// DeliverOptions addresses one delivery attempt.
type DeliverOptions struct {
	Host string
	Port int
	Code string

	Progress func(sent, total int64)
}

func (o DeliverOptions) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// SendResult contains the outcome of a send.
type SendResult struct {
	Package   *Package
	Addr      string
	BytesSent int64

	// Attempts counts connections made, including rejected codes.
	Attempts int
}

// Deliver transmits an already built package once.
//
// Returns ErrInvalidSecurityCode for an empty or whitespace-bearing code,
// ErrConnection if the receiver cannot be reached and
// ErrAuthenticationRejected if it refuses the code.
func Deliver(ctx context.Context, env *Env, pkg *Package, opts DeliverOptions) (*SendResult, error) {
	if !utils.IsValidSecurityCode(opts.Code) {
		return nil, kerrors.ErrInvalidSecurityCode
	}

	addr := opts.Addr()
	res, err := transfer.Send(ctx, transfer.SendOptions{
		Addr:         addr,
		Code:         opts.Code,
		EnvelopePath: pkg.EnvelopePath,
		Filename:     pkg.Filename,
		SessionID:    pkg.Session.ID,
		DialTimeout:  env.Config.Network.DialTimeout(),
		BufferSize:   env.Config.Network.BufferSize,
		Logger:       env.Logger,
		Progress:     opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	return &SendResult{Package: pkg, Addr: addr, BytesSent: res.BytesSent, Attempts: 1}, nil
}

// SendOptions configures a non-interactive send.
type SendOptions struct {
	InputPath string
	SessionID string
	DeliverOptions
}

// Send packages the input and delivers it once. Failures are returned
// without retrying; SendWithRetry covers the interactive case.
func Send(ctx context.Context, env *Env, opts SendOptions) (*SendResult, error) {
	entry := env.Trail.New("send")
	entry.Peer = opts.Addr()
	entry.Files = []string{opts.InputPath}

	result, err := send(ctx, env, opts)
	if result != nil {
		entry.Session = result.Package.Session.ID
		entry.Hash = result.Package.Hash
		entry.Bytes = result.BytesSent
		entry.Attempts = result.Attempts
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return result, err
}

func send(ctx context.Context, env *Env, opts SendOptions) (*SendResult, error) {
	if !utils.IsValidSecurityCode(opts.Code) {
		return nil, kerrors.ErrInvalidSecurityCode
	}

	pkg, err := Prepare(ctx, env, PrepareOptions{InputPath: opts.InputPath, SessionID: opts.SessionID})
	if err != nil {
		return nil, err
	}

	return Deliver(ctx, env, pkg, opts.DeliverOptions)
}

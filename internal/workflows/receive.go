package workflows

import (
	"context"
	"net"
	"strconv"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/transfer"
	"github.com/esicorp/securetransfer/internal/utils"
)

// ReceiveOptions configures the receive workflow.
type ReceiveOptions struct {
	// Port to listen on. Zero lets the system pick one; OnListening
	// reports it.
	Port int
	Code string

	// Decrypt unpacks the envelope once it has arrived.
	Decrypt bool

	OnListening   func(addr net.Addr)
	OnAuthFailure func(peer string)
	Progress      func(received, total int64)
}

// ReceiveResult contains the outcome of a receive operation.
type ReceiveResult struct {
	Received *transfer.Received

	// Decrypted is set when ReceiveOptions.Decrypt was requested and
	// succeeded.
	Decrypted *DecryptResult
}

// SessionCode returns requested, or a fresh random four digit code when it
// is empty. generated tells the caller it has to show the code.
func SessionCode(env *Env, requested string) (code string, generated bool, err error) {
	if requested != "" {
		return requested, false, nil
	}
	code, err = transfer.GenerateCode()
	if err != nil {
		return "", false, err
	}
	env.Logger.Infof("Generated a security code for this session")
	return code, true, nil
}

// Receive listens until one sender presents the right code and completes a
// transfer. Senders with a wrong code are turned away without closing the
// listener.
//
// When decryption was requested and fails, the result still describes the
// stored envelope alongside the error.
func Receive(ctx context.Context, env *Env, opts ReceiveOptions) (*ReceiveResult, error) {
	if !utils.IsValidSecurityCode(opts.Code) {
		return nil, kerrors.ErrInvalidSecurityCode
	}

	ln, err := transfer.Listen(net.JoinHostPort("", strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, err
	}
	env.Logger.Infof("Listening on %s", ln.Addr())
	if opts.OnListening != nil {
		opts.OnListening(ln.Addr())
	}

	entry := env.Trail.New("receive")
	received, err := ln.Receive(ctx, transfer.ReceiveOptions{
		Code:          opts.Code,
		BaseDir:       env.Settings.TransfersPath,
		BufferSize:    env.Config.Network.BufferSize,
		MaxPayload:    env.Config.Network.MaxPayloadBytes,
		Logger:        env.Logger,
		Progress:      opts.Progress,
		OnAuthFailure: opts.OnAuthFailure,
	})
	if received != nil {
		entry.Session = received.SessionID
		entry.Peer = received.Peer
		entry.Files = []string{received.Filename}
		entry.Bytes = received.Size
	}
	entry.Fail(err)
	env.Trail.Log(entry)
	if err != nil {
		return nil, err
	}

	result := &ReceiveResult{Received: received}
	if !opts.Decrypt {
		return result, nil
	}

	decrypted, err := Decrypt(ctx, env, DecryptOptions{
		EnvelopePath: received.Path,
		OutputDir:    received.Session.ReceiverDir,
	})
	if err != nil {
		return result, err
	}
	result.Decrypted = decrypted
	return result, nil
}

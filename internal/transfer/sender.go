package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	logger "github.com/esicorp/securetransfer/internal/logging"
)

type SendOptions struct {
	// Addr is the receiver's host:port.
	Addr string

	Code         string
	EnvelopePath string

	// Filename is announced to the receiver; it is informational only.
	Filename  string
	SessionID string

	DialTimeout time.Duration
	IOTimeout   time.Duration
	BufferSize  int

	Logger logger.Logger

	// Progress, if set, is called after every chunk.
	Progress func(sent, total int64)
}

type SendResult struct {
	BytesSent int64
	State     State
}

// SendError reports the state a failed send had reached.
type SendError struct {
	State State
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed in %s: %v", e.State, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Send runs one sender session: authenticate with the code, announce the
// metadata, wait for READY and stream the envelope. A dial failure is
// ErrConnection, a FAIL reply ErrAuthenticationRejected, a missing READY
// ErrProtocol. Cancelling ctx closes the connection.
func Send(ctx context.Context, opts SendOptions) (*SendResult, error) {
	bufSize := bufferSize(opts.BufferSize)
	timeout := ioTimeout(opts.IOTimeout)
	state := StateConnecting
	fail := func(err error) (*SendResult, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &SendError{State: state, Err: err}
	}

	f, err := os.Open(opts.EnvelopePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, opts.EnvelopePath))
		}
		return fail(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	total := info.Size()

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	opts.Logger.Debugf("Dialing %s", opts.Addr)
	conn, err := dialer.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %v", kerrors.ErrConnection, opts.Addr, err))
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := writeMessage(conn, CodePrefix+opts.Code, timeout); err != nil {
		return fail(err)
	}
	state = StateAuthSent

	reply, err := readMessage(conn, bufSize, timeout)
	if err != nil {
		return fail(err)
	}
	switch reply {
	case MsgOK:
	case MsgFail:
		return fail(kerrors.ErrAuthenticationRejected)
	default:
		return fail(fmt.Errorf("%w: unexpected auth reply %q", kerrors.ErrProtocol, reply))
	}
	state = StateAuthAcked
	opts.Logger.Infof("Security code accepted by %s", opts.Addr)

	meta := Metadata{Filename: opts.Filename, Size: total, SessionID: opts.SessionID}
	if err := writeMessage(conn, meta.Encode(), timeout); err != nil {
		return fail(err)
	}
	state = StateMetadataSent

	reply, err = readMessage(conn, bufSize, timeout)
	if err != nil {
		return fail(err)
	}
	if reply != MsgReady {
		return fail(fmt.Errorf("%w: expected %s, got %q", kerrors.ErrProtocol, MsgReady, reply))
	}
	state = StateTransferReady

	state = StateStreaming
	opts.Logger.Debugf("Streaming %d bytes", total)
	sent, err := stream(conn, f, total, bufSize, timeout, opts.Progress)
	if err != nil {
		return fail(err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	state = StateDone

	return &SendResult{BytesSent: sent, State: state}, nil
}

func stream(conn net.Conn, r io.Reader, total int64, bufSize int, timeout time.Duration, progress func(int64, int64)) (int64, error) {
	buf := make([]byte, bufSize)
	var sent int64
	for sent < total {
		n, readErr := r.Read(buf)
		if n > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return sent, err
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return sent, err
			}
			sent += int64(n)
			if progress != nil {
				progress(sent, total)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return sent, readErr
		}
	}
	if sent != total {
		return sent, fmt.Errorf("envelope changed during transfer: sent %d of %d bytes", sent, total)
	}
	return sent, nil
}

package transfer

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	logger "github.com/esicorp/securetransfer/internal/logging"
	"github.com/esicorp/securetransfer/internal/packaging"
)

// errNoCode marks a connection that dropped before presenting a code.
var errNoCode = errors.New("no security code received")

// Listener accepts sender sessions on one TCP port.
type Listener struct {
	ln *net.TCPListener
}

// Listen binds addr. Use ":0" to let the kernel pick a port.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %s: %v", kerrors.ErrConnection, addr, err)
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("%w: %s is not a TCP address", kerrors.ErrConnection, addr)
	}
	return &Listener{ln: tcp}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound port.
func (l *Listener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

type ReceiveOptions struct {
	Code string

	// BaseDir holds the session directories.
	BaseDir string

	BufferSize int

	// MaxPayload rejects announcements larger than this many bytes. Zero
	// means no ceiling.
	MaxPayload int64
	IOTimeout  time.Duration

	Logger logger.Logger

	// Progress, if set, is called after every chunk.
	Progress func(received, total int64)

	// OnAuthFailure, if set, is called for every rejected code.
	OnAuthFailure func(peer string)
}

// Received describes a stored envelope.
type Received struct {
	Path      string
	SessionID string
	Filename  string
	Size      int64
	Peer      string
	Session   *packaging.Session
}

// Receive waits for one successful transfer. A sender presenting the wrong
// code gets FAIL and the listener keeps waiting. Any failure after
// authentication ends the call. The listener is closed on return.
func (l *Listener) Receive(ctx context.Context, opts ReceiveOptions) (*Received, error) {
	defer l.Close()

	if opts.Code == "" {
		return nil, fmt.Errorf("security code must not be empty")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := l.ln.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			return nil, err
		}
		conn, err := l.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: accept: %v", kerrors.ErrConnection, err)
		}

		res, err := l.serve(ctx, conn, opts)
		if errors.Is(err, kerrors.ErrAuthenticationRejected) {
			if opts.OnAuthFailure != nil {
				opts.OnAuthFailure(conn.RemoteAddr().String())
			}
			continue
		}
		if errors.Is(err, errNoCode) && ctx.Err() == nil {
			opts.Logger.Warnf("%v", err)
			continue
		}
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			return nil, ctxErr
		}
		return res, err
	}
}

func (l *Listener) serve(ctx context.Context, conn net.Conn, opts ReceiveOptions) (*Received, error) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	peer := conn.RemoteAddr().String()
	bufSize := bufferSize(opts.BufferSize)
	timeout := ioTimeout(opts.IOTimeout)
	opts.Logger.Infof("Connection from %s", peer)

	msg, err := readMessage(conn, bufSize, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %v", errNoCode, peer, err)
	}
	code, ok := strings.CutPrefix(msg, CodePrefix)
	if !ok || subtle.ConstantTimeCompare([]byte(code), []byte(opts.Code)) != 1 {
		opts.Logger.Warnf("Rejected security code from %s", peer)
		_ = writeMessage(conn, MsgFail, timeout)
		return nil, kerrors.ErrAuthenticationRejected
	}
	if err := writeMessage(conn, MsgOK, timeout); err != nil {
		return nil, err
	}

	msg, err = readMessage(conn, bufSize, timeout)
	if err != nil {
		return nil, fmt.Errorf("reading metadata from %s: %w", peer, err)
	}
	meta, err := ParseMetadata(msg)
	if err != nil {
		return nil, err
	}
	if opts.MaxPayload > 0 && meta.Size > opts.MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes announced, limit is %d", kerrors.ErrPayloadTooLarge, meta.Size, opts.MaxPayload)
	}

	session, err := packaging.NewSession(opts.BaseDir, meta.SessionID)
	if err != nil {
		return nil, err
	}
	path := session.ReceiverPath(packaging.ReceivedName)
	filename := packaging.SanitizeName(filepath.Base(meta.Filename))
	opts.Logger.Debugf("Receiving %s (%d bytes) into session %s", filename, meta.Size, session.ID)

	if err := writeMessage(conn, MsgReady, timeout); err != nil {
		return nil, err
	}

	n, err := receivePayload(conn, path, meta.Size, bufSize, timeout, opts.Progress)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Received{
		Path:      path,
		SessionID: session.ID,
		Filename:  filename,
		Size:      n,
		Peer:      peer,
		Session:   session,
	}, nil
}

func receivePayload(conn net.Conn, path string, size int64, bufSize int, timeout time.Duration, progress func(int64, int64)) (received int64, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, bufSize)
	for received < size {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return received, err
		}
		want := int64(len(buf))
		if remaining := size - received; remaining < want {
			want = remaining
		}
		n, readErr := conn.Read(buf[:want])
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return received, err
			}
			received += int64(n)
			if progress != nil {
				progress(received, size)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return received, fmt.Errorf("%w: %v", kerrors.ErrShortRead, readErr)
		}
	}

	if received != size {
		return received, fmt.Errorf("%w: got %d of %d bytes", kerrors.ErrShortRead, received, size)
	}
	return received, nil
}

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	logger "github.com/esicorp/securetransfer/internal/logging"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	Host string
	Port int
	User string

	// Signer authenticates the client. Password authentication is never
	// offered.
	Signer ssh.Signer

	// HostKeysPath records the host keys of SFTP servers seen so far. It is
	// separate from known_hosts, which key exchange fills with user keys.
	// Empty disables recording and every host is treated as unknown.
	HostKeysPath string

	Timeout time.Duration
	Logger  logger.Logger
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session is an SSH connection with an SFTP channel on top of it.
type Session struct {
	ssh    *ssh.Client
	sftp   *sftp.Client
	logger logger.Logger
	closed bool
}

// Connect dials the server, authenticates with the configured key and opens
// SFTP. A rejected key is reported as ErrRemoteAuthRequired.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("%w: no signer configured", kerrors.ErrPrivateKeyNotFound)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hostKeyCallback, err := HostKeyCallback(cfg.HostKeysPath, cfg.Logger)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(cfg.Signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := cfg.Addr()
	cfg.Logger.Infof("Connecting to %s@%s", cfg.User, addr)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrConnection, addr, err)
	}

	// The handshake has no context of its own; bound it with a deadline and
	// close the socket if ctx ends first.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	stop()
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isAuthFailure(err) {
			return nil, fmt.Errorf("%w: %s@%s", kerrors.ErrRemoteAuthRequired, cfg.User, addr)
		}
		return nil, fmt.Errorf("%w: ssh handshake with %s: %v", kerrors.ErrConnection, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("opening sftp subsystem: %w", err)
	}

	cfg.Logger.Infof("SFTP session established with %s", addr)
	return &Session{ssh: client, sftp: sftpClient, logger: cfg.Logger}, nil
}

// authFailureText is how x/crypto/ssh reports that every offered auth
// method was rejected. It has no typed error for this case.
const authFailureText = "ssh: unable to authenticate"

func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), authFailureText)
}

// HostKeyCallback checks SFTP host keys against the file at hostKeysPath.
// An unknown host is accepted with a warning and its key is appended to the
// file; a host presenting a different key than the one on record is
// rejected.
func HostKeyCallback(hostKeysPath string, log logger.Logger) (ssh.HostKeyCallback, error) {
	load := func() (ssh.HostKeyCallback, error) {
		if hostKeysPath == "" {
			return nil, nil
		}
		if _, err := os.Stat(hostKeysPath); err != nil {
			return nil, nil
		}
		check, err := knownhosts.New(hostKeysPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hostKeysPath, err)
		}
		return check, nil
	}

	check, err := load()
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if check != nil {
			err := check(hostname, remote, key)
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
				return err
			}
		}

		log.WarnfUser("Host key for %s is not known, accepting %s", hostname, ssh.FingerprintSHA256(key))
		if hostKeysPath == "" {
			return nil
		}
		if err := recordHostKey(hostKeysPath, hostname, key); err != nil {
			log.WarnfAlways("Could not record host key for %s: %v", hostname, err)
			return nil
		}
		if reloaded, err := load(); err == nil {
			check = reloaded
		}
		return nil
	}, nil
}

func recordHostKey(path, hostname string, key ssh.PublicKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type UploadResult struct {
	LocalPath  string
	RemotePath string
	Size       int64
}

// Upload copies localPath to remotePath and compares both sizes afterwards.
// A remotePath ending in "/" receives the local base name.
func (s *Session) Upload(localPath, remotePath string) (*UploadResult, error) {
	if strings.HasSuffix(remotePath, "/") {
		remotePath = path.Join(remotePath, filepath.Base(localPath))
	}

	local, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, localPath)
		}
		return nil, err
	}
	defer local.Close()

	dst, err := s.sftp.Create(remotePath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, local); err != nil {
		dst.Close()
		return nil, fmt.Errorf("uploading %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", remotePath, err)
	}

	localInfo, err := local.Stat()
	if err != nil {
		return nil, err
	}
	remoteInfo, err := s.sftp.Stat(remotePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", remotePath, err)
	}
	if remoteInfo.Size() != localInfo.Size() {
		return nil, fmt.Errorf("%w: %s is %d bytes, local file is %d", kerrors.ErrSizeMismatch,
			remotePath, remoteInfo.Size(), localInfo.Size())
	}

	s.logger.Infof("Uploaded %s (%d bytes)", remotePath, localInfo.Size())
	return &UploadResult{LocalPath: localPath, RemotePath: remotePath, Size: localInfo.Size()}, nil
}

type UnzipResult struct {
	Command    string
	ExitStatus int
	Output     string
}

// Unzip runs unzip next to an uploaded archive. A non-zero exit status is
// returned in the result, not as an error, since the archive itself is
// already on the server.
func (s *Session) Unzip(remotePath string) (*UnzipResult, error) {
	sess, err := s.ssh.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening ssh session: %w", err)
	}
	defer sess.Close()

	cmd := fmt.Sprintf("unzip -o %s -d %s", shellQuote(remotePath), shellQuote(path.Dir(remotePath)))
	out, err := sess.CombinedOutput(cmd)
	res := &UnzipResult{Command: cmd, Output: string(out)}

	var exitErr *ssh.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitStatus = exitErr.ExitStatus()
		s.logger.WarnfUser("Remote unzip exited with status %d", res.ExitStatus)
	case err != nil:
		return nil, fmt.Errorf("running %q: %w", cmd, err)
	}
	return res, nil
}

// Close releases the SFTP channel and the SSH connection. Calling it again
// is a no-op.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.sftp != nil {
		if err := s.sftp.Close(); err != nil && !isClosedErr(err) {
			errs = append(errs, err)
		}
	}
	if s.ssh != nil {
		if err := s.ssh.Close(); err != nil && !isClosedErr(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// EnrollmentInstructions explains how to trust publicKeyPath on host.
func EnrollmentInstructions(publicKeyPath, publicKey, host, user string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The server does not trust this machine's public key yet.\n\n")
	fmt.Fprintf(&b, "1. Public key file: %s\n", publicKeyPath)
	if publicKey != "" {
		fmt.Fprintf(&b, "2. Contents to copy:\n   %s\n", publicKey)
	}
	fmt.Fprintf(&b, "3. On the server, run:\n")
	fmt.Fprintf(&b, "   ssh %s@%s\n", user, host)
	fmt.Fprintf(&b, "   mkdir -p ~/.ssh\n")
	fmt.Fprintf(&b, "   echo '<public key>' >> ~/.ssh/authorized_keys\n")
	fmt.Fprintf(&b, "   chmod 700 ~/.ssh\n")
	fmt.Fprintf(&b, "   chmod 600 ~/.ssh/authorized_keys\n")
	fmt.Fprintf(&b, "\nOr run `securetransfer exchange serve` there and `securetransfer exchange connect %s` here.\n", host)
	return b.String()
}

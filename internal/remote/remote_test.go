package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	kerrors "github.com/esicorp/securetransfer/internal/errors"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

// testServer is a minimal SSH server exposing an in-memory SFTP subsystem
// and a fake exec handler.
type testServer struct {
	addr     string
	hostKey  ssh.PublicKey
	handlers sftp.Handlers

	exitStatus uint32

	mu       sync.Mutex
	commands []string
}

func startTestServer(t *testing.T, authorized ssh.PublicKey) *testServer {
	t.Helper()
	hostSigner := newSigner(t)

	srv := &testServer{hostKey: hostSigner.PublicKey(), handlers: sftp.InMemHandler()}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	srv.addr = ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn, config)
		}
	}()
	return srv
}

func (s *testServer) serveConn(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, chReqs)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go func() {
				server := sftp.NewRequestServer(ch, s.handlers)
				_ = server.Serve()
				server.Close()
				ch.Close()
			}()
		case "exec":
			var payload struct{ Command string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()
			req.Reply(true, nil)
			_, _ = io.WriteString(ch, "inflating\n")
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{s.exitStatus}))
			ch.Close()
			return
		default:
			req.Reply(false, nil)
		}
	}
}

func (s *testServer) config(t *testing.T, signer ssh.Signer) Config {
	host, portStr, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Config{Host: host, Port: port, User: "esicorp", Signer: signer}
}

func writeLocal(t *testing.T, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0600))
	return p
}

func TestConnectUploadClose(t *testing.T) {
	signer := newSigner(t)
	srv := startTestServer(t, signer.PublicKey())

	sess, err := Connect(context.Background(), srv.config(t, signer))
	require.NoError(t, err)

	local := writeLocal(t, "Ventas-01-02-2024.zip", 70000)
	res, err := sess.Upload(local, "/")
	require.NoError(t, err)
	assert.Equal(t, "/Ventas-01-02-2024.zip", res.RemotePath)
	assert.Equal(t, int64(70000), res.Size)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestConnectWithUntrustedKey(t *testing.T) {
	srv := startTestServer(t, newSigner(t).PublicKey())

	_, err := Connect(context.Background(), srv.config(t, newSigner(t)))
	require.ErrorIs(t, err, kerrors.ErrRemoteAuthRequired)
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Connect(context.Background(), Config{Host: "127.0.0.1", Port: port, User: "x", Signer: newSigner(t)})
	require.ErrorIs(t, err, kerrors.ErrConnection)
}

func TestUploadMissingLocalFile(t *testing.T) {
	signer := newSigner(t)
	srv := startTestServer(t, signer.PublicKey())
	sess, err := Connect(context.Background(), srv.config(t, signer))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Upload(filepath.Join(t.TempDir(), "missing.zip"), "/")
	require.ErrorIs(t, err, kerrors.ErrFileNotFound)
}

// sizeSkewLister reports every file one byte larger than it is.
type sizeSkewLister struct {
	sftp.FileLister
}

type skewedInfo struct {
	os.FileInfo
}

func (i skewedInfo) Size() int64 { return i.FileInfo.Size() + 1 }

type infoLister []os.FileInfo

func (l infoLister) ListAt(out []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(l)) {
		return 0, io.EOF
	}
	n := copy(out, l[offset:])
	if n < len(out) {
		return n, io.EOF
	}
	return n, nil
}

func (s sizeSkewLister) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	lister, err := s.FileLister.Filelist(r)
	if err != nil || r.Method != "Stat" {
		return lister, err
	}
	infos := make([]os.FileInfo, 1)
	if _, err := lister.ListAt(infos, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return infoLister{skewedInfo{infos[0]}}, nil
}

func TestUploadDetectsSizeMismatch(t *testing.T) {
	signer := newSigner(t)
	srv := startTestServer(t, signer.PublicKey())
	srv.handlers.FileList = sizeSkewLister{srv.handlers.FileList}

	sess, err := Connect(context.Background(), srv.config(t, signer))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Upload(writeLocal(t, "a.zip", 1000), "/a.zip")
	require.ErrorIs(t, err, kerrors.ErrSizeMismatch)
}

func TestUnzip(t *testing.T) {
	signer := newSigner(t)
	srv := startTestServer(t, signer.PublicKey())

	sess, err := Connect(context.Background(), srv.config(t, signer))
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Unzip("/home/esicorp/upload/it's.zip")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Contains(t, res.Output, "inflating")

	srv.mu.Lock()
	require.Len(t, srv.commands, 1)
	assert.Equal(t, `unzip -o '/home/esicorp/upload/it'\''s.zip' -d '/home/esicorp/upload'`, srv.commands[0])
	srv.mu.Unlock()
}

func TestUnzipNonZeroExitIsNotAnError(t *testing.T) {
	signer := newSigner(t)
	srv := startTestServer(t, signer.PublicKey())
	srv.exitStatus = 9

	sess, err := Connect(context.Background(), srv.config(t, signer))
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Unzip("/upload/a.zip")
	require.NoError(t, err)
	assert.Equal(t, 9, res.ExitStatus)
}

func TestHostKeyCallback(t *testing.T) {
	known := newSigner(t).PublicKey()
	other := newSigner(t).PublicKey()
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 22}
	newAddr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 22}

	path := filepath.Join(t.TempDir(), "sftp_known_hosts")
	line := knownhosts.Line([]string{"10.0.0.5"}, known)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

	cb, err := HostKeyCallback(path, Config{}.Logger)
	require.NoError(t, err)

	assert.NoError(t, cb("10.0.0.5:22", addr, known), "recorded key")
	assert.NoError(t, cb("10.0.0.9:22", newAddr, other), "unknown host")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), knownhosts.Line([]string{"10.0.0.9"}, other))

	err = cb("10.0.0.5:22", addr, other)
	var keyErr *knownhosts.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.NotEmpty(t, keyErr.Want)

	// A later run trusts the key recorded for 10.0.0.9 and nothing else.
	again, err := HostKeyCallback(path, Config{}.Logger)
	require.NoError(t, err)
	assert.NoError(t, again("10.0.0.9:22", newAddr, other))
	assert.Error(t, again("10.0.0.9:22", newAddr, known))
}

func TestHostKeyCallbackWithoutFile(t *testing.T) {
	key := newSigner(t).PublicKey()
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 22}

	disabled, err := HostKeyCallback("", Config{}.Logger)
	require.NoError(t, err)
	assert.NoError(t, disabled("10.0.0.5:22", addr, key))

	path := filepath.Join(t.TempDir(), "keys", "sftp_known_hosts")
	cb, err := HostKeyCallback(path, Config{}.Logger)
	require.NoError(t, err)
	assert.NoError(t, cb("10.0.0.5:22", addr, key))
	assert.FileExists(t, path)
}

func TestHostKeyCallbackUnwritableFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	cb, err := HostKeyCallback(filepath.Join(blocker, "sftp_known_hosts"), Config{}.Logger)
	require.NoError(t, err)

	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 22}
	assert.NoError(t, cb("10.0.0.5:22", addr, newSigner(t).PublicKey()))
}

func TestConnectRecordsServerHostKey(t *testing.T) {
	signer := newSigner(t)
	srv := startTestServer(t, signer.PublicKey())

	cfg := srv.config(t, signer)
	cfg.HostKeysPath = filepath.Join(t.TempDir(), "sftp_known_hosts")

	sess, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	data, err := os.ReadFile(cfg.HostKeysPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), knownhosts.Line([]string{knownhosts.Normalize(srv.addr)}, srv.hostKey))

	sess, err = Connect(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, sess.Close())
}

// The auth failure check matches on text; keep it in step with the
// x/crypto/ssh version in go.mod.
func TestAuthFailureText(t *testing.T) {
	srv := startTestServer(t, newSigner(t).PublicKey())

	client, err := ssh.Dial("tcp", srv.addr, &ssh.ClientConfig{
		User:            "esicorp",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(newSigner(t))},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if client != nil {
		client.Close()
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), authFailureText)
	assert.True(t, isAuthFailure(err))
	assert.False(t, isAuthFailure(errors.New("connection reset by peer")))
	assert.False(t, isAuthFailure(nil))
}

func TestEnrollmentInstructions(t *testing.T) {
	text := EnrollmentInstructions("/keys/id_rsa.pub", "ssh-rsa AAAA user@host", "10.0.0.5", "esicorp")
	assert.Contains(t, text, "/keys/id_rsa.pub")
	assert.Contains(t, text, "ssh esicorp@10.0.0.5")
	assert.Contains(t, text, "ssh-rsa AAAA user@host")
	assert.Contains(t, text, "authorized_keys")
}

package workflows

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/esicorp/securetransfer/internal/audit"
	"github.com/esicorp/securetransfer/internal/batch"
	"github.com/esicorp/securetransfer/internal/configs"
	"github.com/esicorp/securetransfer/internal/crypto"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/keyexchange"
	"github.com/esicorp/securetransfer/internal/packaging"
	"github.com/esicorp/securetransfer/internal/remote"
	"github.com/esicorp/securetransfer/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

var testKey = bytes.Repeat([]byte{0x42}, crypto.KeySize)

// newTestEnv builds an Env rooted in a temporary directory. The key is
// fixed so two envs can talk to each other without running PBKDF2.
func newTestEnv(t *testing.T) *Env {
	t.Helper()
	engine, err := crypto.NewEngineFromKey(testKey)
	require.NoError(t, err)

	cfg := configs.Default()
	cfg.Paths.SSHDir = "ssh"
	cfg.Network.DialTimeoutSeconds = 2
	settings := cfg.Settings(t.TempDir())

	return &Env{
		Config:   cfg,
		Settings: settings,
		Engine:   engine,
		Identity: utils.HostIdentity{Hostname: "test-host", User: "tester", System: "linux"},
		Trail:    &audit.Trail{Path: settings.AuditLogPath, User: "tester", Host: "test-host"},
	}
}

func writeInput(t *testing.T, name string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path, data
}

type receiveOutcome struct {
	res *ReceiveResult
	err error
}

// startReceive runs Receive in the background and returns the port it
// bound.
func startReceive(t *testing.T, ctx context.Context, env *Env, opts ReceiveOptions) (int, <-chan receiveOutcome) {
	t.Helper()
	bound := make(chan int, 1)
	opts.OnListening = func(addr net.Addr) {
		bound <- addr.(*net.TCPAddr).Port
	}

	done := make(chan receiveOutcome, 1)
	go func() {
		res, err := Receive(ctx, env, opts)
		done <- receiveOutcome{res, err}
	}()

	select {
	case port := <-bound:
		return port, done
	case out := <-done:
		t.Fatalf("receiver stopped before listening: %v", out.err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not start listening")
	}
	return 0, nil
}

func waitReceive(t *testing.T, done <-chan receiveOutcome) receiveOutcome {
	t.Helper()
	select {
	case out := <-done:
		return out
	case <-time.After(30 * time.Second):
		t.Fatal("receive timed out")
		return receiveOutcome{}
	}
}

func TestSendReceiveDecryptEndToEnd(t *testing.T) {
	ctx := context.Background()
	sender, receiver := newTestEnv(t), newTestEnv(t)

	port, done := startReceive(t, ctx, receiver, ReceiveOptions{Code: "4242", Decrypt: true})

	input, data := writeInput(t, "report.bin", 10<<20)
	sent, err := Send(ctx, sender, SendOptions{
		InputPath:      input,
		DeliverOptions: DeliverOptions{Host: "127.0.0.1", Port: port, Code: "4242"},
	})
	require.NoError(t, err)
	assert.Equal(t, sent.Package.Size, sent.BytesSent)
	assert.Equal(t, 1, sent.Attempts)

	out := waitReceive(t, done)
	require.NoError(t, out.err)
	require.NotNil(t, out.res.Decrypted)

	assert.Equal(t, "report.bin", out.res.Received.Filename)
	assert.Equal(t, sent.Package.Session.ID, out.res.Received.SessionID)
	assert.Equal(t, sent.Package.Hash, out.res.Decrypted.Hash)

	got, err := os.ReadFile(filepath.Join(out.res.Decrypted.Dir, "report.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "extracted file differs from the original")

	_, err = os.Stat(filepath.Join(filepath.Dir(out.res.Decrypted.Dir), TempArchiveName))
	assert.True(t, os.IsNotExist(err), "temporary archive should be removed")

	_, err = os.Stat(filepath.Join(sent.Package.Session.SenderDir, packaging.ArchiveName))
	assert.True(t, os.IsNotExist(err), "sender archive should be removed")

	entries, err := sender.Trail.ReadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "send", entries[0].Operation)
	assert.Equal(t, audit.ResultOK, entries[0].Result)
}

func TestSendFolderPreservesTree(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	root := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("alpha"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("beta"), 0600))

	pkg, err := Prepare(ctx, env, PrepareOptions{InputPath: root, SessionID: "20240102_030405"})
	require.NoError(t, err)
	assert.Equal(t, "docs", pkg.Filename)
	assert.Equal(t, "20240102_030405", pkg.Session.ID)

	res, err := Decrypt(ctx, env, DecryptOptions{EnvelopePath: pkg.EnvelopePath})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(res.Dir, "docs", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(got))
}

func TestSendWithRetryRecoversFromWrongCode(t *testing.T) {
	ctx := context.Background()
	sender, receiver := newTestEnv(t), newTestEnv(t)

	var rejected []string
	port, done := startReceive(t, ctx, receiver, ReceiveOptions{
		Code:          "4242",
		OnAuthFailure: func(peer string) { rejected = append(rejected, peer) },
	})

	input, _ := writeInput(t, "notes.txt", 2048)
	pkg, err := Prepare(ctx, sender, PrepareOptions{InputPath: input})
	require.NoError(t, err)

	prompter := &scriptedPrompter{codes: []string{"4242"}}
	var states []RetryState
	res, err := SendWithRetry(ctx, sender, RetryOptions{
		Package:  pkg,
		Target:   DeliverOptions{Host: "127.0.0.1", Port: port, Code: "9999"},
		Prompter: prompter,
		OnState:  func(s RetryState, _ int) { states = append(states, s) },
	})
	require.NoError(t, err)
	assert.Equal(t, RetryDelivered, res.State)
	assert.Equal(t, 2, res.Attempts)
	require.NotNil(t, res.Result)
	assert.Equal(t, 2, res.Result.Attempts)
	assert.ErrorIs(t, prompter.lastCodeErr, kerrors.ErrAuthenticationRejected)

	out := waitReceive(t, done)
	require.NoError(t, out.err)
	assert.Len(t, rejected, 1)
	assert.Equal(t, pkg.Session.ID, out.res.Received.SessionID)

	assert.Equal(t, []RetryState{RetryDelivering, RetryAwaitCode, RetryDelivering, RetryDelivered}, states)
}

func TestSendWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender, receiver := newTestEnv(t), newTestEnv(t)

	port, done := startReceive(t, ctx, receiver, ReceiveOptions{Code: "4242"})

	input, _ := writeInput(t, "notes.txt", 128)
	pkg, err := Prepare(ctx, sender, PrepareOptions{InputPath: input})
	require.NoError(t, err)

	prompter := &scriptedPrompter{codes: []string{"0000", "1111", "2222", "3333", "5555"}}
	res, err := SendWithRetry(ctx, sender, RetryOptions{
		Package:     pkg,
		Target:      DeliverOptions{Host: "127.0.0.1", Port: port},
		MaxAttempts: 3,
		Prompter:    prompter,
	})
	require.ErrorIs(t, err, kerrors.ErrTooManyAttempts)
	assert.Equal(t, RetryExhausted, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, prompter.codeCalls)

	cancel()
	out := waitReceive(t, done)
	assert.ErrorIs(t, out.err, context.Canceled)

	entries, err := sender.Trail.ReadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ResultFailed, entries[0].Result)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestSendWithRetryAbandonsOnConnectionFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	input, _ := writeInput(t, "notes.txt", 64)
	pkg, err := Prepare(ctx, env, PrepareOptions{InputPath: input})
	require.NoError(t, err)

	prompter := &scriptedPrompter{}
	res, err := SendWithRetry(ctx, env, RetryOptions{
		Package:  pkg,
		Target:   DeliverOptions{Host: "127.0.0.1", Port: port, Code: "4242"},
		Prompter: prompter,
	})
	require.NoError(t, err)
	assert.Equal(t, RetryAbandoned, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.Nil(t, res.Result)
	assert.Equal(t, 1, prompter.endpointCalls)
	assert.ErrorIs(t, res.LastErr, kerrors.ErrConnection)
}

func TestSendRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := Send(ctx, env, SendOptions{
		InputPath:      filepath.Join(t.TempDir(), "absent.txt"),
		DeliverOptions: DeliverOptions{Host: "127.0.0.1", Port: 1, Code: "4242"},
	})
	assert.ErrorIs(t, err, kerrors.ErrFileNotFound)

	input, _ := writeInput(t, "a.txt", 8)
	_, err = Send(ctx, env, SendOptions{
		InputPath:      input,
		DeliverOptions: DeliverOptions{Host: "127.0.0.1", Port: 1, Code: "42 42"},
	})
	assert.ErrorIs(t, err, kerrors.ErrInvalidSecurityCode)

	_, err = Receive(ctx, env, ReceiveOptions{Code: ""})
	assert.ErrorIs(t, err, kerrors.ErrInvalidSecurityCode)
}

func TestDecryptTruncatedEnvelopeWritesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	input, _ := writeInput(t, "data.bin", 4096)
	pkg, err := Prepare(ctx, env, PrepareOptions{InputPath: input})
	require.NoError(t, err)

	raw, err := os.ReadFile(pkg.EnvelopePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pkg.EnvelopePath, raw[:50], 0600))

	outDir := t.TempDir()
	_, err = Decrypt(ctx, env, DecryptOptions{EnvelopePath: pkg.EnvelopePath, OutputDir: outDir})
	require.ErrorIs(t, err, kerrors.ErrMalformedEnvelope)

	left, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, left)

	entries, err := env.Trail.ReadEntries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "decrypt", last.Operation)
	assert.Equal(t, audit.ResultFailed, last.Result)
}

func TestDecryptTamperedEnvelope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	input, _ := writeInput(t, "data.bin", 4096)
	pkg, err := Prepare(ctx, env, PrepareOptions{InputPath: input})
	require.NoError(t, err)

	raw, err := os.ReadFile(pkg.EnvelopePath)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	require.NoError(t, os.WriteFile(pkg.EnvelopePath, raw, 0600))

	outDir := t.TempDir()
	_, err = Decrypt(ctx, env, DecryptOptions{EnvelopePath: pkg.EnvelopePath, OutputDir: outDir})
	require.ErrorIs(t, err, kerrors.ErrAuthenticationFailure)

	_, err = Validate(ctx, env, pkg.EnvelopePath)
	assert.ErrorIs(t, err, kerrors.ErrAuthenticationFailure)

	left, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	input, _ := writeInput(t, "data.bin", 1024)
	pkg, err := Prepare(ctx, env, PrepareOptions{InputPath: input})
	require.NoError(t, err)

	res, err := Validate(ctx, env, pkg.EnvelopePath)
	require.NoError(t, err)
	assert.Equal(t, pkg.Hash, res.Hash)
	assert.Positive(t, res.ArchiveSize)

	_, err = Validate(ctx, env, filepath.Join(t.TempDir(), "missing.enc"))
	assert.ErrorIs(t, err, kerrors.ErrFileNotFound)
}

func TestLegacyDecryptRestoresBundles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	outbox := t.TempDir()
	content := []byte("quarterly figures\n")
	src := filepath.Join(outbox, "Ventas-01-02-2024.txt")
	require.NoError(t, os.WriteFile(src, content, 0600))

	server := t.TempDir()
	processor := &batch.Processor{OutboxDir: outbox, ProcessedDir: server}
	bundles, err := processor.ProcessFiles([]string{src})
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	res, err := LegacyDecrypt(ctx, env, server)
	require.NoError(t, err)
	assert.Len(t, res.Unbundled, 1)
	require.Len(t, res.Report.Restored, 1)
	assert.Empty(t, res.Report.Failed)
	assert.True(t, res.Report.Restored[0].Verified)

	got, err := os.ReadFile(res.Report.Restored[0].Output)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = LegacyDecrypt(ctx, env, filepath.Join(server, "absent"))
	assert.ErrorIs(t, err, kerrors.ErrFileNotFound)
}

func TestBatchSendPreconditions(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t)
	env.Config.SFTP.Host = ""
	_, err := BatchSend(ctx, env, BatchOptions{})
	assert.ErrorIs(t, err, kerrors.ErrMissingRemoteHost)

	env = newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.Settings.OutboxPath, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(env.Settings.OutboxPath, "not-matching.txt"), []byte("x"), 0600))

	_, err = BatchSend(ctx, env, BatchOptions{Host: "127.0.0.1"})
	assert.ErrorIs(t, err, kerrors.ErrNoFilesFound)
	assert.False(t, env.Keys().Exists(), "no key should be generated when nothing is bundled")
}

func TestClearHistoryAndHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	input, _ := writeInput(t, "a.txt", 16)
	for _, id := range []string{"20240101_000000", "20240102_000000"} {
		_, err := Prepare(ctx, env, PrepareOptions{InputPath: input, SessionID: id})
		require.NoError(t, err)
	}
	env.Trail.Log(audit.Entry{Timestamp: "2024-01-01T10:00:00.000000Z", User: "tester", Operation: "send", Result: audit.ResultOK})
	env.Trail.Log(audit.Entry{Timestamp: "2024-02-01T10:00:00.000000Z", User: "other", Operation: "receive", Result: audit.ResultOK})

	hist, err := History(ctx, env, HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101_000000", "20240102_000000"}, hist.Sessions)
	assert.Len(t, hist.Entries, 2)

	hist, err = History(ctx, env, HistoryOptions{Since: "2024-01-15"})
	require.NoError(t, err)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "receive", hist.Entries[0].Operation)

	hist, err = History(ctx, env, HistoryOptions{User: "TESTER", Operations: "send, decrypt"})
	require.NoError(t, err)
	assert.Len(t, hist.Entries, 1)

	_, err = History(ctx, env, HistoryOptions{Until: "01/02/2024"})
	assert.ErrorIs(t, err, kerrors.ErrInvalidDateFormat)

	cleared, err := ClearHistory(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared.Removed)

	hist, err = History(ctx, env, HistoryOptions{Operations: "history-clear"})
	require.NoError(t, err)
	assert.Empty(t, hist.Sessions)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, 2, hist.Entries[0].RemovedCount)
	assert.Equal(t, "removed 2 sessions", FormatDetails(hist.Entries[0]))
}

// seedKeys writes a small keypair where Env.Keys expects it so tests do
// not pay for 4096-bit generation.
func seedKeys(t *testing.T, env *Env) {
	t.Helper()
	manager := env.Keys()
	manager.Bits = 2048
	_, err := manager.Ensure(false)
	require.NoError(t, err)
}

func TestKeysAndInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := ShowKeys(ctx, env)
	assert.ErrorIs(t, err, kerrors.ErrPublicKeyNotFound)

	info, err := Info(ctx, env)
	require.NoError(t, err)
	assert.Empty(t, info.PublicKeyPath)
	assert.Equal(t, 5000, info.Port)

	seedKeys(t, env)

	generated, err := GenerateKeys(ctx, env, false)
	require.NoError(t, err)
	assert.False(t, generated.Keypair.Generated, "existing keys must be reused")

	shown, err := ShowKeys(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, generated.Fingerprint, shown.Fingerprint)
	assert.Contains(t, shown.PublicKey, "ssh-rsa ")
	assert.Contains(t, shown.PublicKey, "tester@test-host")

	info, err = Info(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, env.Keys().PublicPath(), info.PublicKeyPath)
	assert.Equal(t, shown.Fingerprint, info.Fingerprint)

	text := Enrollment(env, "files.internal", "uploader")
	assert.Contains(t, text, "files.internal")
	assert.Contains(t, text, "uploader")

	entries, err := env.Trail.ReadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keys", entries[0].Operation)
	assert.Equal(t, "reused", entries[0].Result)
}

func TestExchangeServeAndConnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	server := newTestEnv(t)
	client := newTestEnv(t)
	seedKeys(t, server)
	seedKeys(t, client)

	accept := keyexchange.ConfirmFunc(func(context.Context, keyexchange.Role, keyexchange.Peer) (bool, error) {
		return true, nil
	})

	// Port 0 would fall back to the configured port, so reserve one.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	listening := make(chan struct{})
	type outcome struct {
		res *keyexchange.Result
		err error
	}
	served := make(chan outcome, 1)
	go func() {
		res, err := ExchangeServe(ctx, server, ExchangeOptions{
			Port:        port,
			Confirmer:   accept,
			OnListening: func(net.Addr) { close(listening) },
		})
		served <- outcome{res, err}
	}()

	select {
	case <-listening:
	case out := <-served:
		t.Fatalf("server stopped before listening: %v", out.err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start listening")
	}

	connected, err := ExchangeConnect(ctx, client, "127.0.0.1", ExchangeOptions{Port: port, Confirmer: accept})
	require.NoError(t, err)
	assert.False(t, connected.AlreadyTrusted)

	out := <-served
	require.NoError(t, out.err)

	serverKey, err := server.Keys().PublicKeyText()
	require.NoError(t, err)
	clientKey, err := client.Keys().PublicKeyText()
	require.NoError(t, err)

	authorized, err := os.ReadFile(server.Settings.AuthorizedKeysPath)
	require.NoError(t, err)
	assert.Contains(t, string(authorized), strings.Fields(clientKey)[1])

	knownHosts, err := os.ReadFile(client.Settings.KnownHostsPath)
	require.NoError(t, err)
	assert.Contains(t, string(knownHosts), strings.Fields(serverKey)[1])

	entries, err := client.Trail.ReadEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "exchange-connect", entries[0].Operation)
	assert.Equal(t, audit.ResultOK, entries[0].Result)
}

func TestBatchHostKeysAfterExchange(t *testing.T) {
	client := newTestEnv(t)
	peer := newTestEnv(t)
	seedKeys(t, peer)
	peerKey, err := peer.Keys().PublicKeyText()
	require.NoError(t, err)

	store := &keyexchange.TrustStore{Dir: client.Settings.SSHPath}
	_, err = store.AddKnownHost("192.168.1.100", peerKey, "peer")
	require.NoError(t, err)
	before, err := os.ReadFile(client.Settings.KnownHostsPath)
	require.NoError(t, err)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	sshdKey := hostSigner.PublicKey()

	cfg := remoteConfig(client, BatchOptions{Host: "192.168.1.100", Port: 22, User: "esicorp"}, nil)
	assert.Equal(t, client.Settings.SFTPHostKeysPath, cfg.HostKeysPath)

	check, err := remote.HostKeyCallback(cfg.HostKeysPath, client.Logger)
	require.NoError(t, err)
	addr := &net.TCPAddr{IP: net.IPv4(192, 168, 1, 100), Port: 22}
	require.NoError(t, check(cfg.Addr(), addr, sshdKey))

	after, err := os.ReadFile(client.Settings.KnownHostsPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "known_hosts belongs to key exchange")

	recorded, err := os.ReadFile(client.Settings.SFTPHostKeysPath)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshdKey))))

	check, err = remote.HostKeyCallback(cfg.HostKeysPath, client.Logger)
	require.NoError(t, err)
	assert.NoError(t, check(cfg.Addr(), addr, sshdKey))
}

func TestSessionCode(t *testing.T) {
	env := newTestEnv(t)

	code, generated, err := SessionCode(env, "4242")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, "4242", code)

	code, generated, err = SessionCode(env, "")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Regexp(t, `^[1-9][0-9]{3}$`, code)
}

func TestRetryStateString(t *testing.T) {
	assert.Equal(t, "AWAIT_CODE", RetryAwaitCode.String())
	assert.Equal(t, "EXHAUSTED", RetryExhausted.String())
	assert.Equal(t, "RetryState(42)", RetryState(42).String())
}

// scriptedPrompter answers code prompts from a list and abandons once it
// runs out. Endpoint prompts are always abandoned.
type scriptedPrompter struct {
	codes []string

	codeCalls     int
	endpointCalls int
	lastCodeErr   error
}

func (p *scriptedPrompter) Code(attempt, maxAttempts int, lastErr error) (string, bool, error) {
	p.codeCalls++
	p.lastCodeErr = lastErr
	if len(p.codes) == 0 {
		return "", false, nil
	}
	code := p.codes[0]
	p.codes = p.codes[1:]
	return code, true, nil
}

func (p *scriptedPrompter) Endpoint(current DeliverOptions, lastErr error) (string, int, bool, error) {
	p.endpointCalls++
	return "", 0, false, nil
}

package keyexchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	logger "github.com/esicorp/securetransfer/internal/logging"
	"github.com/esicorp/securetransfer/internal/utils"
)

const (
	DefaultPort          = 5555
	DefaultTimeout       = 60 * time.Second
	DefaultAckTimeout    = 30 * time.Second
	DefaultAcceptTimeout = 5 * time.Minute

	acceptPollInterval = time.Second

	declinedReason = "Cancelled by user"
)

// Role says which side of the exchange is asking for confirmation.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Peer is what the operator sees before trusting a key.
type Peer struct {
	Addr        string
	Identity    HandshakeData
	Key         *KeyInfo
	Fingerprint string
}

// Confirmer gates every trust-store change on a human decision.
type Confirmer interface {
	Confirm(ctx context.Context, role Role, peer Peer) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, role Role, peer Peer) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, role Role, peer Peer) (bool, error) {
	return f(ctx, role, peer)
}

type Result struct {
	Peer Peer

	// AlreadyTrusted is set when the peer key was already on record.
	AlreadyTrusted bool

	// PeerAcknowledged is set when the peer sent its final ACK.
	PeerAcknowledged bool

	// StorePath is the trust file that was consulted.
	StorePath string
}

// Endpoint holds what both roles share.
type Endpoint struct {
	// PublicKey is the local authorized_keys line sent to the peer.
	PublicKey string
	Identity  utils.HostIdentity

	Store     *TrustStore
	Confirmer Confirmer

	Timeout    time.Duration
	AckTimeout time.Duration
	Logger     logger.Logger
}

func (e *Endpoint) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Endpoint) ackTimeout() time.Duration {
	if e.AckTimeout <= 0 {
		return DefaultAckTimeout
	}
	return e.AckTimeout
}

func (e *Endpoint) check() error {
	if e.PublicKey == "" {
		return kerrors.ErrPublicKeyNotFound
	}
	if e.Store == nil || e.Confirmer == nil {
		return errors.New("key exchange needs a trust store and a confirmer")
	}
	return nil
}

// receivePeerKey reads PUBLIC_KEY, validates it and fills peer.
func (e *Endpoint) receivePeerKey(ch *channel, peer *Peer) error {
	var data PublicKeyData
	if err := ch.recv(TypePublicKey, &data, e.timeout()); err != nil {
		return err
	}
	if data.PublicKey == "" {
		return fmt.Errorf("%w: empty public key", kerrors.ErrProtocol)
	}

	info, err := ValidatePublicKey(data.PublicKey)
	if err != nil {
		ch.abort(err.Error(), e.timeout())
		return err
	}
	fp, err := Fingerprint(info.Text)
	if err != nil {
		return err
	}
	peer.Key = info
	peer.Fingerprint = fp
	e.Logger.Infof("Peer key %s (%d bits) %s", info.Type, info.Bits, fp)
	return nil
}

func (e *Endpoint) sendPublicKey(ch *channel) error {
	return ch.send(TypePublicKey, PublicKeyData{
		PublicKey: e.PublicKey,
		Hostname:  e.Identity.Hostname,
		User:      e.Identity.User,
	}, e.timeout())
}

// confirm asks the operator and tells the peer when they decline.
func (e *Endpoint) confirm(ctx context.Context, ch *channel, role Role, peer Peer) error {
	ok, err := e.Confirmer.Confirm(ctx, role, peer)
	if err != nil {
		ch.abort(declinedReason, e.timeout())
		return err
	}
	if !ok {
		ch.abort(declinedReason, e.timeout())
		return kerrors.ErrUserDeclined
	}
	return nil
}

// guard closes conn when ctx ends and maps errors caused by that close back
// to ctx.Err().
func guard(ctx context.Context, conn net.Conn) (func(error) error, func() bool) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return func(err error) error {
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}, stop
}

// Server installs the client's key into authorized_keys.
type Server struct {
	Endpoint

	// AcceptTimeout bounds the wait for a client in Serve.
	AcceptTimeout time.Duration
}

// Exchange runs the server side on an accepted connection: HANDSHAKE both
// ways, send our PUBLIC_KEY, receive theirs, confirm, install, ACK.
func (s *Server) Exchange(ctx context.Context, conn net.Conn) (*Result, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	mapErr, stop := guard(ctx, conn)
	defer stop()

	res, err := s.exchange(ctx, newChannel(conn), conn.RemoteAddr().String())
	return res, mapErr(err)
}

func (s *Server) exchange(ctx context.Context, ch *channel, addr string) (*Result, error) {
	peer := Peer{Addr: addr}
	res := &Result{StorePath: s.Store.AuthorizedKeysPath()}

	if err := ch.send(TypeHandshake, handshakeFrom(s.Identity), s.timeout()); err != nil {
		return nil, err
	}
	if err := ch.recv(TypeHandshake, &peer.Identity, s.timeout()); err != nil {
		return nil, err
	}
	s.Logger.Infof("Handshake from %s@%s (%s)", peer.Identity.User, peer.Identity.Hostname, peer.Identity.System)

	if err := s.sendPublicKey(ch); err != nil {
		return nil, err
	}
	if err := s.receivePeerKey(ch, &peer); err != nil {
		return nil, err
	}
	res.Peer = peer

	if err := s.confirm(ctx, ch, RoleServer, peer); err != nil {
		return nil, err
	}

	added, err := s.Store.AddAuthorizedKey(peer.Key.Text, peer.Identity.Hostname)
	if err != nil {
		ch.abort(err.Error(), s.timeout())
		return nil, err
	}
	res.AlreadyTrusted = !added

	msg := "Key installed on server"
	if !added {
		msg = "Key already configured on server"
	}
	if err := ch.send(TypeAck, AckData{Status: "exito", Message: msg}, s.timeout()); err != nil {
		return nil, err
	}

	var ack AckData
	if err := ch.recv(TypeAck, &ack, s.ackTimeout()); err != nil {
		s.Logger.WarnfUser("Client did not confirm the exchange: %v", err)
	} else {
		res.PeerAcknowledged = true
	}
	return res, nil
}

// Serve waits for one client on ln, runs the exchange and closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (*Result, error) {
	defer ln.Close()

	wait := s.AcceptTimeout
	if wait <= 0 {
		wait = DefaultAcceptTimeout
	}
	deadline := time.Now().Add(wait)

	type deadliner interface{ SetDeadline(time.Time) error }
	dl, canPoll := ln.(deadliner)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no client connected within %s", kerrors.ErrConnection, wait)
		}
		if canPoll {
			if err := dl.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
				return nil, err
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return nil, fmt.Errorf("%w: accept: %v", kerrors.ErrConnection, err)
		}
		defer conn.Close()

		s.Logger.Infof("Key exchange client connected from %s", conn.RemoteAddr())
		return s.Exchange(ctx, conn)
	}
}

// ListenAndExchange binds addr and serves a single exchange.
func (s *Server) ListenAndExchange(ctx context.Context, addr string) (*Result, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %s: %v", kerrors.ErrConnection, addr, err)
	}
	return s.Serve(ctx, ln)
}

// Client installs the server's key into known_hosts.
type Client struct {
	Endpoint

	DialTimeout time.Duration
}

// Exchange runs the client side: HANDSHAKE both ways, receive the server's
// PUBLIC_KEY, send ours, confirm, record the server under serverHost, then
// wait for the server's ACK and answer it.
func (c *Client) Exchange(ctx context.Context, conn net.Conn, serverHost string) (*Result, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	mapErr, stop := guard(ctx, conn)
	defer stop()

	res, err := c.exchange(ctx, newChannel(conn), serverHost)
	return res, mapErr(err)
}

func (c *Client) exchange(ctx context.Context, ch *channel, serverHost string) (*Result, error) {
	peer := Peer{Addr: serverHost}
	res := &Result{StorePath: c.Store.KnownHostsPath()}

	if err := ch.send(TypeHandshake, handshakeFrom(c.Identity), c.timeout()); err != nil {
		return nil, err
	}
	if err := ch.recv(TypeHandshake, &peer.Identity, c.timeout()); err != nil {
		return nil, err
	}
	c.Logger.Infof("Handshake from %s@%s (%s)", peer.Identity.User, peer.Identity.Hostname, peer.Identity.System)

	if err := c.receivePeerKey(ch, &peer); err != nil {
		return nil, err
	}
	res.Peer = peer

	if err := c.sendPublicKey(ch); err != nil {
		return nil, err
	}

	if err := c.confirm(ctx, ch, RoleClient, peer); err != nil {
		return nil, err
	}

	added, err := c.Store.AddKnownHost(serverHost, peer.Key.Text, peer.Identity.Hostname)
	if err != nil {
		ch.abort(err.Error(), c.timeout())
		return nil, err
	}
	res.AlreadyTrusted = !added

	var ack AckData
	if err := ch.recv(TypeAck, &ack, c.ackTimeout()); err != nil {
		return nil, err
	}
	res.PeerAcknowledged = true
	c.Logger.Infof("Server confirmed: %s", ack.Message)

	if err := ch.send(TypeAck, AckData{Status: "exito", Message: "Key configured on client"}, c.timeout()); err != nil {
		return nil, err
	}
	return res, nil
}

// DialAndExchange connects to host:port and runs the client side.
func (c *Client) DialAndExchange(ctx context.Context, host string, port int) (*Result, error) {
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrConnection, addr, err)
	}
	defer conn.Close()

	return c.Exchange(ctx, conn, host)
}

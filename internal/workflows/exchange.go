package workflows

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/esicorp/securetransfer/internal/audit"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/keyexchange"
)

// ExchangeOptions configures either side of a key exchange.
type ExchangeOptions struct {
	// Port defaults to the [exchange] port.
	Port int

	Confirmer keyexchange.Confirmer

	// OnListening reports the bound address on the server side.
	OnListening func(addr net.Addr)
}

// ExchangeServe waits for one client and installs its key into
// authorized_keys. The local keypair is generated if missing.
func ExchangeServe(ctx context.Context, env *Env, opts ExchangeOptions) (*keyexchange.Result, error) {
	entry := env.Trail.New("exchange-serve")

	result, err := exchangeServe(ctx, env, opts)
	recordExchange(&entry, result, err)
	env.Trail.Log(entry)

	return result, err
}

func exchangeServe(ctx context.Context, env *Env, opts ExchangeOptions) (*keyexchange.Result, error) {
	endpoint, err := exchangeEndpoint(env, opts)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if port == 0 {
		port = env.Config.Exchange.Port
	}
	addr := net.JoinHostPort("", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %s: %v", kerrors.ErrConnection, addr, err)
	}
	env.Logger.Infof("Waiting for key exchange on %s", ln.Addr())
	if opts.OnListening != nil {
		opts.OnListening(ln.Addr())
	}

	server := &keyexchange.Server{
		Endpoint:      *endpoint,
		AcceptTimeout: env.Config.Exchange.AcceptTimeout(),
	}
	return server.Serve(ctx, ln)
}

// ExchangeConnect contacts a server and records its key in known_hosts.
func ExchangeConnect(ctx context.Context, env *Env, host string, opts ExchangeOptions) (*keyexchange.Result, error) {
	entry := env.Trail.New("exchange-connect")

	result, err := exchangeConnect(ctx, env, host, opts)
	recordExchange(&entry, result, err)
	if entry.Peer == "" {
		entry.Peer = host
	}
	env.Trail.Log(entry)

	return result, err
}

func exchangeConnect(ctx context.Context, env *Env, host string, opts ExchangeOptions) (*keyexchange.Result, error) {
	endpoint, err := exchangeEndpoint(env, opts)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if port == 0 {
		port = env.Config.Exchange.Port
	}
	client := &keyexchange.Client{
		Endpoint:    *endpoint,
		DialTimeout: env.Config.Network.DialTimeout(),
	}
	return client.DialAndExchange(ctx, host, port)
}

func exchangeEndpoint(env *Env, opts ExchangeOptions) (*keyexchange.Endpoint, error) {
	manager := env.Keys()
	if _, err := manager.Ensure(false); err != nil {
		return nil, fmt.Errorf("preparing SSH keys: %w", err)
	}
	publicKey, err := manager.PublicKeyText()
	if err != nil {
		return nil, err
	}

	return &keyexchange.Endpoint{
		PublicKey: publicKey,
		Identity:  env.Identity,
		Store:     &keyexchange.TrustStore{Dir: env.Settings.SSHPath},
		Confirmer: opts.Confirmer,
		Timeout:   env.Config.Exchange.Timeout(),
		Logger:    env.Logger,
	}, nil
}

func recordExchange(entry *audit.Entry, result *keyexchange.Result, err error) {
	if result != nil {
		entry.Peer = result.Peer.Addr
		entry.Hash = result.Peer.Fingerprint
		entry.Files = []string{result.StorePath}
		if result.AlreadyTrusted {
			entry.Result = "already-trusted"
		}
	}
	entry.Fail(err)
}

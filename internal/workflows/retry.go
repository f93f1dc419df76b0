package workflows

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
)

// MaxSendAttempts bounds the deliveries SendWithRetry makes for one package.
const MaxSendAttempts = 5

// RetryState is a step of the retrying send loop.
type RetryState int

const (
	RetryAwaitCode RetryState = iota
	RetryAwaitEndpoint
	RetryDelivering
	RetryDelivered
	RetryAbandoned
	RetryExhausted
)

func (s RetryState) String() string {
	switch s {
	case RetryAwaitCode:
		return "AWAIT_CODE"
	case RetryAwaitEndpoint:
		return "AWAIT_ENDPOINT"
	case RetryDelivering:
		return "DELIVERING"
	case RetryDelivered:
		return "DELIVERED"
	case RetryAbandoned:
		return "ABANDONED"
	case RetryExhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("RetryState(%d)", int(s))
	}
}

// Prompter supplies operator input between attempts. Returning ok == false
// abandons the send.
type Prompter interface {
	// Code asks for a security code. lastErr is the failure that led here,
	// nil on the first prompt.
	Code(attempt, maxAttempts int, lastErr error) (code string, ok bool, err error)

	// Endpoint asks for a new receiver address after a connection failure.
	Endpoint(current DeliverOptions, lastErr error) (host string, port int, ok bool, err error)
}

// RetryOptions configures SendWithRetry.
type RetryOptions struct {
	Package *Package

	// Target is the first endpoint to try. An empty or invalid Code starts
	// the loop with a code prompt.
	Target DeliverOptions

	// MaxAttempts defaults to MaxSendAttempts.
	MaxAttempts int

	Prompter Prompter

	// OnState, if set, observes every transition.
	OnState func(state RetryState, attempt int)
}

// RetryResult is the final state of the loop. Result is nil unless the
// package was delivered.
type RetryResult struct {
	State    RetryState
	Attempts int
	Result   *SendResult
	LastErr  error
}

// SendWithRetry delivers a built package, re-prompting for the code after a
// rejection and for the endpoint after a connection failure. The envelope
// is never rebuilt. Each delivery counts as an attempt; after MaxAttempts
// the loop ends with ErrTooManyAttempts. Protocol and other unexpected
// errors end the loop immediately.
//
// Abandoning is not an error: the result reports RetryAbandoned.
func SendWithRetry(ctx context.Context, env *Env, opts RetryOptions) (*RetryResult, error) {
	entry := env.Trail.New("send")
	entry.Session = opts.Package.Session.ID
	entry.Hash = opts.Package.Hash
	entry.Files = []string{opts.Package.Filename}

	res, err := sendWithRetry(ctx, env, opts)
	if res != nil {
		entry.Attempts = res.Attempts
		entry.Peer = opts.Target.Addr()
		if res.Result != nil {
			entry.Peer = res.Result.Addr
			entry.Bytes = res.Result.BytesSent
		}
		if res.State == RetryAbandoned {
			entry.Result = "abandoned"
		}
	}
	entry.Fail(err)
	env.Trail.Log(entry)

	return res, err
}

func sendWithRetry(ctx context.Context, env *Env, opts RetryOptions) (*RetryResult, error) {
	if opts.Package == nil {
		return nil, fmt.Errorf("no package to send")
	}
	if opts.Prompter == nil {
		return nil, fmt.Errorf("no prompter configured")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = MaxSendAttempts
	}

	res := &RetryResult{State: RetryDelivering}
	target := opts.Target
	if target.Code == "" {
		res.State = RetryAwaitCode
	}

	for {
		if opts.OnState != nil {
			opts.OnState(res.State, res.Attempts)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		switch res.State {
		case RetryAwaitCode:
			code, ok, err := opts.Prompter.Code(res.Attempts+1, maxAttempts, res.LastErr)
			if err != nil {
				return res, err
			}
			if !ok {
				res.State = RetryAbandoned
				continue
			}
			target.Code = code
			res.State = RetryDelivering

		case RetryAwaitEndpoint:
			host, port, ok, err := opts.Prompter.Endpoint(target, res.LastErr)
			if err != nil {
				return res, err
			}
			if !ok {
				res.State = RetryAbandoned
				continue
			}
			target.Host, target.Port = host, port
			res.State = RetryDelivering

		case RetryDelivering:
			res.Attempts++
			sent, err := Deliver(ctx, env, opts.Package, target)
			if err == nil {
				sent.Attempts = res.Attempts
				res.Result = sent
				res.LastErr = nil
				res.State = RetryDelivered
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.LastErr = err

			switch {
			case res.Attempts >= maxAttempts:
				res.State = RetryExhausted
			case errors.Is(err, kerrors.ErrAuthenticationRejected),
				errors.Is(err, kerrors.ErrInvalidSecurityCode):
				env.Logger.Warnf("Attempt %d/%d: %v", res.Attempts, maxAttempts, err)
				res.State = RetryAwaitCode
			case errors.Is(err, kerrors.ErrConnection):
				env.Logger.Warnf("Attempt %d/%d: %v", res.Attempts, maxAttempts, err)
				res.State = RetryAwaitEndpoint
			default:
				return res, err
			}

		case RetryDelivered, RetryAbandoned:
			return res, nil

		case RetryExhausted:
			return res, fmt.Errorf("%w: %d attempts: %v", kerrors.ErrTooManyAttempts, res.Attempts, res.LastErr)

		default:
			return res, fmt.Errorf("unknown retry state %s", res.State)
		}
	}
}

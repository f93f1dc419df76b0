// Package workflows provides high-level orchestration for securetransfer
// commands.
//
// Workflows coordinate multiple operations across packages (packaging,
// transfer, keys, remote, keyexchange, batch, audit) to implement complete
// user-facing features. Each workflow handles a single command's business
// logic, independent of CLI concerns like flag parsing, spinners, prompts
// and output formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Resolving defaults from configuration
//   - Performing the core operation
//   - Recording audit trail entries
//
// Every workflow receives an *Env built once per run. It holds the
// configuration, resolved paths, the derived transfer key and the audit
// trail; nothing is read from package-level state.
//
// # Available Workflows
//
//   - Prepare, Deliver, Send: package a file or folder and transmit it
//   - SendWithRetry: bounded retry loop over an already built package
//   - Receive: listen for one authenticated transfer, optionally decrypt
//   - Decrypt, Validate: open a received envelope
//   - BatchSend: bundle outbox files and upload them over SFTP
//   - LegacyDecrypt: restore uploaded bundles on the server
//   - GenerateKeys, ShowKeys: manage the SFTP keypair
//   - ExchangeServe, ExchangeConnect: trade public keys with a peer
//   - History, ClearHistory, Info
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching. Use errors.Is() to check for specific error conditions:
//
//	result, err := workflows.BatchSend(ctx, env, opts)
//	if errors.Is(err, kerrors.ErrRemoteAuthRequired) {
//	    // Show enrollment instructions
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Cancelling it closes sockets and stops listeners.
package workflows

// Package errors provides typed error values for securetransfer.
//
// Sentinel errors let callers react to specific failure conditions with
// errors.Is() rather than string matching. The CLI layer uses them to pick
// a remedy: re-enter an endpoint, re-enter a security code, show SFTP
// enrollment instructions, or abort.
//
// # Error Categories
//
//   - Transport errors: ErrConnection, ErrAuthenticationRejected, ErrProtocol, ErrShortRead
//   - Crypto errors: ErrAuthenticationFailure, ErrIntegrityMismatch, ErrMalformedEnvelope
//   - Key errors: ErrPrivateKeyNotFound, ErrInvalidPublicKey, ErrUnsupportedKeyType
//   - Remote errors: ErrRemoteAuthRequired, ErrSizeMismatch
//   - Exchange errors: ErrPeerDeclined, ErrUserDeclined
//   - File errors: ErrNoFilesFound, ErrFileNotFound
//
// # Usage
//
// Wrap sentinels with context:
//
//	return fmt.Errorf("dialing %s: %w", addr, errors.ErrConnection)
//
// Handle them in the CLI layer:
//
//	result, err := workflows.Send(ctx, opts)
//	if errors.Is(err, kerrors.ErrAuthenticationRejected) {
//	    // Re-prompt for the security code
//	}
package errors

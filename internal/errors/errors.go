package errors

import "errors"

// Transport errors indicate failures establishing or driving a peer connection.
var (
	// ErrConnection indicates the peer could not be reached (refused, unreachable, timeout).
	ErrConnection = errors.New("connection failed")

	// ErrAuthenticationRejected indicates the receiver rejected the security code.
	ErrAuthenticationRejected = errors.New("security code rejected by receiver")

	// ErrProtocol indicates a peer sent an unexpected or malformed protocol message.
	ErrProtocol = errors.New("protocol violation")

	// ErrShortRead indicates the peer closed the connection before the announced byte count arrived.
	ErrShortRead = errors.New("connection closed before transfer completed")

	// ErrPayloadTooLarge indicates the announced payload size exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("announced payload exceeds size limit")

	// ErrTooManyAttempts indicates the retry budget for a transfer was exhausted.
	ErrTooManyAttempts = errors.New("too many failed attempts")

	// ErrInvalidSecurityCode indicates a code that cannot travel as a single protocol token.
	ErrInvalidSecurityCode = errors.New("invalid security code")
)

// Cryptographic errors indicate failures during encryption, decryption or verification.
var (
	// ErrAuthenticationFailure indicates an AEAD tag did not verify (wrong key, tampered data or wrong nonce).
	ErrAuthenticationFailure = errors.New("authentication tag verification failed")

	// ErrIntegrityMismatch indicates decrypted content does not match its recorded hash.
	ErrIntegrityMismatch = errors.New("content hash mismatch")

	// ErrMalformedEnvelope indicates an envelope is too short or structurally invalid.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidPadding indicates PKCS#7 padding could not be removed.
	ErrInvalidPadding = errors.New("invalid PKCS#7 padding")

	// ErrInvalidArchive indicates an archive could not be read or contains unsafe entries.
	ErrInvalidArchive = errors.New("invalid archive")
)

// Key errors indicate problems with the local SSH identity or peer keys.
var (
	// ErrPrivateKeyNotFound indicates the local private key could not be located.
	ErrPrivateKeyNotFound = errors.New("private key not found")

	// ErrPublicKeyNotFound indicates the local public key could not be located.
	ErrPublicKeyNotFound = errors.New("public key not found")

	// ErrInvalidPrivateKey indicates the private key is malformed or unsupported.
	ErrInvalidPrivateKey = errors.New("invalid or unsupported private key format")

	// ErrPassphraseRequired indicates the private key is passphrase-protected.
	ErrPassphraseRequired = errors.New("private key is passphrase-protected")

	// ErrInvalidPublicKey indicates a public key could not be parsed.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrUnsupportedKeyType indicates a public key uses a type this tool does not accept.
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// Remote errors indicate SFTP session failures.
var (
	// ErrRemoteAuthRequired indicates the remote host has not yet trusted the local public key.
	ErrRemoteAuthRequired = errors.New("remote host does not trust this key")

	// ErrSizeMismatch indicates the uploaded file size differs from the local file.
	ErrSizeMismatch = errors.New("remote file size does not match local file")
)

// Exchange errors indicate the key exchange was aborted by a human decision.
var (
	// ErrPeerDeclined indicates the remote operator declined the exchange.
	ErrPeerDeclined = errors.New("peer declined the key exchange")

	// ErrUserDeclined indicates the local operator declined the exchange.
	ErrUserDeclined = errors.New("key exchange declined")
)

// File errors indicate issues with file discovery or access.
var (
	// ErrNoFilesFound indicates no files matched the discovery rules.
	ErrNoFilesFound = errors.New("no matching files found")

	// ErrFileNotFound indicates a specific file could not be located.
	ErrFileNotFound = errors.New("file not found")
)

// Input errors indicate problems with operator-supplied values.
var (
	// ErrInvalidDateFormat indicates a date filter that is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format")

	// ErrMissingRemoteHost indicates a batch upload without a target host.
	ErrMissingRemoteHost = errors.New("no remote host configured")
)

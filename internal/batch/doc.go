// Package batch implements the legacy bundle format used for SFTP uploads.
//
// For every file in the outbox a bundle <stem>.zip is written to the
// processed directory containing:
//
//	<stem>.enc       [IV 16][key 32][AES-256-CBC(base64(content))]
//	<stem>.hash.txt  SHA-256, original name and timestamp
//	metadata.txt     human readable summary
//
// The key travels inside the bundle, so the format protects against
// accidental corruption, not against anyone who can read the bundle.
// Decryptor is the server side counterpart.
package batch

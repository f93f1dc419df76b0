// Package crypto holds the two payload codecs and content hashing.
//
// Engine is the live network codec: AES-256-GCM under a key derived once
// with PBKDF2-HMAC-SHA256 from the configured passphrase and salt. Every
// Encrypt call draws a fresh nonce; Decrypt fails with
// errors.ErrAuthenticationFailure when the tag does not verify.
//
// LegacyEnvelope is the batch codec used by the SFTP path: AES-256-CBC with
// PKCS#7 padding and the key stored inside the artifact. The two codecs are
// deliberately separate because their byte layouts differ.
//
// Hash, HashReader and HashFile compute hex SHA-256 digests, reading in
// 4096-byte chunks.
package crypto

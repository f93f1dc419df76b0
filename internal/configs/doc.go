// Package configs manages securetransfer configuration.
//
// Configuration is stored in TOML. The file is looked up as, in order:
//
//   - the path given with --config
//   - securetransfer.toml in the working directory
//   - <user config dir>/securetransfer/config.toml
//
// A missing file is not an error: every key has a default, and a partial
// file only overrides the keys it names. Unknown keys are rejected so
// typos surface early.
//
// # Sections
//
//   - [identity]: installation UUID, generated on first use
//   - [crypto]: passphrase, salt and PBKDF2 iterations of the shared key
//   - [network]: socket transfer port, buffer size, payload ceiling
//   - [sftp]: batch upload target
//   - [exchange]: key exchange port and timeouts
//   - [paths]: transfers, keys, outbox, processed and SSH directories
//
// Config.Settings resolves relative paths against a base directory so
// tests can point a whole run at a temporary directory.
package configs

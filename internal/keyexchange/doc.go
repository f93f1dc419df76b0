// Package keyexchange swaps SSH public keys between two hosts so the SFTP
// path can authenticate without copying keys by hand.
//
// Messages are JSON objects {"tipo", "timestamp", "datos"}, one per write.
// The server installs the client's key into authorized_keys; the client
// records the server's key in known_hosts under the address it dialed.
// Either operator can decline after seeing the peer's fingerprint, in
// which case an ERROR message is sent and no file is touched.
package keyexchange

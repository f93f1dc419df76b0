// Package utils provides shared helpers for securetransfer.
//
// # System Utilities
//
//   - GetUsername, GetHostname: local identity
//   - LocalIP: address of the outbound interface, shown to peers
//   - LocalIdentity: hostname, user and OS with placeholder fallbacks
//
// # Filesystem Utilities
//
//   - FileExists, DirExists, EnsureDir
//
// # String Utilities
//
//   - Mask, IsValidSecurityCode
//
// # Terminal Utilities
//
//   - ReadSecret: hidden entry of security codes
//   - IsTerminal, ClearScreen
package utils

// Package audit provides audit trail logging for securetransfer operations.
//
// Every significant operation (send, receive, decrypt, batch upload, key
// exchange, history clear) is recorded in a local audit log next to the
// transfer sessions. This gives the operator a record of what left or
// entered the machine and when.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	transfers/audit.jsonl
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - Local user, hostname and installation UUID
//   - Operation name and result
//   - Operation-specific details (session, peer, files, hash, etc.)
//
// # Usage
//
//	entry := trail.New("send")
//	entry.Session = session.ID
//	entry.Fail(err)
//	trail.Log(entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries() to parse the audit log for display or analysis.
// Malformed entries are silently skipped to handle partial writes.
package audit

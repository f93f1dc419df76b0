// Package packaging turns filesystem input into a transport-ready envelope
// and back.
//
// The send side runs Stage (a sanitized private copy in a temporary
// directory), Archive (deflate zip, staging removed afterwards) and Seal
// (Base64, hash, encrypt). The receive side runs ReadEnvelope, Open
// (decrypt, decode, verify digest) and Extract.
//
// Sessions group the artifacts of one transfer under
// <transfers>/<YYYYMMDD_HHMMSS>/{sender,receiver}. They are never removed
// automatically; ClearHistory removes them all.
package packaging

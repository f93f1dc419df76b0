// Package remote uploads files over SFTP using the local RSA identity.
//
// Only public key authentication is offered. When the server rejects the
// key, Connect returns ErrRemoteAuthRequired so the caller can print
// EnrollmentInstructions instead of retrying.
package remote

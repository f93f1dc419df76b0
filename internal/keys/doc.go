// Package keys manages the local RSA identity used to authenticate SFTP
// uploads.
//
// The private key is stored as an unencrypted PKCS#1 PEM file readable only
// by its owner; the public key is a single authorized_keys line that can be
// pasted into a server or sent through the key exchange.
package keys

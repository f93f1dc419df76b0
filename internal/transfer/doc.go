// Package transfer implements the direct socket transfer between two
// hosts.
//
// One session on the wire:
//
//	sender                          receiver
//	CODE:<code>          ------>
//	                     <------    OK | FAIL
//	name<SEPARATOR>size<SEPARATOR>session
//	                     ------>
//	                     <------    READY
//	<size raw bytes>     ------>
//
// Text messages are sent with a single write and read with a single read.
// On FAIL the receiver drops that connection and keeps listening; every
// other failure ends the receive. The payload is stored as
// <base>/<session>/receiver/received.enc.
//
// The package moves opaque bytes. Sealing and opening envelopes lives in
// the packaging package.
package transfer

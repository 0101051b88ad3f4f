// Package server owns the listening endpoint and the per-peer streaming
// loop. It serves exactly one peer at a time: accept, stream until the link
// drops, loop back to accept.
package server

import (
	"io"
	"time"
)

// Conn is one accepted peer link. The daemon only ever writes to peers.
type Conn interface {
	io.WriteCloser
	// RemoteAddr identifies the peer, e.g. its bluetooth device address.
	RemoteAddr() string
	// SetWriteDeadline bounds the next Write so a half-open peer surfaces
	// as an error instead of stalling the loop.
	SetWriteDeadline(t time.Time) error
}

// Listener produces peer links one at a time. Close must unblock a pending
// Accept, which then returns an error.
type Listener interface {
	Accept() (Conn, error)
	Close() error
}

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"io"
	"net"
	"time"
)

// Transport is the opaque per-connection I/O handle the protocol engine
// consumes, per spec.md §1 ("TCP transport ... delivers raw byte buffers
// and accepts raw byte writes"). *net.TCPConn satisfies it directly;
// internal/nettransport wraps *net.TCPConn to add the socket tuning
// described in SPEC_FULL.md §2, and the protocol tests substitute an
// in-memory fake that records writes.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer

	// SetReadDeadline arms the 300ms poll-for-shutdown deadline described
	// in spec.md §5. The connection worker ignores errors from this call;
	// a transport that cannot take a deadline fails on the Read that
	// follows, and that Read error ends the connection.
	SetReadDeadline(t time.Time) error

	RemoteAddr() net.Addr
}

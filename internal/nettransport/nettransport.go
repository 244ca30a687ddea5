// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package nettransport binds gowsproto's api.Transport onto a plain
// net.TCPConn. The teacher's internal/transport tunes raw non-blocking
// sockets with golang.org/x/sys/unix for a NUMA-pinned reactor; the
// blocking-read-per-connection design here needs none of that machinery,
// but the same TCP_NODELAY tuning is still worth doing, so it is kept and
// re-grounded on net.TCPConn.SyscallConn().Control, the standard way to
// reach setsockopt from an already-connected net.Conn.
package nettransport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Conn adapts *net.TCPConn to api.Transport (io.Reader/io.Writer/io.Closer
// plus SetReadDeadline and RemoteAddr, which *net.TCPConn already
// satisfies structurally — Conn exists so tuning happens exactly once, at
// construction).
type Conn struct {
	*net.TCPConn
}

// WrapConn tunes and adapts an already-accepted or already-dialed TCP
// connection. Tuning failures are non-fatal (some sandboxes forbid
// setsockopt); the connection is still usable, just with Nagle enabled.
func WrapConn(tc *net.TCPConn) *Conn {
	_ = tuneTCP(tc)
	return &Conn{TCPConn: tc}
}

// Listener wraps *net.TCPListener, tuning every accepted connection
// before handing it back.
type Listener struct {
	ln *net.TCPListener
}

// Listen binds addr (host:port) with SO_REUSEADDR set on the listening
// socket, so a restarted server can rebind immediately past TIME_WAIT.
func Listen(addr string) (*Listener, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nettransport: listen %q: %w", addr, err)
	}
	tln, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("nettransport: listen %q: not a TCP listener", addr)
	}
	return &Listener{ln: tln}, nil
}

// Accept blocks for the next inbound connection, tunes it, and returns it
// wrapped as an api.Transport-compatible *Conn.
func (l *Listener) Accept() (*Conn, error) {
	tc, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	return WrapConn(tc), nil
}

// Close stops accepting new connections. In-flight connections are
// unaffected.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr reports the bound local address, useful when addr was ":0".
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Dial opens a client-side connection to addr with a bounded connect
// timeout.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nettransport: dial %q: %w", addr, err)
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("nettransport: dial %q: not a TCP connection", addr)
	}
	return WrapConn(tc), nil
}

//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nettransport

import (
	"net"
	"syscall"
)

// tuneTCP disables Nagle's algorithm outside Linux through the standard
// library's net.TCPConn.SetNoDelay instead of a direct setsockopt call.
func tuneTCP(tc *net.TCPConn) error {
	return tc.SetNoDelay(true)
}

// controlReuseAddr is a no-op outside Linux; golang.org/x/sys/unix's
// SO_REUSEADDR constant is not portable to every platform this module
// might build on, and net.ListenConfig has no ambient equivalent.
func controlReuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}

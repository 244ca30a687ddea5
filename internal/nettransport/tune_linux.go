//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package nettransport

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddr sets SO_REUSEADDR on the listening socket before bind,
// matching the teacher's setsockopt-before-bind pattern in
// internal/transport/transport_linux.go (there applied to TCP_NODELAY on
// a connected socket; the option and timing differ but the mechanism —
// reach into the raw fd via a Control callback — is the same one).
func controlReuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// tuneTCP disables Nagle's algorithm, matching the teacher's Linux
// transport's setsockopt(TCP_NODELAY, 1) call. WebSocket frames are
// typically small and latency-sensitive (ping/pong, control frames), so
// coalescing them for a 40ms Nagle window is the wrong tradeoff here.
func tuneTCP(tc *net.TCPConn) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return fmt.Errorf("nettransport: syscall conn: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if err != nil {
		return fmt.Errorf("nettransport: control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("nettransport: setsockopt TCP_NODELAY: %w", sockErr)
	}
	return nil
}

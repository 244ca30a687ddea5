// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RunLoop is the blocking-read worker shared by the server and client
// façades. It replaces the C original's thread-per-connection loop (a
// blocking recv() with a short timeout, polled against a shutdown flag)
// with the same shape translated to Go: SetReadDeadline plus a select on
// a shutdown channel, per spec.md's Design Notes.

package protocol

import (
	"errors"
	"net"
	"time"

	"github.com/momentics/gowsproto/api"
)

// pollInterval bounds each blocking Read so the loop can periodically
// check the shutdown signal and the handshake/message watchdogs.
const pollInterval = 300 * time.Millisecond

// RunLoop reads from tr, feeding bytes to conn.Ingest, until the
// connection closes or shutdown fires. It owns conn's read buffer and
// the handshake/message-timeout watchdogs; it returns once the
// connection has reached StateClosed.
func RunLoop(conn *Connection, tr api.Transport, cfg *api.Config, shutdown <-chan struct{}) {
	conn.workerOwned.Store(true)

	bufSize := cfg.ReadBufferInitialSize
	if bufSize <= 0 {
		bufSize = 4096
	}
	buf := make([]byte, 0, bufSize)
	scratch := make([]byte, bufSize)

	handshakeDeadline := time.Now().Add(cfg.HandshakeTimeout)
	var messageDeadline time.Time

	for {
		closeSignaled := false
		select {
		case <-conn.Done():
			return
		case <-shutdown:
			conn.requestClose(api.CloseGoingAway, "")
			closeSignaled = true
		case <-conn.CloseRequested():
			closeSignaled = true
		default:
		}
		if closeSignaled {
			// Only this worker goroutine ever applies a requested close:
			// it flushes the close frame and fires OnClose, per spec.md
			// §5's synchronous-on-the-worker-thread callback invariant.
			conn.ApplyRequestedClose()
			return
		}

		_ = tr.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := tr.Read(scratch)
		if n > 0 {
			buf = append(buf, scratch[:n]...)
			consumed := conn.Ingest(buf)
			buf = compact(buf, consumed)
		}

		if err != nil {
			if isTimeout(err) {
				checkWatchdogs(conn, cfg, &handshakeDeadline, &messageDeadline)
				continue
			}
			// EOF or a hard transport error: the peer is gone.
			if conn.State() == api.StateHandshake {
				conn.AbortUnestablished()
			} else {
				conn.finishClose(api.CloseGoingAway)
			}
			return
		}

		if conn.State() == api.StateClosed {
			return
		}
		checkWatchdogs(conn, cfg, &handshakeDeadline, &messageDeadline)
	}
}

func checkWatchdogs(conn *Connection, cfg *api.Config, handshakeDeadline, messageDeadline *time.Time) {
	now := time.Now()
	switch conn.State() {
	case api.StateHandshake:
		if now.After(*handshakeDeadline) {
			conn.AbortHandshakeTimeout()
		}
	case api.StateConnected:
		if conn.PartialMessageInProgress() {
			if messageDeadline.IsZero() {
				*messageDeadline = now.Add(cfg.MessageTimeout)
			} else if now.After(*messageDeadline) {
				conn.AbandonPartialMessage()
				*messageDeadline = time.Time{}
			}
		} else {
			*messageDeadline = time.Time{}
		}
	}
}

// compact drops the first n consumed bytes from buf, retaining any
// unconsumed suffix in place.
func compact(buf []byte, n int) []byte {
	if n <= 0 {
		return buf
	}
	remaining := copy(buf, buf[n:])
	return buf[:remaining]
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package client implements spec.md §6's client_open / client_close
// operations. Grounded on the teacher's client/client.go
// NewWebSocketClient, which "blocks until the initial handshake completes
// or fails" — the same contract, but the busy-wait polling loop the C
// original used to detect handshake completion is replaced with a single
// buffered channel signaled once, per spec.md's Design Notes, instead of
// the teacher's own atomic.Bool-plus-nothing (the teacher never actually
// blocks on the handshake; it fires OnConnect from inside the read loop).

package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/momentics/gowsproto/api"
	"github.com/momentics/gowsproto/internal/nettransport"
	"github.com/momentics/gowsproto/protocol"
)

// Client is a single outbound WebSocket connection.
type Client struct {
	cfg  *Config
	conn *protocol.Connection

	done chan struct{}
}

// Open dials addr (a ws:// URL or bare host:port), performs the opening
// handshake, and returns once the connection reaches StateConnected or
// the handshake fails/times out. cb.OnOpen fires before Open returns.
func Open(ctx context.Context, addr string, cb api.Callbacks, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	host, endpoint, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}

	tr, err := nettransport.Dial(host, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	nonce, err := protocol.GenerateNonce()
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("gowsproto: generate nonce: %w", err)
	}

	req := protocol.BuildClientRequest(host, endpoint, nonce)
	if _, err := tr.Write(req); err != nil {
		tr.Close()
		return nil, fmt.Errorf("gowsproto: send handshake request: %w", err)
	}

	opened := make(chan struct{}, 1)
	wrapped := api.Callbacks{
		OnOpen: func(c api.Connection) any {
			var ud any
			if cb.OnOpen != nil {
				ud = cb.OnOpen(c)
			}
			opened <- struct{}{}
			return ud
		},
		OnMessage: cb.OnMessage,
		OnClose:   cb.OnClose,
	}

	conn := protocol.NewClientConnection(tr, wrapped, nonce, cfg.Logger)

	c := &Client{
		cfg:  cfg,
		conn: conn,
		done: make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		// A client owns exactly one connection, so there is no shared
		// broadcast-shutdown channel to select on (unlike server.Server,
		// which fans one out to many workers): Client.Close signals the
		// connection's own CloseRequested channel instead.
		protocol.RunLoop(conn, tr, &cfg.Config, nil)
	}()

	select {
	case <-opened:
		return c, nil
	case <-conn.Done():
		if herr := conn.HandshakeError(); herr != nil {
			return nil, herr
		}
		return nil, api.ErrHandshakeFailed
	case <-ctx.Done():
		conn.Close(api.CloseGoingAway)
		<-c.done
		return nil, ctx.Err()
	}
}

// Connection returns the underlying api.Connection handle.
func (c *Client) Connection() api.Connection { return c.conn }

// Close begins an active close and waits for the worker goroutine to
// exit.
func (c *Client) Close(code api.CloseCode) {
	c.conn.Close(code)
	<-c.done
}

// parseAddr accepts either a ws://host:port/path URL or a bare
// host:port, defaulting the path to "/".
func parseAddr(addr string) (host, endpoint string, err error) {
	if u, uerr := url.Parse(addr); uerr == nil && u.Scheme != "" && u.Opaque == "" {
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return "", "", fmt.Errorf("gowsproto: unsupported scheme %q", u.Scheme)
		}
		endpoint = u.RequestURI()
		if endpoint == "" {
			endpoint = "/"
		}
		return u.Host, endpoint, nil
	}
	return addr, "/", nil
}

package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/gowsproto/api"
	"github.com/momentics/gowsproto/client"
	"github.com/momentics/gowsproto/internal/nettransport"
)

// TestOpenFailsAgainstNonWebSocketPeer exercises the handshake-failure
// path: a bare TCP listener that never sends a valid upgrade response.
func TestOpenFailsAgainstNonWebSocketPeer(t *testing.T) {
	ln, err := nettransport.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = client.Open(ctx, ln.Addr().String(), api.Callbacks{})
	if err == nil {
		t.Fatal("expected Open to fail against a non-101 response")
	}
}

func TestOpenRejectsUnsupportedScheme(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := client.Open(ctx, "http://example.com", api.Callbacks{})
	if err == nil {
		t.Fatal("expected an error for a non-ws scheme")
	}
}

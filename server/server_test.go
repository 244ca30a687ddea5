package server_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/momentics/gowsproto/api"
	"github.com/momentics/gowsproto/client"
	"github.com/momentics/gowsproto/server"
)

func TestServerEchoRoundTrip(t *testing.T) {
	srv := server.NewServer(api.Callbacks{
		OnMessage: func(c api.Connection, dt api.DataType, payload []byte) {
			if err := c.Send(dt, payload); err != nil {
				t.Errorf("echo send: %v", err)
			}
		},
	}, server.WithListenAddr("127.0.0.1:0"))

	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Shutdown()

	var mu sync.Mutex
	var got []byte
	received := make(chan struct{}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cl, err := client.Open(ctx, srv.Addr().String(), api.Callbacks{
		OnMessage: func(c api.Connection, dt api.DataType, payload []byte) {
			mu.Lock()
			got = append([]byte(nil), payload...)
			mu.Unlock()
			received <- struct{}{}
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cl.Close(api.CloseNormal)

	if err := cl.Connection().Send(api.Text, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "ping" {
		t.Fatalf("got %q, want %q", got, "ping")
	}
}

func TestServerShutdownClosesConnections(t *testing.T) {
	closed := make(chan api.CloseCode, 1)
	srv := server.NewServer(api.Callbacks{
		OnClose: func(c api.Connection, code api.CloseCode) { closed <- code },
	}, server.WithListenAddr("127.0.0.1:0"))

	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cl, err := client.Open(ctx, srv.Addr().String(), api.Callbacks{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = cl

	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnClose")
	}
}

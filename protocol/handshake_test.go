package protocol_test

import (
	"strings"
	"testing"

	"github.com/momentics/gowsproto/protocol"
)

// TestServerHandshakeAcceptKey uses the RFC 6455 §1.3 worked example:
// key "dGhlIHNhbXBsZSBub25jZQ==" must derive accept
// "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=".
func TestServerHandshakeAcceptKey(t *testing.T) {
	req := strings.Join([]string{
		"GET /chat HTTP/1.1",
		"Host: server.example.com",
		"Upgrade: websocket",
		"Connection: Upgrade",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version: 13",
		"", "",
	}, "\r\n")

	resp, consumed, found := protocol.TryServerHandshake([]byte(req))
	if !found {
		t.Fatal("expected handshake to be found")
	}
	if consumed != len(req) {
		t.Fatalf("consumed = %d, want %d", consumed, len(req))
	}
	if !strings.Contains(string(resp), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=") {
		t.Fatalf("response missing expected accept key: %s", resp)
	}
	if !strings.HasPrefix(string(resp), "HTTP/1.1 101") {
		t.Fatalf("response missing 101 status line: %s", resp)
	}
}

func TestServerHandshakeNeedsMoreOnPartialRequest(t *testing.T) {
	partial := "GET /chat HTTP/1.1\r\nHost: example.com\r\n"
	_, _, found := protocol.TryServerHandshake([]byte(partial))
	if found {
		t.Fatal("expected found=false on a truncated request")
	}
}

func TestServerHandshakeRejectsMissingUpgrade(t *testing.T) {
	req := strings.Join([]string{
		"GET /chat HTTP/1.1",
		"Host: server.example.com",
		"Connection: keep-alive",
		"", "",
	}, "\r\n")
	_, _, found := protocol.TryServerHandshake([]byte(req))
	if found {
		t.Fatal("expected found=false without an Upgrade: websocket header")
	}
}

func TestClientServerHandshakeRoundTrip(t *testing.T) {
	nonce, err := protocol.GenerateNonce()
	if err != nil {
		t.Fatalf("GenerateNonce: %v", err)
	}
	clientReq := protocol.BuildClientRequest("example.com", "/", nonce)

	resp, consumed, found := protocol.TryServerHandshake(clientReq)
	if !found || consumed != len(clientReq) {
		t.Fatalf("server side: found=%v consumed=%d want=%d", found, consumed, len(clientReq))
	}

	consumed2, found2, ok := protocol.TryClientHandshake(resp, nonce)
	if !found2 || !ok {
		t.Fatalf("client side: found=%v ok=%v", found2, ok)
	}
	if consumed2 != len(resp) {
		t.Fatalf("consumed2 = %d, want %d", consumed2, len(resp))
	}
}

func TestClientHandshakeRejectsWrongAccept(t *testing.T) {
	nonce, _ := protocol.GenerateNonce()
	resp := protocol.BuildServerResponse("not-the-right-accept-value")
	_, found, ok := protocol.TryClientHandshake(resp, nonce)
	if !found {
		t.Fatal("expected found=true for a well-formed response")
	}
	if ok {
		t.Fatal("expected ok=false for a mismatched accept key")
	}
}

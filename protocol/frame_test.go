package protocol_test

import (
	"bytes"
	"testing"

	"github.com/momentics/gowsproto/protocol"
)

func TestWriteFrameParseHeaderRoundTrip(t *testing.T) {
	payload := []byte("hello, websocket")
	var mask [4]byte
	copy(mask[:], []byte{0xAA, 0xBB, 0xCC, 0xDD})

	buf := protocol.WriteFrame(nil, protocol.OpText, true, true, mask, payload)

	hdr, headerLen, status := protocol.ParseHeader(buf)
	if status != protocol.Ok {
		t.Fatalf("ParseHeader status = %v, want Ok", status)
	}
	if !hdr.Fin || hdr.Opcode != protocol.OpText || !hdr.Masked {
		t.Fatalf("unexpected header: %+v", hdr)
	}
	if hdr.MaskKey != mask {
		t.Fatalf("mask key mismatch: got %v want %v", hdr.MaskKey, mask)
	}

	got := append([]byte(nil), buf[headerLen:headerLen+int(hdr.PayloadLen)]...)
	protocol.UnmaskInPlace(got, hdr.MaskKey)
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q want %q", got, payload)
	}
}

func TestWriteFrameUnmasked(t *testing.T) {
	payload := []byte("server frames are never masked")
	buf := protocol.WriteFrame(nil, protocol.OpBinary, true, false, [4]byte{}, payload)

	hdr, headerLen, status := protocol.ParseHeader(buf)
	if status != protocol.Ok {
		t.Fatalf("ParseHeader status = %v, want Ok", status)
	}
	if hdr.Masked {
		t.Fatal("expected unmasked frame")
	}
	got := buf[headerLen : headerLen+int(hdr.PayloadLen)]
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q want %q", got, payload)
	}
}

func TestParseHeaderNeedMore(t *testing.T) {
	buf := []byte{0x81} // FIN+text, but length byte missing
	_, _, status := protocol.ParseHeader(buf)
	if status != protocol.NeedMore {
		t.Fatalf("status = %v, want NeedMore", status)
	}
}

func TestParseHeaderInvalidRSV(t *testing.T) {
	buf := []byte{0x81 | 0x40, 0x00} // RSV1 set
	_, _, status := protocol.ParseHeader(buf)
	if status != protocol.Invalid {
		t.Fatalf("status = %v, want Invalid", status)
	}
}

func TestParseHeaderInvalidOpcode(t *testing.T) {
	buf := []byte{0x83, 0x00} // opcode 0x3, reserved
	_, _, status := protocol.ParseHeader(buf)
	if status != protocol.Invalid {
		t.Fatalf("status = %v, want Invalid", status)
	}
}

func TestParseHeaderExtendedLength16(t *testing.T) {
	payload := make([]byte, 300)
	buf := protocol.WriteFrame(nil, protocol.OpBinary, true, false, [4]byte{}, payload)
	hdr, headerLen, status := protocol.ParseHeader(buf)
	if status != protocol.Ok {
		t.Fatalf("status = %v, want Ok", status)
	}
	if hdr.PayloadLen != 300 {
		t.Fatalf("PayloadLen = %d, want 300", hdr.PayloadLen)
	}
	if len(buf) != headerLen+300 {
		t.Fatalf("frame length mismatch: %d != %d", len(buf), headerLen+300)
	}
}

func TestMaskingIsInvolutive(t *testing.T) {
	payload := []byte("round trips exactly, xor is its own inverse")
	key := [4]byte{1, 2, 3, 4}

	cp := append([]byte(nil), payload...)
	protocol.UnmaskInPlace(cp, key)
	protocol.UnmaskInPlace(cp, key)
	if !bytes.Equal(cp, payload) {
		t.Fatalf("double-unmask did not restore original: got %q want %q", cp, payload)
	}
}

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection is the per-connection state machine of spec.md §4.4/§4.5: it
// owns the Handshake/Connected/Closed lifecycle, drives the frame codec,
// handshake engine and reassembler, and dispatches completed messages or
// control replies. Grounded on the teacher's protocol/connection.go
// (channel-free direct-transport-write shape, atomic counters, handleControl
// switch) but extended with the state machine, fragmentation, UTF-8
// enforcement and close-code taxonomy the teacher's version never had —
// the teacher assumed the connection was already upgraded before a
// WSConnection existed at all.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"log"
	"sync"
	"sync/atomic"

	"github.com/momentics/gowsproto/api"
)

// Connection implements api.Connection on top of a single api.Transport.
// Ingest is called exclusively from the owning worker goroutine (see
// server/client); the Send* methods may be called concurrently from any
// goroutine and serialize themselves on writeMu. Close/CloseWithReason
// only ever signal intent to close: per spec.md §5, host callbacks
// (onMessage/onClose) must execute synchronously on the connection's
// worker goroutine and onClose must be the last one, so the actual close
// frame write and OnClose invocation happen on that worker goroutine —
// see requestClose/ApplyRequestedClose and protocol/loop.go's RunLoop.
type Connection struct {
	role      api.Role
	transport api.Transport
	callbacks api.Callbacks
	logger    *log.Logger

	writeMu sync.Mutex // serializes all writes to transport, per spec.md §5
	state   atomic.Int32

	userMu   sync.Mutex
	userData any

	partial *reassembly

	fragMu     sync.Mutex
	fragActive bool

	nonce string // client-side only, used to verify Sec-WebSocket-Accept

	handshakeErr error // set when the connection closes before StateConnected

	// workerOwned is set once a RunLoop worker goroutine claims this
	// connection. Until then (bare Connection use, e.g. tests driving
	// Ingest directly with no worker), the calling goroutine is the only
	// one touching the connection, so CloseWithReason applies the close
	// inline instead of waiting for a worker that will never come.
	workerOwned atomic.Bool

	pendingMu     sync.Mutex
	pendingCode   api.CloseCode
	pendingReason string
	pendingSet    bool

	closeSignalOnce sync.Once
	closeSignal     chan struct{}

	applyCloseOnce sync.Once
	closeOnce      sync.Once
	done           chan struct{}
}

func newConnection(role api.Role, tr api.Transport, cb api.Callbacks, logger *log.Logger) *Connection {
	if logger == nil {
		logger = log.Default()
	}
	c := &Connection{
		role:        role,
		transport:   tr,
		callbacks:   cb,
		logger:      logger,
		partial:     newReassembly(),
		done:        make(chan struct{}),
		closeSignal: make(chan struct{}),
	}
	c.state.Store(int32(api.StateHandshake))
	return c
}

// NewServerConnection constructs a connection in the Handshake state,
// awaiting the client's opening HTTP request.
func NewServerConnection(tr api.Transport, cb api.Callbacks, logger *log.Logger) *Connection {
	return newConnection(api.RoleServer, tr, cb, logger)
}

// NewClientConnection constructs a connection in the Handshake state,
// awaiting the server's 101 response. nonce is the Sec-WebSocket-Key this
// client already sent.
func NewClientConnection(tr api.Transport, cb api.Callbacks, nonce string, logger *log.Logger) *Connection {
	c := newConnection(api.RoleClient, tr, cb, logger)
	c.nonce = nonce
	return c
}

// Done is closed exactly once, when the connection reaches StateClosed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// --- api.Connection ---

func (c *Connection) State() api.State { return api.State(c.state.Load()) }
func (c *Connection) Role() api.Role   { return c.role }
func (c *Connection) IsConnected() bool {
	return api.State(c.state.Load()) == api.StateConnected
}

func (c *Connection) UserData() any {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	return c.userData
}

func (c *Connection) setUserData(v any) {
	c.userMu.Lock()
	c.userData = v
	c.userMu.Unlock()
}

func (c *Connection) Send(dt api.DataType, payload []byte) error {
	op, err := opcodeForDataType(dt)
	if err != nil {
		return err
	}
	if !c.IsConnected() {
		return c.notConnectedErr()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeFrameLocked(op, true, payload)
}

func (c *Connection) SendFragmentStart(dt api.DataType, payload []byte) error {
	op, err := opcodeForDataType(dt)
	if err != nil {
		return err
	}
	if !c.IsConnected() {
		return c.notConnectedErr()
	}
	c.fragMu.Lock()
	if c.fragActive {
		c.fragMu.Unlock()
		return api.ErrFragmentInFlight
	}
	c.fragActive = true
	c.fragMu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeFrameLocked(op, false, payload)
}

func (c *Connection) SendFragmentContinuation(fin bool, payload []byte) error {
	c.fragMu.Lock()
	if !c.fragActive {
		c.fragMu.Unlock()
		return api.ErrNoFragmentStart
	}
	if fin {
		c.fragActive = false
	}
	c.fragMu.Unlock()

	if !c.IsConnected() {
		return c.notConnectedErr()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeFrameLocked(OpContinuation, fin, payload)
}

// notConnectedErr reports why a send was rejected: a connection that has
// already reached StateClosed lost its transport (or was actively torn
// down), which is a different, more specific condition than simply not
// having finished the handshake yet.
func (c *Connection) notConnectedErr() error {
	if c.State() == api.StateClosed {
		return api.ErrTransportClosed
	}
	return api.ErrNotConnected
}

func (c *Connection) Close(code api.CloseCode) {
	c.CloseWithReason(code, "")
}

// CloseWithReason asks the connection to close and blocks until it has.
// It only signals intent: the close frame write and the OnClose callback
// happen on the connection's worker goroutine (RunLoop), which observes
// CloseRequested and calls ApplyRequestedClose, per spec.md §5's
// synchronous-callbacks-on-the-worker-thread invariant. If no worker has
// claimed this connection (bare Connection use with no RunLoop), the
// calling goroutine is the only one that could ever apply it, so it does
// so inline.
func (c *Connection) CloseWithReason(code api.CloseCode, reason string) {
	c.requestClose(code, reason)
	if !c.workerOwned.Load() {
		c.ApplyRequestedClose()
	}
	<-c.done
}

// requestClose records the first close code/reason asked for and signals
// CloseRequested exactly once. Safe to call from any goroutine.
func (c *Connection) requestClose(code api.CloseCode, reason string) {
	c.pendingMu.Lock()
	if !c.pendingSet {
		c.pendingCode = code
		c.pendingReason = reason
		c.pendingSet = true
	}
	c.pendingMu.Unlock()
	c.closeSignalOnce.Do(func() { close(c.closeSignal) })
}

// CloseRequested is signaled once CloseWithReason (or a shared shutdown
// channel) asks this connection to close. Only the worker goroutine
// running RunLoop should act on it.
func (c *Connection) CloseRequested() <-chan struct{} { return c.closeSignal }

// ApplyRequestedClose sends the close frame for a previously requested
// close and tears the connection down, firing OnClose. Idempotent: only
// the first caller (the worker, or CloseWithReason itself when there is
// no worker) actually performs the close.
func (c *Connection) ApplyRequestedClose() {
	c.applyCloseOnce.Do(func() {
		c.pendingMu.Lock()
		code, reason := c.pendingCode, c.pendingReason
		c.pendingMu.Unlock()
		c.closeActive(code, reason)
	})
}

func opcodeForDataType(dt api.DataType) (byte, error) {
	switch dt {
	case api.Text:
		return OpText, nil
	case api.Binary:
		return OpBinary, nil
	default:
		return 0, api.ErrInvalidDataType
	}
}

// writeFrameLocked masks (if we are the client) and writes one frame.
// Caller must hold writeMu.
func (c *Connection) writeFrameLocked(op byte, fin bool, payload []byte) error {
	var mask [4]byte
	masked := c.role == api.RoleClient
	if masked {
		_, _ = rand.Read(mask[:])
	}
	buf := WriteFrame(make([]byte, 0, len(payload)+14), op, fin, masked, mask, payload)
	_, err := c.transport.Write(buf)
	if err != nil {
		c.finishClose(api.CloseGoingAway)
	}
	return err
}

// Ingest consumes as many complete frames (or as much of the handshake)
// as buf currently allows and returns the number of bytes consumed from
// the front of buf. The caller (the connection's worker goroutine) is
// responsible for retaining any unconsumed suffix and appending future
// reads to it.
func (c *Connection) Ingest(buf []byte) int {
	switch api.State(c.state.Load()) {
	case api.StateHandshake:
		return c.ingestHandshake(buf)
	case api.StateConnected:
		return c.ingestFrames(buf)
	default: // StateClosed
		return len(buf)
	}
}

func (c *Connection) ingestHandshake(buf []byte) int {
	if c.role == api.RoleServer {
		resp, consumed, found := TryServerHandshake(buf)
		if !found {
			// spec.md §4.4: on failure, the full input is discarded and
			// the handshake timeout watchdog decides the connection's fate.
			return len(buf)
		}
		c.writeMu.Lock()
		_, err := c.transport.Write(resp)
		c.writeMu.Unlock()
		if err != nil {
			c.finishClose(api.CloseGoingAway)
			return consumed
		}
		c.completeHandshake()
		return consumed
	}

	consumed, found, ok := TryClientHandshake(buf, c.nonce)
	if !found {
		return len(buf)
	}
	if ok {
		c.completeHandshake()
		return consumed
	}
	// A structurally valid response that isn't a matching 101 fails the
	// handshake immediately rather than waiting out the full timeout.
	c.AbortUnestablished()
	return consumed
}

func (c *Connection) completeHandshake() {
	c.state.Store(int32(api.StateConnected))
	if c.callbacks.OnOpen != nil {
		c.setUserData(c.callbacks.OnOpen(c))
	}
}

func (c *Connection) ingestFrames(buf []byte) int {
	total := 0
	for {
		remaining := buf[total:]
		hdr, headerLen, status := ParseHeader(remaining)
		switch status {
		case Invalid:
			c.closeProtocolError(api.CloseProtocolError, "malformed frame header")
			return len(buf)
		case NeedMore:
			return total
		}

		frameLen := headerLen + int(hdr.PayloadLen)
		if len(remaining) < frameLen {
			return total
		}

		payload := remaining[headerLen:frameLen]
		if !c.dispatch(hdr, payload) {
			return len(buf) // connection was closed mid-dispatch
		}
		total += frameLen
	}
}

// dispatch handles one fully-buffered frame per spec.md §4.5. It returns
// false if the connection was closed as a result (caller should stop
// parsing further frames from this buffer).
func (c *Connection) dispatch(hdr Header, payload []byte) bool {
	expectMasked := c.role == api.RoleServer // server expects client->server masked frames
	if hdr.Masked != expectMasked {
		return c.closeProtocolError(api.CloseProtocolError, "mask bit does not match role")
	}

	switch hdr.Opcode {
	case OpText, OpBinary:
		return c.dispatchMessageStart(hdr, payload)
	case OpContinuation:
		return c.dispatchContinuation(hdr, payload)
	case OpPing:
		return c.dispatchPing(hdr, payload)
	case OpPong:
		return c.dispatchPong(hdr, payload)
	case OpClose:
		return c.dispatchClose(hdr, payload)
	default:
		return c.closeProtocolError(api.CloseProtocolError, "unknown opcode")
	}
}

func (c *Connection) dataType(opcode byte) api.DataType {
	if opcode == OpText {
		return api.Text
	}
	return api.Binary
}

func (c *Connection) dispatchMessageStart(hdr Header, payload []byte) bool {
	if c.partial.inProgress() {
		return c.closeProtocolError(api.CloseProtocolError, "previous message not finished")
	}

	dt := c.dataType(hdr.Opcode)
	unmasked := unmaskCopy(hdr, payload)

	c.partial.start(dt)
	c.partial.append(unmasked)

	if dt == api.Text {
		if !c.validateUTF8Fragment(unmasked, hdr.Fin) {
			return false
		}
	}

	if hdr.Fin {
		c.completeMessage()
	}
	return true
}

func (c *Connection) dispatchContinuation(hdr Header, payload []byte) bool {
	if !c.partial.inProgress() {
		return c.closeProtocolError(api.CloseProtocolError, "continuation without start")
	}

	unmasked := unmaskCopy(hdr, payload)
	c.partial.append(unmasked)

	if c.partial.dataType == api.Text {
		if !c.validateUTF8Fragment(unmasked, hdr.Fin) {
			return false
		}
	}

	if hdr.Fin {
		c.completeMessage()
	}
	return true
}

// validateUTF8Fragment applies the FIN-dependent UTF-8 rule of spec.md
// §4.5: on the final fragment the validator must land exactly on OK; on
// an intermediate fragment it must not have already failed.
func (c *Connection) validateUTF8Fragment(chunk []byte, fin bool) bool {
	result := c.partial.validator.Validate(chunk)
	if fin && result != UTF8OK {
		return c.closeProtocolError(api.CloseInvalidPayload, "invalid UTF-8 in text message")
	}
	if !fin && result == UTF8Fail {
		return c.closeProtocolError(api.CloseInvalidPayload, "invalid UTF-8 in text fragment")
	}
	return true
}

func (c *Connection) completeMessage() {
	dt := c.partial.dataType
	data := c.partial.join()
	c.partial.reset()
	if c.callbacks.OnMessage != nil {
		c.callbacks.OnMessage(c, dt, data)
	}
}

func (c *Connection) dispatchPing(hdr Header, payload []byte) bool {
	if !hdr.Fin || len(payload) > MaxControlPayload {
		return c.closeProtocolError(api.CloseProtocolError, "malformed ping")
	}
	unmasked := unmaskCopy(hdr, payload)
	c.writeMu.Lock()
	err := c.writeFrameLocked(OpPong, true, unmasked)
	c.writeMu.Unlock()
	return err == nil
}

func (c *Connection) dispatchPong(hdr Header, payload []byte) bool {
	if !hdr.Fin || len(payload) > MaxControlPayload {
		return c.closeProtocolError(api.CloseProtocolError, "malformed pong")
	}
	return true
}

func (c *Connection) dispatchClose(hdr Header, payload []byte) bool {
	if !hdr.Fin {
		return c.closeProtocolError(api.CloseProtocolError, "fragmented close frame")
	}
	n := len(payload)
	if n == 1 {
		return c.closeProtocolError(api.CloseProtocolError, "malformed close payload")
	}
	if n == 0 {
		c.closeEcho(api.EncodeClose(api.CloseNormal, ""), api.CloseNormal)
		return false
	}

	unmasked := unmaskCopy(hdr, payload)
	code := api.CloseCode(binary.BigEndian.Uint16(unmasked[:2]))
	if !code.AcceptableFromPeer() {
		return c.closeProtocolError(api.CloseProtocolError, "invalid close code")
	}
	var v UTF8Validator
	if v.Validate(unmasked[2:]) != UTF8OK {
		return c.closeProtocolError(api.CloseInvalidPayload, "invalid UTF-8 in close reason")
	}
	c.closeEcho(unmasked, code)
	return false
}

// unmaskCopy returns a fresh copy of payload, unmasked if the frame was
// masked. The copy protects the caller's read buffer, which is reused
// across Ingest calls.
func unmaskCopy(hdr Header, payload []byte) []byte {
	if !hdr.Masked {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	UnmaskInPlace(out, hdr.MaskKey)
	return out
}

// closeActive originates a close: it sends a Close frame carrying code
// (and reason, if any) and tears the connection down. Used for both
// protocol/encoding failures and host-requested closes.
func (c *Connection) closeActive(code api.CloseCode, reason string) {
	payload := api.EncodeClose(code, reason)
	c.writeMu.Lock()
	_, _ = c.writeCloseLocked(payload)
	c.writeMu.Unlock()
	c.finishClose(code)
}

// closeProtocolError logs and closes the connection for a close-worthy
// protocol or encoding violation found while processing an inbound
// frame, and reports false so callers in the dispatch chain can return
// directly. Always returns false.
func (c *Connection) closeProtocolError(code api.CloseCode, reason string) bool {
	c.logger.Printf("gowsproto: %v", api.NewProtocolError(code, reason))
	c.closeActive(code, reason)
	return false
}

// closeEcho replies to a peer-initiated close by echoing the payload it
// sent (spec.md §4.5's "reply by echoing the received payload").
func (c *Connection) closeEcho(payload []byte, code api.CloseCode) {
	c.writeMu.Lock()
	_, _ = c.writeCloseLocked(payload)
	c.writeMu.Unlock()
	c.finishClose(code)
}

func (c *Connection) writeCloseLocked(payload []byte) (int, error) {
	var mask [4]byte
	masked := c.role == api.RoleClient
	if masked {
		_, _ = rand.Read(mask[:])
	}
	buf := WriteFrame(make([]byte, 0, len(payload)+10), OpClose, true, masked, mask, payload)
	return c.transport.Write(buf)
}

// finishClose transitions to StateClosed, releases the partial-message
// buffer, closes the transport, and fires OnClose exactly once — and only
// if OnOpen ever fired, per spec.md §8's invariant.
func (c *Connection) finishClose(code api.CloseCode) {
	c.closeOnce.Do(func() {
		wasConnected := api.State(c.state.Load()) == api.StateConnected
		c.state.Store(int32(api.StateClosed))
		c.partial.reset()
		if err := c.transport.Close(); err != nil {
			c.logger.Printf("gowsproto: transport close: %v", err)
		}
		if wasConnected && c.callbacks.OnClose != nil {
			c.callbacks.OnClose(c, code)
		}
		close(c.done)
	})
}

// AbortUnestablished tears the connection down without ever having
// reached Connected: a rejected or malformed handshake, or a transport
// error while still in Handshake. No Close frame is meaningful
// pre-handshake, so this simply closes the transport; OnClose is
// correctly suppressed by finishClose's wasConnected gate.
func (c *Connection) AbortUnestablished() {
	c.handshakeErr = api.ErrHandshakeFailed
	c.finishClose(api.CloseGoingAway)
}

// AbortHandshakeTimeout tears the connection down because it sat in
// StateHandshake past the configured deadline, per spec.md §4.4.
func (c *Connection) AbortHandshakeTimeout() {
	c.handshakeErr = api.ErrHandshakeTimeout
	c.finishClose(api.CloseGoingAway)
}

// HandshakeError reports why the handshake never completed, if the
// connection closed before reaching StateConnected. Only meaningful
// after Done() has fired; nil if the connection reached StateConnected
// or is still open.
func (c *Connection) HandshakeError() error {
	return c.handshakeErr
}

// AbandonPartialMessage implements the message-completion timeout of
// spec.md §5: a resource error that recovers in place rather than closing
// the connection.
func (c *Connection) AbandonPartialMessage() {
	if c.partial.inProgress() {
		c.logger.Printf("gowsproto: abandoning partial message after timeout")
		c.partial.reset()
	}
}

// PartialMessageInProgress reports whether a fragmented message is
// currently being reassembled, for the worker loop's deadline bookkeeping.
func (c *Connection) PartialMessageInProgress() bool {
	return c.partial.inProgress()
}

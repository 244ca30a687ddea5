// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Connection is the host-facing handle bound to a single WebSocket
// connection, passed to every callback and returned by the endpoint
// façades. It maps directly onto spec.md §6's connection_handle
// operations.
type Connection interface {
	// Send transmits a single, unfragmented message of the given type.
	Send(dt DataType, payload []byte) error

	// SendFragmentStart begins a fragmented message; dt is fixed for the
	// whole message and every subsequent frame is a continuation.
	SendFragmentStart(dt DataType, payload []byte) error

	// SendFragmentContinuation sends the next fragment. fin=true marks
	// the last fragment of the message.
	SendFragmentContinuation(fin bool, payload []byte) error

	// Close begins an active close with the given code (no reason text).
	Close(code CloseCode)

	// CloseWithReason begins an active close carrying a UTF-8 reason
	// string alongside the code, per spec.md §6 [NEW].
	CloseWithReason(code CloseCode, reason string)

	// IsConnected reports whether the connection is in StateConnected.
	IsConnected() bool

	// State returns the current lifecycle state.
	State() State

	// Role reports whether this connection is server- or client-side.
	Role() Role

	// UserData returns the opaque value bound to this connection by
	// OnOpen's return value.
	UserData() any
}

// OnOpenFunc is invoked once a connection reaches StateConnected. Its
// return value is bound to the connection and handed back on every
// subsequent OnMessage/OnClose call as Connection.UserData().
type OnOpenFunc func(conn Connection) any

// OnMessageFunc is invoked once per completed application message, in the
// byte order the peer sent them.
type OnMessageFunc func(conn Connection, dt DataType, payload []byte)

// OnCloseFunc is invoked exactly once per connection that reached
// StateConnected, as the last callback fired for that connection. code is
// the close code that ended the connection: the code sent or received in
// the Close frame, the requested code for a locally initiated close, and
// CloseGoingAway for a transport error.
type OnCloseFunc func(conn Connection, code CloseCode)

// Callbacks bundles the three host-supplied event handlers. A zero-value
// field means "no callback"; nil handlers are simply not invoked.
type Callbacks struct {
	OnOpen    OnOpenFunc
	OnMessage OnMessageFunc
	OnClose   OnCloseFunc
}

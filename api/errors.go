// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// Sentinel errors returned by the endpoint-facing operations. Callers use
// errors.Is against these. Protocol and encoding violations found in
// inbound frames are described by ProtocolError below instead.
var (
	ErrTransportClosed  = fmt.Errorf("gowsproto: transport is closed")
	ErrNotConnected     = fmt.Errorf("gowsproto: connection is not in the Connected state")
	ErrHandshakeTimeout = fmt.Errorf("gowsproto: handshake did not complete within the deadline")
	ErrHandshakeFailed  = fmt.Errorf("gowsproto: handshake failed")
	ErrInvalidDataType  = fmt.Errorf("gowsproto: unknown data type")
	ErrFragmentInFlight = fmt.Errorf("gowsproto: a fragmented send is already in progress")
	ErrNoFragmentStart  = fmt.Errorf("gowsproto: send_fragment_cont without a matching send_fragment_start")
)

// ProtocolError reports a close-worthy protocol or encoding violation
// detected while processing inbound frames. Grounded on the teacher's
// api/errors.go structured Error type, trimmed to the two fields the
// dispatcher actually needs: the close code to reply with and a
// human-readable reason for logs.
type ProtocolError struct {
	Code   CloseCode
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gowsproto: protocol error (close code %d): %s", e.Code, e.Reason)
}

// NewProtocolError builds a ProtocolError for the given close code.
func NewProtocolError(code CloseCode, reason string) *ProtocolError {
	return &ProtocolError{Code: code, Reason: reason}
}

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package api

import "encoding/binary"

// EncodeClose renders the payload of a Close frame: a big-endian code
// followed by an optional UTF-8 reason string, per RFC 6455 §5.5.1. An
// empty reason yields a two-byte payload with no trailing text.
func EncodeClose(code CloseCode, reason string) []byte {
	out := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(out[:2], uint16(code))
	copy(out[2:], reason)
	return out
}

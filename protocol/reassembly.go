// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-connection reassembly buffer of spec.md's Data Model: "data-type,
// accumulated payload bytes, first_received flag, complete flag, streaming
// UTF-8 validator state." Backed by github.com/eapache/queue, the
// teacher's declared but previously-unused dependency: chunks accumulate
// in the queue as continuation frames arrive and are joined once, on
// completion, rather than being repeatedly reallocated and copied the way
// the teacher's own frame_codec.go grows its buffers with plain append.

package protocol

import (
	"github.com/eapache/queue"
	"github.com/momentics/gowsproto/api"
)

// reassembly accumulates the fragments of one in-progress message.
type reassembly struct {
	firstReceived bool
	dataType      api.DataType
	chunks        *queue.Queue
	length        int
	validator     UTF8Validator
}

func newReassembly() *reassembly {
	return &reassembly{chunks: queue.New()}
}

// start begins tracking a new message; dt is fixed until reset.
func (r *reassembly) start(dt api.DataType) {
	r.firstReceived = true
	r.dataType = dt
	r.chunks = queue.New()
	r.length = 0
	r.validator = UTF8Validator{}
}

// append records one fragment's already-unmasked payload bytes. The
// caller retains ownership of b's backing array (it is not mutated here);
// gowsproto copies into the queue since the connection worker reuses its
// read buffer across ingest() calls.
func (r *reassembly) append(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	r.chunks.Add(cp)
	r.length += len(cp)
}

// join concatenates every recorded fragment into a single contiguous
// slice, in arrival order.
func (r *reassembly) join() []byte {
	out := make([]byte, 0, r.length)
	for r.chunks.Length() > 0 {
		chunk := r.chunks.Peek().([]byte)
		out = append(out, chunk...)
		r.chunks.Remove()
	}
	return out
}

// reset clears the slot, leaving it ready for the next message.
func (r *reassembly) reset() {
	r.firstReceived = false
	r.chunks = queue.New()
	r.length = 0
	r.validator = UTF8Validator{}
}

// inProgress reports the spec.md invariant: non-empty iff first_received
// and not complete. Since we dispatch and reset synchronously on FIN, "not
// complete" is simply "not yet reset."
func (r *reassembly) inProgress() bool {
	return r.firstReceived
}

package routing

import "github.com/sarchlab/fabricsim/sim/packet"

const minPruneSize = 64

// ReturnPath remembers the upstream port each forwarded request arrived on.
// Entries of requests released without an answer, for example because a
// component further downstream refused them, are pruned lazily.
type ReturnPath struct {
	entries map[packet.Ref]int
	pruneAt int
}

// NewReturnPath creates an empty ReturnPath.
func NewReturnPath() *ReturnPath {
	return &ReturnPath{
		entries: make(map[packet.Ref]int),
		pruneAt: minPruneSize,
	}
}

// Record remembers that req came in through upstream port portID.
func (r *ReturnPath) Record(req *packet.Packet, portID int) {
	r.entries[req.Ref()] = portID

	if len(r.entries) >= r.pruneAt {
		r.prune()
		r.pruneAt = max(2*len(r.entries), minPruneSize)
	}
}

// Lookup finds and forgets the upstream port for the request a response
// answers.
func (r *ReturnPath) Lookup(rsp *packet.Packet) (int, bool) {
	req := rsp.OriginalReq()
	if req == nil {
		return NoPort, false
	}

	ref := req.Ref()

	portID, ok := r.entries[ref]
	if ok {
		delete(r.entries, ref)
	}

	return portID, ok
}

// Forget drops the entry of a request that will not be answered.
func (r *ReturnPath) Forget(req *packet.Packet) {
	delete(r.entries, req.Ref())
}

// Len returns the number of live requests awaiting a response.
func (r *ReturnPath) Len() int {
	r.prune()
	return len(r.entries)
}

func (r *ReturnPath) prune() {
	for ref := range r.entries {
		if ref.Get() == nil {
			delete(r.entries, ref)
		}
	}
}

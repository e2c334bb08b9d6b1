package packet

import (
	"fmt"
	"sync"
)

// DefaultMaxFree bounds each free list of a pool.
const DefaultMaxFree = 1024

// PoolStats is a snapshot of a pool's counters.
type PoolStats struct {
	CurrentUsage uint64 `json:"current_usage"`
	PeakUsage    uint64 `json:"peak_usage"`
	Acquired     uint64 `json:"acquired"`
	Released     uint64 `json:"released"`
	FreePackets  int    `json:"free_packets"`
	FreePayloads int    `json:"free_payloads"`
}

// Pool recycles packets and payloads. Every operation holds the pool's
// mutex, so components may acquire and release from separate goroutines.
type Pool struct {
	mu sync.Mutex

	freePackets  []*Packet
	freePayloads []*Payload
	maxFree      int

	current  uint64
	peak     uint64
	acquired uint64
	released uint64
}

// NewPool creates a pool whose free lists hold at most maxFree entries each.
// A non-positive maxFree selects DefaultMaxFree.
func NewPool(maxFree int) *Pool {
	if maxFree <= 0 {
		maxFree = DefaultMaxFree
	}

	return &Pool{maxFree: maxFree}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide pool, creating it on first use.
func DefaultPool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(DefaultMaxFree)
	})

	return defaultPool
}

// Acquire returns a packet with default field values and a cleared payload.
func (p *Pool) Acquire() *Packet {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pkt *Packet
	if n := len(p.freePackets); n > 0 {
		pkt = p.freePackets[n-1]
		p.freePackets[n-1] = nil
		p.freePackets = p.freePackets[:n-1]
	} else {
		pkt = &Packet{}
	}

	pkt.payload = p.takePayload()
	pkt.live = true

	p.acquired++
	p.current++
	if p.current > p.peak {
		p.peak = p.current
	}

	return pkt
}

func (p *Pool) takePayload() *Payload {
	n := len(p.freePayloads)
	if n == 0 {
		return &Payload{}
	}

	pl := p.freePayloads[n-1]
	p.freePayloads[n-1] = nil
	p.freePayloads = p.freePayloads[:n-1]

	return pl
}

// Release returns a packet to the pool. Releasing nil does nothing.
// Releasing a packet twice, or while other live packets still point at it as
// their original request, panics. If the packet answers a retired request
// and was the last packet referring to it, the request is released as well.
func (p *Pool) Release(pkt *Packet) {
	if pkt == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.mustBeReleasable(pkt)

	for pkt != nil {
		pkt = p.releaseLocked(pkt)
	}
}

// Retire gives up ownership of a request that responses may still point at.
// The request is released now if nothing refers to it, or by the Release of
// the last packet that does.
func (p *Pool) Retire(pkt *Packet) {
	if pkt == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !pkt.live {
		panic(fmt.Sprintf("packet: retiring released packet %s", pkt))
	}

	if pkt.refCount > 0 {
		pkt.retired = true
		return
	}

	for pkt != nil {
		pkt = p.releaseLocked(pkt)
	}
}

func (p *Pool) mustBeReleasable(pkt *Packet) {
	if !pkt.live {
		panic(fmt.Sprintf("packet: double release of %s", pkt))
	}

	if pkt.refCount > 0 {
		panic(fmt.Sprintf(
			"packet: releasing %s while %d packets refer to it",
			pkt, pkt.refCount))
	}
}

// releaseLocked recycles pkt and returns the original request that became
// releasable as a result, if any.
func (p *Pool) releaseLocked(pkt *Packet) *Packet {
	next := p.unlinkLocked(pkt)

	if pkt.payload != nil && !pkt.borrowed {
		p.putPayload(pkt.payload)
	}

	pkt.live = false
	pkt.gen++
	pkt.reset()

	if len(p.freePackets) < p.maxFree {
		p.freePackets = append(p.freePackets, pkt)
	}

	p.current--
	p.released++

	return next
}

func (p *Pool) unlinkLocked(pkt *Packet) *Packet {
	orig := pkt.originalReq.Get()
	if orig == nil || orig == pkt {
		return nil
	}

	orig.refCount--
	orig.removeDependent(pkt)

	if orig.refCount == 0 && orig.retired {
		return orig
	}

	return nil
}

func (p *Pool) putPayload(pl *Payload) {
	pl.reset()

	if len(p.freePayloads) < p.maxFree {
		p.freePayloads = append(p.freePayloads, pl)
	}
}

// SetOriginalReq links pkt to the request it answers. Linking a packet to
// itself does not count as a reference.
func (p *Pool) SetOriginalReq(pkt, req *Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.linkLocked(pkt, req)
}

func (p *Pool) linkLocked(pkt, req *Packet) {
	if !pkt.live || !req.live {
		panic(fmt.Sprintf("packet: linking released packets %s -> %s", pkt, req))
	}

	if old := pkt.originalReq.Get(); old != nil && old != pkt {
		panic(fmt.Sprintf("packet: %s already answers %s", pkt, old))
	}

	pkt.originalReq = req.Ref()
	if req == pkt {
		return
	}

	req.refCount++
	req.dependents = append(req.dependents, pkt.Ref())
}

// NewResponse acquires a response for req. The response shares req's
// payload, keeps its stream, sequence number, address, size and virtual
// channel, swaps source and destination, and points back at req.
func (p *Pool) NewResponse(req *Packet) *Packet {
	rsp := p.Acquire()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.putPayload(rsp.payload)
	rsp.payload = req.payload
	rsp.borrowed = true

	rsp.Type = Response
	rsp.Cmd = req.Cmd
	rsp.StreamID = req.StreamID
	rsp.SeqNum = req.SeqNum
	rsp.Addr = req.Addr
	rsp.Size = req.Size
	rsp.SrcID = req.DstID
	rsp.DstID = req.SrcID
	rsp.VCID = req.VCID
	rsp.Priority = req.Priority
	rsp.FlowID = req.FlowID

	p.linkLocked(rsp, req)

	return rsp
}

// CurrentUsage returns the number of packets acquired and not yet released.
func (p *Pool) CurrentUsage() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current
}

// PeakUsage returns the highest CurrentUsage observed.
func (p *Pool) PeakUsage() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.peak
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		CurrentUsage: p.current,
		PeakUsage:    p.peak,
		Acquired:     p.acquired,
		Released:     p.released,
		FreePackets:  len(p.freePackets),
		FreePayloads: len(p.freePayloads),
	}
}

// Package packet defines the transaction unit that travels through the
// fabric and the pool that recycles it.
package packet

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sarchlab/fabricsim/sim/timing"
)

// Type classifies a packet.
type Type uint8

// Packet types.
const (
	Request Type = iota
	Response
	StreamData
	CreditReturn
)

func (t Type) String() string {
	switch t {
	case Request:
		return "Request"
	case Response:
		return "Response"
	case StreamData:
		return "StreamData"
	case CreditReturn:
		return "CreditReturn"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Cmd is the memory command a packet carries.
type Cmd uint8

// Commands.
const (
	CmdInvalid Cmd = iota
	CmdRead
	CmdWrite
)

func (c Cmd) String() string {
	switch c {
	case CmdInvalid:
		return "Invalid"
	case CmdRead:
		return "Read"
	case CmdWrite:
		return "Write"
	default:
		return fmt.Sprintf("Cmd(%d)", uint8(c))
	}
}

// PayloadCapacity is the number of data bytes a payload holds inline.
const PayloadCapacity = 64

// Status reports how a target handled a request.
type Status uint8

// Response statuses.
const (
	StatusOK Status = iota
	StatusError
)

// Payload is the data attached to a packet.
type Payload struct {
	Data   [PayloadCapacity]byte
	Length int
	Status Status
}

// SetData copies data into the payload.
func (p *Payload) SetData(data []byte) error {
	if len(data) > PayloadCapacity {
		return errors.Errorf(
			"payload of %d bytes exceeds capacity %d", len(data), PayloadCapacity)
	}

	n := copy(p.Data[:], data)
	p.Length = n

	return nil
}

// Bytes returns the valid part of the payload.
func (p *Payload) Bytes() []byte {
	return p.Data[:p.Length]
}

func (p *Payload) reset() {
	*p = Payload{}
}

// Key identifies a live transaction.
type Key struct {
	StreamID uint64
	SeqNum   uint64
}

// Packet is one in-flight transaction. Packets are created by a Pool and are
// passed around by pointer; they are never copied.
type Packet struct {
	StreamID uint64
	SeqNum   uint64

	Type Type
	Cmd  Cmd

	Addr  uint64
	Size  uint32
	SrcID int
	DstID int

	SrcCycle timing.VTimeInCycle
	DstCycle timing.VTimeInCycle

	VCID      int
	Priority  uint8
	FlowID    uint32
	HopCount  int
	RoutePath []string

	payload  *Payload
	borrowed bool

	originalReq Ref
	dependents  []Ref
	refCount    int
	retired     bool

	gen  uint32
	live bool
}

// IsRequest tells if the packet is a request.
func (p *Packet) IsRequest() bool { return p.Type == Request }

// IsResponse tells if the packet is a response.
func (p *Packet) IsResponse() bool { return p.Type == Response }

// IsStreamData tells if the packet carries stream data.
func (p *Packet) IsStreamData() bool { return p.Type == StreamData }

// IsCreditReturn tells if the packet returns flow-control credits.
func (p *Packet) IsCreditReturn() bool { return p.Type == CreditReturn }

// Payload returns the attached payload. A response built by NewResponse
// shares its request's payload.
func (p *Packet) Payload() *Payload {
	return p.payload
}

// OriginalReq returns the request this packet answers, or nil.
func (p *Packet) OriginalReq() *Packet {
	return p.originalReq.Get()
}

// Dependents returns the live packets that point at this packet as their
// original request.
func (p *Packet) Dependents() []*Packet {
	out := make([]*Packet, 0, len(p.dependents))
	for _, r := range p.dependents {
		if d := r.Get(); d != nil {
			out = append(out, d)
		}
	}

	return out
}

// RefCount returns how many other live packets use this packet as their
// original request.
func (p *Packet) RefCount() int {
	return p.refCount
}

// Live tells if the packet is currently acquired from its pool.
func (p *Packet) Live() bool {
	return p.live
}

// Key returns the transaction key.
func (p *Packet) Key() Key {
	return Key{StreamID: p.StreamID, SeqNum: p.SeqNum}
}

// Ref returns a non-owning handle to the packet.
func (p *Packet) Ref() Ref {
	return Ref{pkt: p, gen: p.gen}
}

// DelayCycles returns DstCycle - SrcCycle, or 0 if the packet has not been
// delivered or the timestamps are inconsistent.
func (p *Packet) DelayCycles() uint64 {
	if p.DstCycle == 0 || p.DstCycle < p.SrcCycle {
		return 0
	}

	return uint64(p.DstCycle - p.SrcCycle)
}

// End2EndCycles returns the time from the original request's injection to
// this packet's delivery. Without an original request it falls back to
// DelayCycles.
func (p *Packet) End2EndCycles() uint64 {
	orig := p.OriginalReq()
	if orig == nil || orig == p {
		return p.DelayCycles()
	}

	if p.DstCycle == 0 || p.DstCycle < orig.SrcCycle {
		return 0
	}

	return uint64(p.DstCycle - orig.SrcCycle)
}

// AddHop records that the packet passed through a port.
func (p *Packet) AddHop(label string) {
	p.HopCount++
	p.RoutePath = append(p.RoutePath, label)
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s %s [%d:%d] addr=0x%x vc=%d %d->%d",
		p.Type, p.Cmd, p.StreamID, p.SeqNum, p.Addr, p.VCID, p.SrcID, p.DstID)
}

func (p *Packet) removeDependent(d *Packet) {
	for i, r := range p.dependents {
		if r.pkt == d {
			p.dependents = append(p.dependents[:i], p.dependents[i+1:]...)
			return
		}
	}
}

func (p *Packet) reset() {
	gen := p.gen
	*p = Packet{
		gen:        gen,
		RoutePath:  p.RoutePath[:0],
		dependents: p.dependents[:0],
	}
}

// Ref is a non-owning reference to a packet. It resolves to nil once the
// packet has been released, even if the pool reuses the same object.
type Ref struct {
	pkt *Packet
	gen uint32
}

// Get returns the referenced packet, or nil if it is gone.
func (r Ref) Get() *Packet {
	if r.pkt == nil || !r.pkt.live || r.pkt.gen != r.gen {
		return nil
	}

	return r.pkt
}

// IsZero tells if the reference was never set.
func (r Ref) IsZero() bool {
	return r.pkt == nil
}

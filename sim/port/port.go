// Package port implements the link layer of the fabric: ports grouped by a
// PortManager, virtual-channel buffers, credits, and the PortPair that binds
// a downstream port to an upstream port with a fixed latency.
package port

import (
	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
)

// HookPosPortMsgSend marks when a packet is accepted for transmission.
var HookPosPortMsgSend = &hooking.HookPos{Name: "Port Msg Send"}

// HookPosPortMsgRecvd marks when a packet is handed to the receiving
// component.
var HookPosPortMsgRecvd = &hooking.HookPos{Name: "Port Msg Recv"}

// HookPosPortMsgDrop marks when a receiving component rejects a packet and
// the port releases it.
var HookPosPortMsgDrop = &hooking.HookPos{Name: "Port Msg Drop"}

// Owner is a component that owns ports.
type Owner interface {
	Name() string
}

// RequestHandler receives requests arriving on upstream ports. Returning
// true transfers ownership of the packet to the handler; returning false
// makes the port release it.
type RequestHandler interface {
	HandleUpstreamRequest(pkt *packet.Packet, portID int, srcLabel string) bool
}

// ResponseHandler receives responses arriving on downstream ports. The
// ownership rule is the same as for RequestHandler.
type ResponseHandler interface {
	HandleDownstreamResponse(pkt *packet.Packet, portID int, srcLabel string) bool
}

// PortFreeListener is notified when a buffer slot that the owner sends into
// becomes free again.
type PortFreeListener interface {
	NotifyPortFree()
}

// Port is the read-only view shared by downstream and upstream ports.
type Port interface {
	hooking.Hookable

	ID() int
	Label() string
	Owner() Owner
	Paired() bool
	VCs() []*VirtualChannel
	Stats() Stats
}

// Stats accumulates traffic counters of a port.
type Stats struct {
	ReqCount   uint64 `json:"req_count"`
	RespCount  uint64 `json:"resp_count"`
	Dropped    uint64 `json:"dropped"`
	TotalDelay uint64 `json:"total_delay"`
	MinDelay   uint64 `json:"min_delay"`
	MaxDelay   uint64 `json:"max_delay"`
}

// RecordResponse counts one received response with the given end-to-end
// delay.
func (s *Stats) RecordResponse(delay uint64) {
	if s.RespCount == 0 || delay < s.MinDelay {
		s.MinDelay = delay
	}

	if delay > s.MaxDelay {
		s.MaxDelay = delay
	}

	s.RespCount++
	s.TotalDelay += delay
}

// AvgDelay returns the mean response delay, or 0 without responses.
func (s Stats) AvgDelay() float64 {
	if s.RespCount == 0 {
		return 0
	}

	return float64(s.TotalDelay) / float64(s.RespCount)
}

// Merge adds the counters of o into s.
func (s *Stats) Merge(o Stats) {
	if o.RespCount > 0 {
		if s.RespCount == 0 || o.MinDelay < s.MinDelay {
			s.MinDelay = o.MinDelay
		}

		if o.MaxDelay > s.MaxDelay {
			s.MaxDelay = o.MaxDelay
		}
	}

	s.ReqCount += o.ReqCount
	s.RespCount += o.RespCount
	s.Dropped += o.Dropped
	s.TotalDelay += o.TotalDelay
}

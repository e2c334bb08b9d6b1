// Package cache provides a cache-like endpoint. Hits are decided by an
// address-bit predicate and answered locally; misses are forwarded
// downstream and their responses relayed back.
package cache

import (
	"fmt"

	"github.com/sarchlab/fabricsim/mem/mem"
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
)

// missEntry tracks a request whose copy has been sent downstream.
type missEntry struct {
	orig     *packet.Packet
	upPortID int
}

// pendingMiss is a miss waiting for a downstream slot.
type pendingMiss struct {
	missEntry
	fwd *packet.Packet
}

// Stats counts what happened to the requests a cache saw.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Rejected uint64 `json:"rejected"`
	Relayed  uint64 `json:"relayed"`
	Dropped  uint64 `json:"dropped"`
}

// Comp is a cache endpoint.
type Comp struct {
	*timing.TickingComponent

	sched  timing.EventScheduler
	pool   *packet.Pool
	ports  *port.PortManager
	logger logrus.FieldLogger

	HitMask      uint64
	HitLatency   int
	RelayLatency int

	// NodeID is the source id of the requests the cache forwards.
	NodeID int

	bufferSize       int
	interleavingSize uint64
	mapper           routing.AddressMapper

	buffer   []pendingMiss
	inflight map[packet.Ref]missEntry

	stats Stats
}

// PortManager returns the ports of the cache.
func (c *Comp) PortManager() *port.PortManager {
	return c.ports
}

// Stats returns the cache counters.
func (c *Comp) Stats() Stats {
	return c.stats
}

// SetNodeID sets the source id of forwarded misses.
func (c *Comp) SetNodeID(id int) {
	c.NodeID = id
}

// Buffered returns the number of misses waiting to be forwarded.
func (c *Comp) Buffered() int {
	return len(c.buffer)
}

// Inflight returns the number of misses waiting for a downstream response.
func (c *Comp) Inflight() int {
	return len(c.inflight)
}

// IsHit applies the hit predicate to an address.
func (c *Comp) IsHit(addr uint64) bool {
	return addr&c.HitMask == 0
}

// HandleUpstreamRequest answers hits and buffers misses. A miss that finds
// the buffer full is rejected.
func (c *Comp) HandleUpstreamRequest(
	pkt *packet.Packet,
	portID int,
	_ string,
) bool {
	if !pkt.IsRequest() {
		return false
	}

	taskID := tracing.PacketTaskID(pkt)

	if c.IsHit(pkt.Addr) {
		c.stats.Hits++
		tracing.AddTaskStep(taskID, c, tracing.StepHit)

		rsp := c.pool.NewResponse(pkt)
		rsp.Payload().Status = packet.StatusOK
		c.pool.Retire(pkt)
		c.sched.Schedule(c, mem.RespondEvent{Rsp: rsp, PortID: portID},
			c.HitLatency)

		return true
	}

	if len(c.buffer) >= c.bufferSize {
		c.stats.Rejected++
		return false
	}

	c.stats.Misses++
	tracing.AddTaskStep(taskID, c, tracing.StepMiss)

	c.buffer = append(c.buffer, pendingMiss{
		missEntry: missEntry{orig: pkt, upPortID: portID},
		fwd:       c.copyForDownstream(pkt),
	})
	c.TickLater()

	return true
}

func (c *Comp) copyForDownstream(req *packet.Packet) *packet.Packet {
	fwd := c.pool.Acquire()
	fwd.Type = packet.Request
	fwd.Cmd = req.Cmd
	fwd.StreamID = req.StreamID
	fwd.SeqNum = req.SeqNum
	fwd.Addr = req.Addr
	fwd.Size = req.Size
	fwd.SrcID = c.NodeID
	fwd.DstID = req.DstID
	fwd.VCID = req.VCID
	fwd.Priority = req.Priority
	fwd.FlowID = req.FlowID

	if req.Cmd == packet.CmdWrite {
		if err := fwd.Payload().SetData(req.Payload().Bytes()); err != nil {
			panic(err)
		}
	}

	return fwd
}

// Tick forwards the oldest buffered miss.
func (c *Comp) Tick() bool {
	if len(c.buffer) == 0 {
		return false
	}

	head := c.buffer[0]

	down := c.route(head.fwd.Addr)
	if down == nil || down.NumRemoteVCs() == 0 {
		c.dropMiss(head)
		return true
	}

	if !down.ValidVC(head.fwd.VCID) {
		head.fwd.VCID %= down.NumRemoteVCs()
	}

	head.fwd.SrcCycle = c.sched.CurrentCycle()
	if !down.SendReq(head.fwd) {
		return false
	}

	c.buffer = c.buffer[1:]
	c.inflight[head.fwd.Ref()] = head.missEntry
	tracing.AddTaskStep(tracing.PacketTaskID(head.fwd), c,
		tracing.StepForwarded)

	return true
}

func (c *Comp) route(addr uint64) *port.DownstreamPort {
	downs := c.ports.DownstreamPorts()

	m := c.mapper
	if m == nil {
		m = routing.NewInterleavedMapper(c.interleavingSize, len(downs))
	}

	return c.ports.DownstreamPort(m.Find(addr))
}

// dropMiss gives up on a miss that has nowhere to go. Both the original
// request and its copy are released.
func (c *Comp) dropMiss(m pendingMiss) {
	c.buffer = c.buffer[1:]
	c.stats.Dropped++
	c.logger.WithField("packet", m.orig.String()).
		Warn("no downstream port for miss")
	tracing.AddTaskStep(tracing.PacketTaskID(m.orig), c, tracing.StepDropped)

	c.pool.Release(m.fwd)
	c.pool.Release(m.orig)
}

// HandleDownstreamResponse turns the response to a forwarded miss into the
// response to the original request.
func (c *Comp) HandleDownstreamResponse(
	pkt *packet.Packet,
	_ int,
	_ string,
) bool {
	fwd := pkt.OriginalReq()
	if fwd == nil {
		return false
	}

	entry, ok := c.inflight[fwd.Ref()]
	if !ok {
		return false
	}

	delete(c.inflight, fwd.Ref())

	rsp := c.pool.NewResponse(entry.orig)
	payload := rsp.Payload()
	payload.Status = pkt.Payload().Status

	if entry.orig.Cmd == packet.CmdRead {
		if err := payload.SetData(pkt.Payload().Bytes()); err != nil {
			panic(err)
		}
	}

	c.pool.Retire(entry.orig)
	c.pool.Release(pkt)

	c.stats.Relayed++
	tracing.AddTaskStep(tracing.PacketTaskID(rsp), c, tracing.StepRelayed)
	c.sched.Schedule(c,
		mem.RespondEvent{Rsp: rsp, PortID: entry.upPortID}, c.RelayLatency)

	return true
}

// Handle sends due responses.
func (c *Comp) Handle(event any) error {
	switch e := event.(type) {
	case mem.RespondEvent:
		c.respond(e)
	case timing.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		return fmt.Errorf("cache %s cannot handle %T", c.Name(), event)
	}

	return nil
}

func (c *Comp) respond(e mem.RespondEvent) {
	if e.Attempts == 0 {
		e.Rsp.SrcCycle = c.sched.CurrentCycle()
	}

	if mem.SendResponse(c.ports, c.sched, c, e) == mem.Dropped {
		c.stats.Dropped++
		c.logger.WithField("port", e.PortID).Warn("response dropped")
	}
}

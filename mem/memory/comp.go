// Package memory provides a memory endpoint that answers every request after
// a fixed latency.
package memory

import (
	"fmt"

	"github.com/sarchlab/fabricsim/mem/mem"
	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
)

// Comp is a memory endpoint. It has no concurrency limit: every accepted
// request is answered Latency cycles after it arrives.
type Comp struct {
	*hooking.HookableBase

	name    string
	sched   timing.EventScheduler
	pool    *packet.Pool
	ports   *port.PortManager
	logger  logrus.FieldLogger
	Storage *mem.Storage
	Latency int

	served  uint64
	dropped uint64
	retries uint64
}

// Name returns the component name.
func (c *Comp) Name() string {
	return c.name
}

// PortManager returns the ports of the memory.
func (c *Comp) PortManager() *port.PortManager {
	return c.ports
}

// Served returns the number of responses sent.
func (c *Comp) Served() uint64 {
	return c.served
}

// Dropped returns the number of responses that could not be sent.
func (c *Comp) Dropped() uint64 {
	return c.dropped
}

// Retries returns how many times a response met backpressure.
func (c *Comp) Retries() uint64 {
	return c.retries
}

// HandleUpstreamRequest performs the access and schedules the response.
func (c *Comp) HandleUpstreamRequest(
	pkt *packet.Packet,
	portID int,
	_ string,
) bool {
	if !pkt.IsRequest() {
		return false
	}

	rsp := c.pool.NewResponse(pkt)
	c.access(pkt, rsp.Payload())
	c.pool.Retire(pkt)

	c.sched.Schedule(c, mem.RespondEvent{Rsp: rsp, PortID: portID}, c.Latency)

	return true
}

func (c *Comp) access(req *packet.Packet, payload *packet.Payload) {
	var err error

	switch req.Cmd {
	case packet.CmdWrite:
		err = c.Storage.Write(req.Addr, payload.Bytes())
	case packet.CmdRead:
		err = c.read(req, payload)
	default:
		err = fmt.Errorf("unsupported command %s", req.Cmd)
	}

	if err != nil {
		payload.Status = packet.StatusError
		c.logger.WithError(err).WithField("packet", req.String()).
			Warn("memory access failed")
	}
}

func (c *Comp) read(req *packet.Packet, payload *packet.Payload) error {
	n := uint64(req.Size)
	if n > packet.PayloadCapacity {
		n = packet.PayloadCapacity
	}

	data, err := c.Storage.Read(req.Addr, n)
	if err != nil {
		return err
	}

	return payload.SetData(data)
}

// Handle sends the responses that are due.
func (c *Comp) Handle(event any) error {
	switch e := event.(type) {
	case mem.RespondEvent:
		c.respond(e)
	default:
		return fmt.Errorf("memory %s cannot handle %T", c.name, event)
	}

	return nil
}

func (c *Comp) respond(e mem.RespondEvent) {
	if e.Attempts == 0 {
		e.Rsp.SrcCycle = c.sched.CurrentCycle()
		tracing.AddTaskStep(tracing.PacketTaskID(e.Rsp), c, tracing.StepServed)
	}

	switch mem.SendResponse(c.ports, c.sched, c, e) {
	case mem.Sent:
		c.served++
	case mem.Retrying:
		c.retries++
	case mem.Dropped:
		c.dropped++
		c.logger.WithField("port", e.PortID).Warn("response dropped")
	}
}

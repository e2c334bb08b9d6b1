// Package router provides a stateless address-decoding router.
//
// The router forwards a request in the same cycle it arrives. A request that
// cannot be forwarded, because no window covers its address or the output
// is out of space, is released and counted. Responses are sent back on the
// port their request came in on.
package router

import (
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
)

// Stats counts the decisions of a router.
type Stats struct {
	Routed     uint64 `json:"routed"`
	NoRoute    uint64 `json:"no_route"`
	Blocked    uint64 `json:"blocked"`
	Relayed    uint64 `json:"relayed"`
	Unroutable uint64 `json:"unroutable"`
}

// Dropped returns the number of packets the router released.
func (s Stats) Dropped() uint64 {
	return s.NoRoute + s.Blocked + s.Unroutable
}

// Comp is a router.
type Comp struct {
	*hooking.HookableBase

	name       string
	pool       *packet.Pool
	ports      *port.PortManager
	logger     logrus.FieldLogger
	table      *routing.WindowTable
	returnPath *routing.ReturnPath

	stats Stats
}

// Name returns the router name.
func (c *Comp) Name() string {
	return c.name
}

// PortManager returns the ports of the router.
func (c *Comp) PortManager() *port.PortManager {
	return c.ports
}

// Table returns the address windows of the router.
func (c *Comp) Table() *routing.WindowTable {
	return c.table
}

// Stats returns the router counters.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Pending returns the number of forwarded requests not yet answered.
func (c *Comp) Pending() int {
	return c.returnPath.Len()
}

// HandleUpstreamRequest decodes the address and forwards the request.
func (c *Comp) HandleUpstreamRequest(
	pkt *packet.Packet,
	portID int,
	_ string,
) bool {
	if !pkt.IsRequest() {
		return false
	}

	taskID := tracing.PacketTaskID(pkt)

	out := c.ports.DownstreamPort(c.table.Find(pkt.Addr))
	if out == nil {
		c.stats.NoRoute++
		c.drop(pkt, taskID, "no route")

		return true
	}

	tracing.AddTaskStep(taskID, c, tracing.StepRouted)

	c.returnPath.Record(pkt, portID)
	if !out.SendReq(pkt) {
		c.returnPath.Forget(pkt)
		c.stats.Blocked++
		c.drop(pkt, taskID, "output blocked")

		return true
	}

	c.stats.Routed++

	return true
}

func (c *Comp) drop(pkt *packet.Packet, taskID, reason string) {
	c.logger.WithFields(logrus.Fields{
		"packet": pkt.String(),
		"reason": reason,
	}).Debug("router drop")
	tracing.AddTaskStep(taskID, c, tracing.StepDropped)
	c.pool.Release(pkt)
}

// HandleDownstreamResponse sends the response back on the port its request
// arrived on.
func (c *Comp) HandleDownstreamResponse(
	pkt *packet.Packet,
	_ int,
	_ string,
) bool {
	portID, ok := c.returnPath.Lookup(pkt)

	up := c.ports.UpstreamPort(portID)
	if !ok || up == nil || !up.SendResp(pkt) {
		c.stats.Unroutable++
		c.drop(pkt, tracing.PacketTaskID(pkt), "response unroutable")

		return true
	}

	c.stats.Relayed++

	return true
}

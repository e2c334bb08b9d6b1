// Package crossbar provides an N-to-M switch that forwards requests in
// arrival order and retries the ones that meet backpressure.
package crossbar

import (
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
)

type pendingReq struct {
	pkt     *packet.Packet
	srcPort int
}

type pendingRsp struct {
	pkt    *packet.Packet
	portID int
}

// Stats counts what a crossbar did.
type Stats struct {
	Forwarded  uint64 `json:"forwarded"`
	Requeued   uint64 `json:"requeued"`
	Rejected   uint64 `json:"rejected"`
	NoRoute    uint64 `json:"no_route"`
	Remapped   uint64 `json:"remapped"`
	Relayed    uint64 `json:"relayed"`
	Unroutable uint64 `json:"unroutable"`
}

// Comp is a crossbar.
type Comp struct {
	*timing.TickingComponent

	pool       *packet.Pool
	ports      *port.PortManager
	logger     logrus.FieldLogger
	bufferSize int
	mapper     routing.AddressMapper
	returnPath *routing.ReturnPath

	pending   []pendingReq
	responses []pendingRsp

	// stalls counts the failed sends since the last successful one.
	stalls int

	stats Stats
}

// PortManager returns the ports of the crossbar.
func (c *Comp) PortManager() *port.PortManager {
	return c.ports
}

// Stats returns the crossbar counters.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Pending returns the number of requests waiting to be forwarded.
func (c *Comp) Pending() int {
	return len(c.pending)
}

// Outstanding returns the number of forwarded requests not yet answered.
func (c *Comp) Outstanding() int {
	return c.returnPath.Len()
}

// HandleUpstreamRequest queues a request. It is refused when the pending
// list is full.
func (c *Comp) HandleUpstreamRequest(
	pkt *packet.Packet,
	portID int,
	_ string,
) bool {
	if !pkt.IsRequest() {
		return false
	}

	if len(c.pending) >= c.bufferSize {
		c.stats.Rejected++
		return false
	}

	c.pending = append(c.pending, pendingReq{pkt: pkt, srcPort: portID})
	c.stalls = 0
	c.TickLater()

	return true
}

// HandleDownstreamResponse sends the response back on the port its request
// came in on, retrying on later ticks if that port is busy.
func (c *Comp) HandleDownstreamResponse(
	pkt *packet.Packet,
	_ int,
	_ string,
) bool {
	portID, ok := c.returnPath.Lookup(pkt)
	if !ok || c.ports.UpstreamPort(portID) == nil {
		c.stats.Unroutable++
		c.logger.WithField("packet", pkt.String()).
			Debug("crossbar response unroutable")
		c.pool.Release(pkt)

		return true
	}

	c.responses = append(c.responses, pendingRsp{pkt: pkt, portID: portID})
	c.TickLater()

	return true
}

// NotifyPortFree wakes the crossbar and lets every pending request try its
// output again.
func (c *Comp) NotifyPortFree() {
	c.stalls = 0
	c.TickLater()
}

// Tick relays responses and forwards the request at the head of the
// pending list.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.relay() || madeProgress
	madeProgress = c.forward() || madeProgress

	return madeProgress
}

func (c *Comp) relay() bool {
	madeProgress := false
	kept := c.responses[:0]

	for _, r := range c.responses {
		up := c.ports.UpstreamPort(r.portID)
		if !up.ValidVC(r.pkt.VCID) {
			c.stats.Unroutable++
			c.logger.WithField("packet", r.pkt.String()).
				Warn("crossbar response channel out of range")
			c.pool.Release(r.pkt)
			madeProgress = true

			continue
		}

		if up.SendResp(r.pkt) {
			c.stats.Relayed++
			madeProgress = true

			continue
		}

		kept = append(kept, r)
	}

	for i := len(kept); i < len(c.responses); i++ {
		c.responses[i] = pendingRsp{}
	}

	c.responses = kept

	return madeProgress
}

func (c *Comp) forward() bool {
	if len(c.pending) == 0 || c.stalls >= len(c.pending) {
		return false
	}

	head := c.pending[0]
	c.pending = c.pending[1:]

	out := c.route(head.pkt.Addr)
	if out == nil || out.NumRemoteVCs() == 0 {
		c.stats.NoRoute++
		c.logger.WithField("packet", head.pkt.String()).
			Warn("crossbar has no output")
		tracing.AddTaskStep(tracing.PacketTaskID(head.pkt), c,
			tracing.StepDropped)
		c.pool.Release(head.pkt)

		return true
	}

	if !out.ValidVC(head.pkt.VCID) {
		head.pkt.VCID = remapVC(head.pkt.VCID, out.NumRemoteVCs())
		c.stats.Remapped++
	}

	c.returnPath.Record(head.pkt, head.srcPort)
	if !out.SendReq(head.pkt) {
		c.returnPath.Forget(head.pkt)
		c.pending = append(c.pending, head)
		c.stats.Requeued++
		c.stalls++

		return c.stalls < len(c.pending)
	}

	c.stalls = 0
	c.stats.Forwarded++
	tracing.AddTaskStep(tracing.PacketTaskID(head.pkt), c, tracing.StepRouted)

	return true
}

// remapVC folds a channel id into the n channels of an output link.
func remapVC(vc, n int) int {
	vc %= n
	if vc < 0 {
		vc += n
	}

	return vc
}

func (c *Comp) route(addr uint64) *port.DownstreamPort {
	m := c.mapper
	if m == nil {
		m = routing.NewInterleavedMapper(1, len(c.ports.DownstreamPorts()))
	}

	return c.ports.DownstreamPort(m.Find(addr))
}

var _ timing.Ticker = (*Comp)(nil)

// Package trafficgen provides a component that injects requests into a
// fabric and measures how long the responses take.
package trafficgen

import (
	"fmt"
	"sort"

	"github.com/iti/rngstream"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

type startEvent struct{}

// ProgressTracker is told when requests are sent and answered.
type ProgressTracker interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

type outgoing struct {
	pkt    *packet.Packet
	portID int
}

// Summary reports the traffic a generator produced and the latency of the
// responses it received.
type Summary struct {
	Name     string  `json:"name"`
	Sent     uint64  `json:"sent"`
	Received uint64  `json:"received"`
	Errors   uint64  `json:"errors"`
	Failed   uint64  `json:"failed"`
	Retries  uint64  `json:"retries"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	P50      float64 `json:"p50"`
	P99      float64 `json:"p99"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Comp is a traffic generator. It sends requests out of its downstream
// ports in turn.
type Comp struct {
	*timing.TickingComponent

	sched  timing.EventScheduler
	pool   *packet.Pool
	ports  *port.PortManager
	logger logrus.FieldLogger
	rng    *rngstream.RngStream

	progress ProgressTracker

	NumRequests    int
	StartCycle     timing.VTimeInCycle
	Interval       int
	ReadRatio      float64
	AddrLow        uint64
	AddrHigh       uint64
	Alignment      uint64
	RequestSize    uint32
	MaxOutstanding int
	StreamID       uint64
	NodeID         int

	streamSet bool

	nextSeq     uint64
	nextInject  timing.VTimeInCycle
	retry       *outgoing
	outstanding int

	sent     uint64
	received uint64
	errors   uint64
	failed   uint64
	retries  uint64
	samples  []float64
}

// PortManager returns the ports of the generator.
func (c *Comp) PortManager() *port.PortManager {
	return c.ports
}

// SetProgressTracker reports progress to t.
func (c *Comp) SetProgressTracker(t ProgressTracker) {
	c.progress = t
}

// SetNodeID sets the source id stamped on every request.
func (c *Comp) SetNodeID(id int) {
	c.NodeID = id
}

// HasStreamID tells if the stream id was chosen explicitly or already
// assigned.
func (c *Comp) HasStreamID() bool {
	return c.streamSet
}

// Stream returns the stream id stamped on every request.
func (c *Comp) Stream() uint64 {
	return c.StreamID
}

// AssignStreamID sets the stream id of a generator that has none.
// Assigning twice panics.
func (c *Comp) AssignStreamID(id uint64) {
	if c.streamSet {
		panic(fmt.Sprintf("traffic generator %s already has stream id %d",
			c.Name(), c.StreamID))
	}

	c.StreamID = id
	c.streamSet = true
}

// Outstanding returns the number of requests waiting for a response.
func (c *Comp) Outstanding() int {
	return c.outstanding
}

// Latencies returns the end-to-end latency of every response received.
func (c *Comp) Latencies() []float64 {
	return c.samples
}

// Done tells if every request has been sent and answered.
func (c *Comp) Done() bool {
	return c.retry == nil &&
		int(c.sent+c.failed) >= c.NumRequests &&
		c.outstanding == 0
}

// Start schedules the first injection.
func (c *Comp) Start() {
	now := c.sched.CurrentCycle()

	delay := 0
	c.nextInject = now

	if c.StartCycle > now {
		delay = int(c.StartCycle - now)
		c.nextInject = c.StartCycle
	}

	c.sched.Schedule(c, startEvent{}, delay)
}

// Handle starts the generator.
func (c *Comp) Handle(event any) error {
	switch e := event.(type) {
	case startEvent:
		c.TickNow()
	case timing.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		return fmt.Errorf("traffic generator %s cannot handle %T",
			c.Name(), event)
	}

	return nil
}

// Tick injects at most one request.
func (c *Comp) Tick() bool {
	if c.retry != nil {
		if !c.send(c.retry) {
			c.retries++
			return false
		}

		c.retry = nil

		return true
	}

	if int(c.sent+c.failed) >= c.NumRequests {
		return false
	}

	if c.MaxOutstanding > 0 && c.outstanding >= c.MaxOutstanding {
		return false
	}

	now := c.sched.CurrentCycle()
	if now < c.nextInject {
		return true
	}

	c.nextInject = now + timing.VTimeInCycle(c.Interval)

	o := c.generate()
	if o == nil {
		return true
	}

	if !c.send(o) {
		c.retry = o
		c.retries++

		return false
	}

	return true
}

func (c *Comp) generate() *outgoing {
	seq := c.nextSeq
	c.nextSeq++

	downs := c.ports.DownstreamPorts()
	if len(downs) == 0 {
		c.failed++
		c.logger.Error("traffic generator has no downstream port")

		return nil
	}

	portID := int(seq % uint64(len(downs)))
	numVCs := downs[portID].NumRemoteVCs()

	if numVCs == 0 {
		c.failed++
		c.logger.WithField("port", downs[portID].Label()).
			Error("traffic generator port is not connected")

		return nil
	}

	pkt := c.pool.Acquire()
	pkt.Type = packet.Request
	pkt.StreamID = c.StreamID
	pkt.SeqNum = seq
	pkt.SrcID = c.NodeID
	pkt.Addr = c.randomAddr()
	pkt.Size = c.RequestSize
	pkt.VCID = int(seq % uint64(numVCs))
	pkt.Cmd = packet.CmdWrite

	if c.rng.RandU01() < c.ReadRatio {
		pkt.Cmd = packet.CmdRead
	} else {
		c.fillWriteData(pkt)
	}

	return &outgoing{pkt: pkt, portID: portID}
}

func (c *Comp) randomAddr() uint64 {
	blocks := (c.AddrHigh - c.AddrLow) / c.Alignment
	idx := c.rng.RandInt(0, int(blocks)-1)

	return c.AddrLow + uint64(idx)*c.Alignment
}

func (c *Comp) fillWriteData(pkt *packet.Packet) {
	data := make([]byte, pkt.Size)
	for i := range data {
		data[i] = byte(pkt.SeqNum) + byte(i)
	}

	if err := pkt.Payload().SetData(data); err != nil {
		panic(err)
	}
}

func (c *Comp) send(o *outgoing) bool {
	o.pkt.SrcCycle = c.sched.CurrentCycle()

	if !c.ports.DownstreamPort(o.portID).SendReq(o.pkt) {
		return false
	}

	c.sent++
	c.outstanding++

	if c.progress != nil {
		c.progress.IncrementInProgress(1)
	}

	tracing.StartTask(tracing.PacketTaskID(o.pkt), "", c,
		"req", o.pkt.Cmd.String(), nil)

	return true
}

// HandleDownstreamResponse records the latency of a response and releases
// it.
func (c *Comp) HandleDownstreamResponse(
	pkt *packet.Packet,
	_ int,
	_ string,
) bool {
	if !pkt.IsResponse() {
		return false
	}

	c.samples = append(c.samples, float64(pkt.End2EndCycles()))
	c.received++
	c.outstanding--

	if c.progress != nil {
		c.progress.MoveInProgressToFinished(1)
	}

	if pkt.Payload().Status != packet.StatusOK {
		c.errors++
	}

	tracing.EndTask(tracing.PacketTaskID(pkt), c)
	c.pool.Release(pkt)
	c.TickLater()

	if c.Done() {
		s := c.Summary()
		c.logger.WithFields(logrus.Fields{
			"received": s.Received,
			"mean":     s.Mean,
			"p99":      s.P99,
		}).Info("traffic done")
	}

	return true
}

// Summary computes the traffic statistics collected so far.
func (c *Comp) Summary() Summary {
	s := Summary{
		Name:     c.Name(),
		Sent:     c.sent,
		Received: c.received,
		Errors:   c.errors,
		Failed:   c.failed,
		Retries:  c.retries,
	}

	if len(c.samples) == 0 {
		return s
	}

	sorted := append([]float64(nil), c.samples...)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	s.P50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]

	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}

	return s
}

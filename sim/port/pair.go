package port

import (
	"fmt"

	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/timing"
)

// direction tells which way a packet travels over a PortPair.
type direction uint8

const (
	toUpstream direction = iota
	toDownstream
)

// deliveryEvent asks a PortPair to hand the head of a virtual channel to the
// receiving component.
type deliveryEvent struct {
	dir direction
	vc  int
}

// creditEvent brings a credit back to the sending side of a channel.
type creditEvent struct {
	dir direction
	pkt *packet.Packet
}

// PortPair binds one downstream port to one upstream port. Requests travel
// with the downstream port's delay; responses are delivered in the same
// cycle they are sent. A pair cannot be rebound once created.
type PortPair struct {
	name  string
	down  *DownstreamPort
	up    *UpstreamPort
	sched timing.EventScheduler
	pool  *packet.Pool

	// Credits held by the sending side, indexed by the receiving channel.
	reqCredits  []*CreditCounter
	respCredits []*CreditCounter
}

// NewPortPair binds down to up with valid/ready flow control: a send
// succeeds when the receiving channel has a free slot.
func NewPortPair(down *DownstreamPort, up *UpstreamPort) *PortPair {
	if down.pair != nil || up.pair != nil {
		panic(fmt.Sprintf("port: %s or %s is already paired",
			down.label, up.label))
	}

	pp := &PortPair{
		name:  down.label + "->" + up.label,
		down:  down,
		up:    up,
		sched: down.mgr.sched,
		pool:  down.mgr.pool,
	}
	down.pair = pp
	up.pair = pp

	return pp
}

// NewCreditPortPair binds down to up with credit-based flow control. Each
// side starts with initial credits per receiving channel, or with the
// channel capacity if initial is not positive. A credit comes back, after
// the link delay, when the receiver frees the slot.
func NewCreditPortPair(
	down *DownstreamPort,
	up *UpstreamPort,
	initial int,
) *PortPair {
	pp := NewPortPair(down, up)
	pp.reqCredits = makeCredits(up.vcs, initial)
	pp.respCredits = makeCredits(down.vcs, initial)

	return pp
}

func makeCredits(vcs []*VirtualChannel, initial int) []*CreditCounter {
	credits := make([]*CreditCounter, len(vcs))
	for i, vc := range vcs {
		n := initial
		if n <= 0 {
			n = vc.Capacity()
		}

		credits[i] = NewCreditCounter(n)
	}

	return credits
}

// Name returns the name of the pair.
func (pp *PortPair) Name() string {
	return pp.name
}

// Downstream returns the initiator-side port.
func (pp *PortPair) Downstream() *DownstreamPort {
	return pp.down
}

// Upstream returns the target-side port.
func (pp *PortPair) Upstream() *UpstreamPort {
	return pp.up
}

// CreditBased tells if the pair uses credits.
func (pp *PortPair) CreditBased() bool {
	return pp.reqCredits != nil
}

// RequestCredits returns the credit counters the downstream side spends on
// requests, or nil for a valid/ready pair.
func (pp *PortPair) RequestCredits() []*CreditCounter {
	return pp.reqCredits
}

// ResponseCredits returns the credit counters the upstream side spends on
// responses, or nil for a valid/ready pair.
func (pp *PortPair) ResponseCredits() []*CreditCounter {
	return pp.respCredits
}

func (pp *PortPair) sendReq(pkt *packet.Packet) bool {
	if !pp.reserve(pkt, pp.up.vcs, pp.reqCredits) {
		return false
	}

	pp.down.stats.ReqCount++
	pkt.AddHop(pp.down.label)
	pp.down.invokeHook(HookPosPortMsgSend, pkt)
	pp.sched.Schedule(pp, deliveryEvent{dir: toUpstream, vc: pkt.VCID},
		pp.down.delay)

	return true
}

func (pp *PortPair) sendResp(pkt *packet.Packet) bool {
	if !pp.reserve(pkt, pp.down.vcs, pp.respCredits) {
		return false
	}

	pp.up.stats.RespCount++
	pkt.AddHop(pp.up.label)
	pp.up.invokeHook(HookPosPortMsgSend, pkt)
	pp.sched.Schedule(pp, deliveryEvent{dir: toDownstream, vc: pkt.VCID}, 0)

	return true
}

func (pp *PortPair) reserve(
	pkt *packet.Packet,
	vcs []*VirtualChannel,
	credits []*CreditCounter,
) bool {
	if pkt.VCID < 0 || pkt.VCID >= len(vcs) {
		return false
	}

	vc := vcs[pkt.VCID]
	if !vc.CanPush() {
		return false
	}

	if credits != nil && !credits[pkt.VCID].TryConsume() {
		return false
	}

	vc.Push(pkt)

	return true
}

// Handle processes the link events of the pair.
func (pp *PortPair) Handle(event any) error {
	switch e := event.(type) {
	case deliveryEvent:
		pp.deliver(e)
	case creditEvent:
		pp.returnCredit(e)
	default:
		return fmt.Errorf("port pair %s cannot handle %T", pp.name, event)
	}

	return nil
}

func (pp *PortPair) deliver(e deliveryEvent) {
	var from, to *portBase
	if e.dir == toUpstream {
		from, to = &pp.down.portBase, &pp.up.portBase
	} else {
		from, to = &pp.up.portBase, &pp.down.portBase
	}

	pkt := to.vcs[e.vc].Pop()
	if pkt == nil {
		panic(fmt.Sprintf("port: delivery on empty channel %d of %s",
			e.vc, to.label))
	}

	pkt.DstCycle = pp.sched.CurrentCycle()
	to.invokeHook(HookPosPortMsgRecvd, pkt)

	if e.dir == toUpstream {
		pp.handOverRequest(pkt, from, to)
	} else {
		pp.handOverResponse(pkt, from, to)
	}

	pp.freeSlot(e, from)
}

func (pp *PortPair) handOverRequest(pkt *packet.Packet, from, to *portBase) {
	h, ok := to.mgr.owner.(RequestHandler)
	if ok && h.HandleUpstreamRequest(pkt, to.id, from.label) {
		to.stats.ReqCount++
		return
	}

	pp.drop(pkt, to)
}

func (pp *PortPair) handOverResponse(pkt *packet.Packet, from, to *portBase) {
	delay := pkt.End2EndCycles()

	h, ok := to.mgr.owner.(ResponseHandler)
	if ok && h.HandleDownstreamResponse(pkt, to.id, from.label) {
		to.stats.RecordResponse(delay)
		return
	}

	pp.drop(pkt, to)
}

func (pp *PortPair) drop(pkt *packet.Packet, at *portBase) {
	at.stats.Dropped++
	at.invokeHook(HookPosPortMsgDrop, pkt)
	pp.pool.Release(pkt)
}

func (pp *PortPair) freeSlot(e deliveryEvent, sender *portBase) {
	if !pp.CreditBased() {
		sender.notifyFree()
		return
	}

	credit := pp.pool.Acquire()
	credit.Type = packet.CreditReturn
	credit.VCID = e.vc
	credit.SrcCycle = pp.sched.CurrentCycle()

	pp.sched.Schedule(pp, creditEvent{dir: e.dir, pkt: credit}, pp.down.delay)
}

func (pp *PortPair) returnCredit(e creditEvent) {
	sender := &pp.down.portBase
	credits := pp.reqCredits

	if e.dir == toDownstream {
		sender = &pp.up.portBase
		credits = pp.respCredits
	}

	credits[e.pkt.VCID].Return(1)
	pp.pool.Release(e.pkt)
	sender.notifyFree()
}

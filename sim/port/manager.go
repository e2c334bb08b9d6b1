package port

import (
	"fmt"

	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/timing"
)

// PortManager holds the ordered downstream and upstream ports of one
// component.
type PortManager struct {
	owner Owner
	sched timing.EventScheduler
	pool  *packet.Pool

	downs []*DownstreamPort
	ups   []*UpstreamPort
}

// NewPortManager creates a PortManager for owner. Ports created by the
// manager schedule deliveries on sched and release packets into pool.
func NewPortManager(
	owner Owner,
	sched timing.EventScheduler,
	pool *packet.Pool,
) *PortManager {
	return &PortManager{
		owner: owner,
		sched: sched,
		pool:  pool,
	}
}

// Owner returns the component that owns the ports.
func (m *PortManager) Owner() Owner {
	return m.owner
}

// Pool returns the packet pool the ports release into.
func (m *PortManager) Pool() *packet.Pool {
	return m.pool
}

// AddDownstreamPort adds an initiator-side port. The capacities and
// priorities describe the virtual channels that buffer responses arriving on
// the port; a missing priority defaults to 0.
func (m *PortManager) AddDownstreamPort(
	capacities, priorities []int,
) *DownstreamPort {
	id := len(m.downs)
	p := &DownstreamPort{
		portBase: newPortBase(
			m, id, fmt.Sprintf("%s.Down[%d]", m.owner.Name(), id),
			capacities, priorities),
	}
	m.downs = append(m.downs, p)

	return p
}

// AddUpstreamPort adds a target-side port whose virtual channels buffer
// incoming requests.
func (m *PortManager) AddUpstreamPort(
	capacities, priorities []int,
) *UpstreamPort {
	id := len(m.ups)
	p := &UpstreamPort{
		portBase: newPortBase(
			m, id, fmt.Sprintf("%s.Up[%d]", m.owner.Name(), id),
			capacities, priorities),
	}
	m.ups = append(m.ups, p)

	return p
}

// DownstreamPorts returns the downstream ports in creation order.
func (m *PortManager) DownstreamPorts() []*DownstreamPort {
	return m.downs
}

// UpstreamPorts returns the upstream ports in creation order.
func (m *PortManager) UpstreamPorts() []*UpstreamPort {
	return m.ups
}

// DownstreamPort returns the downstream port with the given id, or nil.
func (m *PortManager) DownstreamPort(id int) *DownstreamPort {
	if id < 0 || id >= len(m.downs) {
		return nil
	}

	return m.downs[id]
}

// UpstreamPort returns the upstream port with the given id, or nil.
func (m *PortManager) UpstreamPort(id int) *UpstreamPort {
	if id < 0 || id >= len(m.ups) {
		return nil
	}

	return m.ups[id]
}

// DownstreamStats sums the statistics of all downstream ports.
func (m *PortManager) DownstreamStats() Stats {
	var s Stats
	for _, p := range m.downs {
		s.Merge(p.stats)
	}

	return s
}

// UpstreamStats sums the statistics of all upstream ports.
func (m *PortManager) UpstreamStats() Stats {
	var s Stats
	for _, p := range m.ups {
		s.Merge(p.stats)
	}

	return s
}

// AllPorts lists every port, downstream first.
func (m *PortManager) AllPorts() []Port {
	ports := make([]Port, 0, len(m.downs)+len(m.ups))
	for _, p := range m.downs {
		ports = append(ports, p)
	}

	for _, p := range m.ups {
		ports = append(ports, p)
	}

	return ports
}

type portBase struct {
	*hooking.HookableBase

	mgr   *PortManager
	id    int
	label string
	vcs   []*VirtualChannel
	pair  *PortPair
	stats Stats
}

func newPortBase(
	mgr *PortManager,
	id int,
	label string,
	capacities, priorities []int,
) portBase {
	vcs := make([]*VirtualChannel, len(capacities))
	for i, c := range capacities {
		prio := 0
		if i < len(priorities) {
			prio = priorities[i]
		}

		vcs[i] = NewVirtualChannel(c, prio)
	}

	return portBase{
		HookableBase: hooking.NewHookableBase(),
		mgr:          mgr,
		id:           id,
		label:        label,
		vcs:          vcs,
	}
}

// ID returns the index of the port in its manager.
func (p *portBase) ID() int {
	return p.id
}

// Label returns a human-readable port name.
func (p *portBase) Label() string {
	return p.label
}

// Name returns the same as Label.
func (p *portBase) Name() string {
	return p.label
}

// Owner returns the component that owns the port.
func (p *portBase) Owner() Owner {
	return p.mgr.owner
}

// Paired tells if a PortPair is bound to the port.
func (p *portBase) Paired() bool {
	return p.pair != nil
}

// VCs returns the virtual channels that buffer packets arriving here.
func (p *portBase) VCs() []*VirtualChannel {
	return p.vcs
}

// Stats returns a copy of the port statistics.
func (p *portBase) Stats() Stats {
	return p.stats
}

func (p *portBase) invokeHook(pos *hooking.HookPos, pkt *packet.Packet) {
	if p.NumHooks() == 0 {
		return
	}

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    pos,
		Item:   pkt,
		Now:    uint64(p.mgr.sched.CurrentCycle()),
	})
}

func (p *portBase) notifyFree() {
	if l, ok := p.mgr.owner.(PortFreeListener); ok {
		l.NotifyPortFree()
	}
}

// DownstreamPort is the initiator side of a link. It sends requests and
// receives responses, and it carries the link delay.
type DownstreamPort struct {
	portBase

	delay int
}

var _ Port = (*DownstreamPort)(nil)

// Delay returns the link delay in cycles.
func (p *DownstreamPort) Delay() int {
	return p.delay
}

// SetDelay sets the link delay. It must be called before the port is
// paired. Negative delays panic.
func (p *DownstreamPort) SetDelay(cycles int) {
	if cycles < 0 {
		panic(fmt.Sprintf("port: negative delay %d on %s", cycles, p.label))
	}

	if p.pair != nil {
		panic(fmt.Sprintf("port: %s is already paired", p.label))
	}

	p.delay = cycles
}

// ValidVC tells if vc names a request channel on the paired upstream port.
func (p *DownstreamPort) ValidVC(vc int) bool {
	return p.pair != nil && vc >= 0 && vc < len(p.pair.up.vcs)
}

// NumRemoteVCs returns how many request channels the peer exposes.
func (p *DownstreamPort) NumRemoteVCs() int {
	if p.pair == nil {
		return 0
	}

	return len(p.pair.up.vcs)
}

// SendReq hands a request to the paired upstream port. It returns false and
// leaves the packet with the caller if the port is unpaired, the channel id
// is out of range, or the channel is out of space or credit.
func (p *DownstreamPort) SendReq(pkt *packet.Packet) bool {
	if p.pair == nil || pkt == nil {
		return false
	}

	return p.pair.sendReq(pkt)
}

// UpstreamPort is the target side of a link. It receives requests and sends
// responses.
type UpstreamPort struct {
	portBase
}

var _ Port = (*UpstreamPort)(nil)

// ValidVC tells if vc names a response channel on the paired downstream
// port.
func (p *UpstreamPort) ValidVC(vc int) bool {
	return p.pair != nil && vc >= 0 && vc < len(p.pair.down.vcs)
}

// SendResp hands a response back to the paired downstream port. The failure
// rules are the same as for DownstreamPort.SendReq.
func (p *UpstreamPort) SendResp(pkt *packet.Packet) bool {
	if p.pair == nil || pkt == nil {
		return false
	}

	return p.pair.sendResp(pkt)
}

package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/mem/memory"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
)

type requester struct {
	name      string
	pool      *packet.Pool
	queue     *timing.EventQueue
	arrivals  []timing.VTimeInCycle
	latencies []uint64
	data      [][]byte
}

func (r *requester) Name() string { return r.name }

func (r *requester) HandleDownstreamResponse(
	pkt *packet.Packet, _ int, _ string,
) bool {
	r.arrivals = append(r.arrivals, r.queue.CurrentCycle())
	r.latencies = append(r.latencies, pkt.End2EndCycles())
	r.data = append(r.data, append([]byte(nil), pkt.Payload().Bytes()...))
	r.pool.Release(pkt)

	return true
}

type downstream struct {
	received []*packet.Packet
}

func (d *downstream) Name() string { return "Sink" }

func (d *downstream) HandleUpstreamRequest(
	pkt *packet.Packet, _ int, _ string,
) bool {
	d.received = append(d.received, pkt)
	return true
}

var _ = Describe("Cache", func() {
	var (
		queue *timing.EventQueue
		pool  *packet.Pool
		gen   *requester
		down  *port.DownstreamPort
		cache *Comp
		mems  []*memory.Comp
	)

	attachMemory := func(name string) {
		m := memory.MakeBuilder().
			WithEventScheduler(queue).
			WithPool(pool).
			WithNewStorage(1 << 20).
			Build(name)
		d := cache.PortManager().AddDownstreamPort([]int{4}, nil)
		d.SetDelay(10)
		port.NewPortPair(d, m.PortManager().AddUpstreamPort([]int{4}, nil))
		mems = append(mems, m)
	}

	BeforeEach(func() {
		queue = timing.NewEventQueue()
		pool = packet.NewPool(0)
		gen = &requester{name: "Gen", pool: pool, queue: queue}
		mems = nil

		cache = MakeBuilder().
			WithEventScheduler(queue).
			WithPool(pool).
			WithBufferSize(2).
			Build("Cache")

		down = port.NewPortManager(gen, queue, pool).
			AddDownstreamPort([]int{4}, nil)
		down.SetDelay(5)
		port.NewPortPair(down,
			cache.PortManager().AddUpstreamPort([]int{4}, nil))
	})

	newReq := func(cmd packet.Cmd, addr uint64, seq uint64) *packet.Packet {
		pkt := pool.Acquire()
		pkt.Type = packet.Request
		pkt.Cmd = cmd
		pkt.Addr = addr
		pkt.Size = 4
		pkt.SeqNum = seq
		pkt.SrcCycle = queue.CurrentCycle()

		return pkt
	}

	It("should answer hits locally", func() {
		Expect(down.SendReq(newReq(packet.CmdRead, 0x40, 1))).To(BeTrue())
		Expect(queue.Run(100)).To(Succeed())

		Expect(gen.arrivals).To(Equal([]timing.VTimeInCycle{6}))
		Expect(gen.latencies).To(Equal([]uint64{6}))
		Expect(cache.Stats().Hits).To(Equal(uint64(1)))
		Expect(cache.Stats().Misses).To(BeZero())
		Expect(pool.CurrentUsage()).To(BeZero())
	})

	It("should forward misses and relay the response", func() {
		attachMemory("Mem")

		Expect(down.SendReq(newReq(packet.CmdRead, 0x41, 1))).To(BeTrue())
		Expect(queue.Run(1000)).To(Succeed())

		Expect(gen.arrivals).To(Equal([]timing.VTimeInCycle{117}))
		Expect(gen.latencies).To(Equal([]uint64{117}))
		Expect(cache.Stats().Misses).To(Equal(uint64(1)))
		Expect(cache.Stats().Relayed).To(Equal(uint64(1)))
		Expect(cache.Inflight()).To(BeZero())
		Expect(mems[0].Served()).To(Equal(uint64(1)))
		Expect(pool.CurrentUsage()).To(BeZero())
	})

	It("should forward misses under its own node id", func() {
		cache.SetNodeID(7)

		sink := &downstream{}
		d := cache.PortManager().AddDownstreamPort([]int{4}, nil)
		port.NewPortPair(d,
			port.NewPortManager(sink, queue, pool).
				AddUpstreamPort([]int{4}, nil))

		req := newReq(packet.CmdRead, 0x41, 1)
		req.SrcID = 3
		req.DstID = 9
		Expect(down.SendReq(req)).To(BeTrue())
		Expect(queue.Run(100)).To(Succeed())

		Expect(sink.received).To(HaveLen(1))
		Expect(sink.received[0].SrcID).To(Equal(7))
		Expect(sink.received[0].DstID).To(Equal(9))
		Expect(sink.received[0].SeqNum).To(Equal(uint64(1)))
	})

	It("should carry write data through to memory", func() {
		attachMemory("Mem")

		w := newReq(packet.CmdWrite, 0x41, 1)
		Expect(w.Payload().SetData([]byte{1, 2, 3, 4})).To(Succeed())
		Expect(down.SendReq(w)).To(BeTrue())
		Expect(queue.Run(500)).To(Succeed())

		Expect(down.SendReq(newReq(packet.CmdRead, 0x41, 2))).To(BeTrue())
		Expect(queue.Run(1000)).To(Succeed())

		Expect(gen.data).To(HaveLen(2))
		Expect(gen.data[1]).To(Equal([]byte{1, 2, 3, 4}))
		Expect(pool.CurrentUsage()).To(BeZero())
	})

	It("should spread misses over downstream ports", func() {
		attachMemory("Mem0")
		attachMemory("Mem1")

		Expect(down.SendReq(newReq(packet.CmdRead, 0x001, 1))).To(BeTrue())
		Expect(down.SendReq(newReq(packet.CmdRead, 0x101, 2))).To(BeTrue())
		Expect(queue.Run(1000)).To(Succeed())

		Expect(mems[0].Served()).To(Equal(uint64(1)))
		Expect(mems[1].Served()).To(Equal(uint64(1)))
		Expect(gen.arrivals).To(HaveLen(2))
		Expect(pool.CurrentUsage()).To(BeZero())
	})

	It("should reject misses once the buffer is full", func() {
		third := newReq(packet.CmdRead, 0x43, 3)

		Expect(cache.HandleUpstreamRequest(
			newReq(packet.CmdRead, 0x41, 1), 0, "Gen.Down[0]")).To(BeTrue())
		Expect(cache.HandleUpstreamRequest(
			newReq(packet.CmdRead, 0x42, 2), 0, "Gen.Down[0]")).To(BeTrue())
		Expect(cache.HandleUpstreamRequest(third, 0, "Gen.Down[0]")).
			To(BeFalse())

		Expect(cache.Buffered()).To(Equal(2))
		Expect(cache.Stats().Rejected).To(Equal(uint64(1)))
		pool.Release(third)
	})

	It("should drop misses when there is nowhere to forward", func() {
		Expect(down.SendReq(newReq(packet.CmdRead, 0x41, 1))).To(BeTrue())
		Expect(queue.Run(100)).To(Succeed())

		Expect(gen.arrivals).To(BeEmpty())
		Expect(cache.Stats().Dropped).To(Equal(uint64(1)))
		Expect(cache.Buffered()).To(BeZero())
		Expect(pool.CurrentUsage()).To(BeZero())
	})

	It("should refuse responses it did not ask for", func() {
		rsp := pool.Acquire()
		rsp.Type = packet.Response

		Expect(cache.HandleDownstreamResponse(rsp, 0, "Mem.Up[0]")).
			To(BeFalse())
		pool.Release(rsp)
	})
})

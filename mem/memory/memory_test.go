package memory

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
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
	statuses  []packet.Status
}

func (r *requester) Name() string { return r.name }

func (r *requester) HandleDownstreamResponse(
	pkt *packet.Packet, _ int, _ string,
) bool {
	r.arrivals = append(r.arrivals, r.queue.CurrentCycle())
	r.latencies = append(r.latencies, pkt.End2EndCycles())
	r.data = append(r.data, append([]byte(nil), pkt.Payload().Bytes()...))
	r.statuses = append(r.statuses, pkt.Payload().Status)
	r.pool.Release(pkt)

	return true
}

var _ = Describe("Memory", func() {
	var (
		queue  *timing.EventQueue
		pool   *packet.Pool
		gen    *requester
		down   *port.DownstreamPort
		memory *Comp
	)

	BeforeEach(func() {
		queue = timing.NewEventQueue()
		pool = packet.NewPool(0)
		gen = &requester{name: "Gen", pool: pool, queue: queue}

		memory = MakeBuilder().
			WithEventScheduler(queue).
			WithPool(pool).
			WithNewStorage(1 << 20).
			Build("Mem")

		down = port.NewPortManager(gen, queue, pool).
			AddDownstreamPort([]int{4}, nil)
		down.SetDelay(5)
		up := memory.PortManager().AddUpstreamPort([]int{4}, nil)
		port.NewPortPair(down, up)
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

	It("should answer after link delay plus service latency", func() {
		Expect(queue.Run(100)).To(Succeed())
		Expect(down.SendReq(newReq(packet.CmdRead, 0x40, 1))).To(BeTrue())

		Expect(queue.Run(1000)).To(Succeed())

		Expect(gen.arrivals).To(Equal([]timing.VTimeInCycle{205}))
		Expect(gen.latencies).To(Equal([]uint64{105}))
		Expect(down.Stats().RespCount).To(Equal(uint64(1)))
		Expect(down.Stats().TotalDelay).To(Equal(uint64(105)))
		Expect(memory.Served()).To(Equal(uint64(1)))
		Expect(pool.CurrentUsage()).To(Equal(uint64(0)))
	})

	It("should read back written data", func() {
		w := newReq(packet.CmdWrite, 0x80, 1)
		Expect(w.Payload().SetData([]byte{9, 8, 7, 6})).To(Succeed())
		Expect(down.SendReq(w)).To(BeTrue())
		Expect(queue.Run(10)).To(Succeed())

		Expect(down.SendReq(newReq(packet.CmdRead, 0x80, 2))).To(BeTrue())
		Expect(queue.Run(1000)).To(Succeed())

		Expect(gen.data).To(HaveLen(2))
		Expect(gen.data[1]).To(Equal([]byte{9, 8, 7, 6}))
		Expect(pool.CurrentUsage()).To(Equal(uint64(0)))
	})

	It("should flag accesses beyond capacity", func() {
		Expect(down.SendReq(newReq(packet.CmdRead, 1<<21, 1))).To(BeTrue())
		Expect(queue.Run(1000)).To(Succeed())

		Expect(gen.statuses).To(Equal([]packet.Status{packet.StatusError}))
	})

	It("should reject packets that are not requests", func() {
		pkt := pool.Acquire()
		pkt.Type = packet.StreamData

		Expect(memory.HandleUpstreamRequest(pkt, 0, "Gen.Down[0]")).To(BeFalse())
	})

	It("should answer concurrent requests", func() {
		for i := uint64(0); i < 4; i++ {
			Expect(down.SendReq(newReq(packet.CmdRead, i*64, i))).To(BeTrue())
		}

		Expect(queue.Run(1000)).To(Succeed())

		Expect(gen.arrivals).To(HaveLen(4))
		Expect(memory.Served()).To(Equal(uint64(4)))
		Expect(pool.CurrentUsage()).To(Equal(uint64(0)))
	})
})

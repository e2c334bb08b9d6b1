package trafficgen

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/mem/memory"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
)

// sink accepts requests and never answers them.
type sink struct {
	pool     *packet.Pool
	queue    *timing.EventQueue
	arrivals []timing.VTimeInCycle
	addrs    []uint64
	vcs      []int
	cmds     []packet.Cmd
}

func (s *sink) Name() string { return "Sink" }

func (s *sink) HandleUpstreamRequest(
	pkt *packet.Packet, _ int, _ string,
) bool {
	s.arrivals = append(s.arrivals, s.queue.CurrentCycle())
	s.addrs = append(s.addrs, pkt.Addr)
	s.vcs = append(s.vcs, pkt.VCID)
	s.cmds = append(s.cmds, pkt.Cmd)
	s.pool.Release(pkt)

	return true
}

var _ = Describe("Traffic Generator", func() {
	var (
		queue *timing.EventQueue
		pool  *packet.Pool
	)

	BeforeEach(func() {
		queue = timing.NewEventQueue()
		pool = packet.NewPool(0)
	})

	connect := func(gen *Comp, target port.Owner, caps []int) {
		down := gen.PortManager().AddDownstreamPort([]int{4}, nil)
		down.SetDelay(5)
		up := port.NewPortManager(target, queue, pool).
			AddUpstreamPort(caps, nil)
		port.NewPortPair(down, up)
	}

	Context("against a memory", func() {
		var (
			gen *Comp
			mem *memory.Comp
		)

		BeforeEach(func() {
			mem = memory.MakeBuilder().
				WithEventScheduler(queue).
				WithPool(pool).
				WithNewStorage(1 << 20).
				Build("Mem")
		})

		wire := func(b Builder) {
			gen = b.WithEventScheduler(queue).
				WithPool(pool).
				WithAddressRange(0, 1<<16).
				Build("Gen")

			down := gen.PortManager().AddDownstreamPort([]int{4}, nil)
			down.SetDelay(5)
			port.NewPortPair(down,
				mem.PortManager().AddUpstreamPort([]int{4}, nil))
		}

		It("should measure end-to-end latency", func() {
			wire(MakeBuilder().WithNumRequests(4).WithInterval(10))

			gen.Start()
			Expect(queue.Drain()).To(Succeed())

			s := gen.Summary()
			Expect(gen.Done()).To(BeTrue())
			Expect(s.Sent).To(Equal(uint64(4)))
			Expect(s.Received).To(Equal(uint64(4)))
			Expect(s.Mean).To(Equal(105.0))
			Expect(s.StdDev).To(Equal(0.0))
			Expect(s.P50).To(Equal(105.0))
			Expect(s.P99).To(Equal(105.0))
			Expect(gen.Latencies()).To(HaveLen(4))
			Expect(pool.CurrentUsage()).To(BeZero())
		})

		It("should limit outstanding requests", func() {
			wire(MakeBuilder().WithNumRequests(3).WithMaxOutstanding(1))

			gen.Start()
			Expect(queue.Drain()).To(Succeed())

			Expect(gen.Summary().Received).To(Equal(uint64(3)))
			Expect(queue.CurrentCycle()).
				To(BeNumerically(">=", timing.VTimeInCycle(317)))
			Expect(pool.CurrentUsage()).To(BeZero())
		})

		It("should wait for the start cycle", func() {
			wire(MakeBuilder().WithNumRequests(1).WithStartCycle(50))

			gen.Start()
			Expect(queue.Run(154)).To(Succeed())
			Expect(gen.Summary().Received).To(BeZero())

			Expect(queue.Run(155)).To(Succeed())
			Expect(gen.Summary().Received).To(Equal(uint64(1)))
		})
	})

	It("should draw aligned addresses inside the range", func() {
		target := &sink{pool: pool, queue: queue}
		gen := MakeBuilder().
			WithEventScheduler(queue).
			WithPool(pool).
			WithNumRequests(20).
			WithAddressRange(0x1000, 0x1400).
			WithAlignment(64).
			WithReadRatio(0).
			Build("Gen")
		connect(gen, target, []int{4, 4})

		gen.Start()
		Expect(queue.Drain()).To(Succeed())

		Expect(target.addrs).To(HaveLen(20))
		for i, addr := range target.addrs {
			Expect(addr).To(BeNumerically(">=", uint64(0x1000)))
			Expect(addr).To(BeNumerically("<", uint64(0x1400)))
			Expect(addr % 64).To(BeZero())
			Expect(target.vcs[i]).To(Equal(i % 2))
			Expect(target.cmds[i]).To(Equal(packet.CmdWrite))
		}
	})

	It("should retry requests that meet backpressure", func() {
		target := &sink{pool: pool, queue: queue}
		gen := MakeBuilder().
			WithEventScheduler(queue).
			WithPool(pool).
			WithNumRequests(2).
			Build("Gen")
		connect(gen, target, []int{1})

		gen.Start()
		Expect(queue.Drain()).To(Succeed())

		Expect(target.arrivals).To(Equal([]timing.VTimeInCycle{5, 11}))
		Expect(gen.Summary().Sent).To(Equal(uint64(2)))
		Expect(gen.Summary().Retries).To(Equal(uint64(1)))
		Expect(gen.Outstanding()).To(Equal(2))
	})

	It("should count requests it cannot send anywhere", func() {
		gen := MakeBuilder().
			WithEventScheduler(queue).
			WithPool(pool).
			WithNumRequests(3).
			Build("Gen")

		gen.Start()
		Expect(queue.Drain()).To(Succeed())

		Expect(gen.Summary().Failed).To(Equal(uint64(3)))
		Expect(gen.Done()).To(BeTrue())
		Expect(pool.CurrentUsage()).To(BeZero())
	})
})

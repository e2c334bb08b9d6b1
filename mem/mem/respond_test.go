package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
)

type endpoint struct {
	name      string
	responses []*packet.Packet
	accept    bool
}

func (e *endpoint) Name() string { return e.name }

func (e *endpoint) HandleDownstreamResponse(
	pkt *packet.Packet, _ int, _ string,
) bool {
	if !e.accept {
		return false
	}

	e.responses = append(e.responses, pkt)

	return true
}

type retryCounter struct {
	events []RespondEvent
}

func (r *retryCounter) Handle(e any) error {
	r.events = append(r.events, e.(RespondEvent))
	return nil
}

var _ = Describe("SendResponse", func() {
	var (
		queue  *timing.EventQueue
		pool   *packet.Pool
		target *endpoint
		up     *port.UpstreamPort
		pm     *port.PortManager
	)

	BeforeEach(func() {
		queue = timing.NewEventQueue()
		pool = packet.NewPool(0)
		target = &endpoint{name: "Mem", accept: true}
		initiator := &endpoint{name: "Gen", accept: true}

		pm = port.NewPortManager(target, queue, pool)
		up = pm.AddUpstreamPort([]int{1}, nil)
		down := port.NewPortManager(initiator, queue, pool).
			AddDownstreamPort([]int{1}, nil)
		port.NewPortPair(down, up)
	})

	It("should send", func() {
		rsp := pool.Acquire()
		rsp.Type = packet.Response

		out := SendResponse(pm, queue, &retryCounter{}, RespondEvent{Rsp: rsp})

		Expect(out).To(Equal(Sent))
	})

	It("should retry next cycle on backpressure", func() {
		first := pool.Acquire()
		second := pool.Acquire()
		retry := &retryCounter{}

		Expect(SendResponse(pm, queue, retry, RespondEvent{Rsp: first})).
			To(Equal(Sent))
		Expect(SendResponse(pm, queue, retry, RespondEvent{Rsp: second})).
			To(Equal(Retrying))

		Expect(queue.Run(1)).To(Succeed())
		Expect(retry.events).To(HaveLen(1))
		Expect(retry.events[0].Rsp).To(BeIdenticalTo(second))
		Expect(retry.events[0].Attempts).To(Equal(1))
	})

	It("should drop responses on invalid channels", func() {
		rsp := pool.Acquire()
		rsp.VCID = 3

		out := SendResponse(pm, queue, &retryCounter{}, RespondEvent{Rsp: rsp})

		Expect(out).To(Equal(Dropped))
		Expect(rsp.Live()).To(BeFalse())
	})

	It("should drop responses for unknown ports", func() {
		rsp := pool.Acquire()

		out := SendResponse(pm, queue, &retryCounter{},
			RespondEvent{Rsp: rsp, PortID: 4})

		Expect(out).To(Equal(Dropped))
		Expect(pool.CurrentUsage()).To(Equal(uint64(0)))
	})
})

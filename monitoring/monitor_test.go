package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
)

type sampleComponent struct {
	name  string
	ports *port.PortManager
	Count int
}

func (c *sampleComponent) Name() string { return c.name }

func (c *sampleComponent) PortManager() *port.PortManager { return c.ports }

var _ = Describe("Monitor", func() {
	var (
		queue  *timing.EventQueue
		pool   *packet.Pool
		m      *Monitor
		src    *sampleComponent
		dst    *sampleComponent
		router http.Handler
		down   *port.DownstreamPort
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		queue = timing.NewEventQueue()
		pool = packet.NewPool(0)

		src = &sampleComponent{name: "Src"}
		src.ports = port.NewPortManager(src, queue, pool)
		dst = &sampleComponent{name: "Dst", Count: 3}
		dst.ports = port.NewPortManager(dst, queue, pool)

		down = src.ports.AddDownstreamPort([]int{2}, nil)
		down.SetDelay(10)
		port.NewPortPair(down, dst.ports.AddUpstreamPort([]int{4, 2}, nil))

		m = NewMonitor()
		m.RegisterEngine(queue)
		m.RegisterPool(pool)
		m.RegisterComponent(src)
		m.RegisterComponent(dst)
		router = m.Router()
	})

	It("should list components", func() {
		rec := get("/api/list_components")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"Src", "Dst"}))
	})

	It("should report the current cycle", func() {
		Expect(queue.Run(42)).To(Succeed())

		Expect(get("/api/now").Body.String()).To(Equal(`{"now":42}`))
	})

	It("should return 404 for unknown components", func() {
		Expect(get("/api/component/Nope").Code).
			To(Equal(http.StatusNotFound))
		Expect(get("/api/ports/Nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a component", func() {
		rec := get("/api/component/Dst")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Count"))
	})

	It("should report port occupancy", func() {
		pkt := pool.Acquire()
		pkt.Type = packet.Request
		pkt.VCID = 1
		Expect(down.SendReq(pkt)).To(BeTrue())

		rec := get("/api/ports/Dst")

		var ports []portRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &ports)).To(Succeed())
		Expect(ports).To(HaveLen(1))
		Expect(ports[0].Label).To(Equal("Dst.Up[0]"))
		Expect(ports[0].Paired).To(BeTrue())
		Expect(ports[0].VCs).To(Equal([]vcRsp{
			{Level: 0, Cap: 4},
			{Level: 1, Cap: 2},
		}))
	})

	It("should sort channels by fill percentage", func() {
		pkt := pool.Acquire()
		pkt.Type = packet.Request
		pkt.VCID = 1
		Expect(down.SendReq(pkt)).To(BeTrue())

		rec := get("/api/hangdetector/buffers?limit=1")

		var buffers []bufferRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &buffers)).To(Succeed())
		Expect(buffers).To(Equal([]bufferRsp{
			{Buffer: "Dst.Up[0].VC[1]", Level: 1, Cap: 2},
		}))
	})

	It("should reject unknown sort methods", func() {
		Expect(get("/api/hangdetector/buffers?sort=size").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get("/api/hangdetector/buffers?limit=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should report pool usage", func() {
		pool.Acquire()

		rec := get("/api/pool")

		var stats packet.PoolStats
		Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats).To(Equal(pool.Stats()))
	})

	It("should pause and continue the engine", func() {
		pkt := pool.Acquire()
		pkt.Type = packet.Request
		Expect(down.SendReq(pkt)).To(BeTrue())

		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(queue.Run(10)).To(Succeed())
		}()

		Consistently(done, "50ms").ShouldNot(BeClosed())

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Eventually(done).Should(BeClosed())
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("Gen", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		rec := get("/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring(`"finished":2`))
		Expect(rec.Body.String()).To(ContainSubstring(`"in_progress":1`))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})
})

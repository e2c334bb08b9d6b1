package simulation

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/sim/packet"
	"go.uber.org/mock/gomock"
)

type numberedComponent struct {
	*MockComponent
	nodeID int
}

func (c *numberedComponent) SetNodeID(id int) {
	c.nodeID = id
}

var _ = Describe("Simulation", func() {
	var (
		mockCtrl   *gomock.Controller
		simulation *Simulation
		comp       *MockComponent
		dir        string
	)

	BeforeEach(func() {
		var err error

		mockCtrl = gomock.NewController(GinkgoT())
		dir = GinkgoT().TempDir()

		simulation, err = MakeBuilder().
			WithoutMonitoring().
			WithPool(packet.NewPool(0)).
			WithOutputFileName(filepath.Join(dir, "out")).
			Build()
		Expect(err).NotTo(HaveOccurred())

		comp = NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("comp").AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
		simulation.Terminate()
	})

	It("should register a component", func() {
		simulation.RegisterComponent(comp)

		Expect(simulation.GetComponentByName("comp")).To(Equal(comp))
		Expect(simulation.GetComponentByName("other")).To(BeNil())
		Expect(simulation.Components()).To(HaveLen(1))
	})

	It("should number components in registration order", func() {
		other := NewMockComponent(mockCtrl)
		other.EXPECT().Name().Return("other").AnyTimes()
		numbered := &numberedComponent{MockComponent: other}

		simulation.RegisterComponent(comp)
		simulation.RegisterComponent(numbered)

		Expect(numbered.nodeID).To(Equal(2))
		Expect(simulation.NodeID("comp")).To(Equal(1))
		Expect(simulation.NodeID("other")).To(Equal(2))
		Expect(simulation.NodeID("none")).To(BeZero())
	})

	It("should panic on duplicate names", func() {
		simulation.RegisterComponent(comp)

		Expect(func() { simulation.RegisterComponent(comp) }).To(Panic())
	})

	It("should write the output file", func() {
		_, err := os.Stat(filepath.Join(dir, "out.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should refuse to overwrite an output file", func() {
		_, err := MakeBuilder().
			WithoutMonitoring().
			WithOutputFileName(filepath.Join(dir, "out")).
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should panic if a monitor port is set without monitoring", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})
})

var _ = Describe("Registry", func() {
	ctor := func(*Simulation, string, Params) (Component, error) {
		return nil, nil
	}

	It("should register each type once", func() {
		r := NewRegistry()

		Expect(r.Register("memory", ctor)).To(BeTrue())
		Expect(r.Register("memory", ctor)).To(BeFalse())
		Expect(r.Register("cache", ctor)).To(BeTrue())
		Expect(r.Types()).To(Equal([]string{"cache", "memory"}))
	})

	It("should report unregistering unknown types", func() {
		r := NewRegistry()
		r.Register("memory", ctor)

		Expect(r.Unregister("router")).To(BeFalse())
		Expect(r.Unregister("memory")).To(BeTrue())

		_, ok := r.Lookup("memory")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Params", func() {
	p := Params{
		"latency": 100,
		"ratio":   0.5,
		"big":     uint64(1) << 40,
		"whole":   3.0,
		"name":    "x",
		"bad":     "y",
	}

	It("should read integers", func() {
		Expect(p.Int("latency", 1)).To(Equal(100))
		Expect(p.Int("missing", 7)).To(Equal(7))
		Expect(p.Int("whole", 0)).To(Equal(3))

		_, err := p.Int("ratio", 0)
		Expect(err).To(HaveOccurred())

		_, err = p.Int("bad", 0)
		Expect(err).To(HaveOccurred())
	})

	It("should read unsigned integers", func() {
		Expect(p.Uint64("big", 0)).To(Equal(uint64(1) << 40))
		Expect(p.Uint64("latency", 0)).To(Equal(uint64(100)))
	})

	It("should read floats and strings", func() {
		Expect(p.Float("ratio", 1)).To(Equal(0.5))
		Expect(p.Float("latency", 1)).To(Equal(100.0))
		Expect(p.String("name", "")).To(Equal("x"))

		_, err := p.String("latency", "")
		Expect(err).To(HaveOccurred())
	})
})

package routing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/sim/packet"
)

var _ = Describe("WindowTable", func() {
	var table *WindowTable

	BeforeEach(func() {
		table = NewWindowTable()
		Expect(table.AddWindow(0x8000_0000, 0x1_0000_0000, 1)).To(Succeed())
		Expect(table.AddWindow(0, 0x4000_0000, 0)).To(Succeed())
	})

	It("should route by window", func() {
		Expect(table.Find(0)).To(Equal(0))
		Expect(table.Find(0x3fff_ffff)).To(Equal(0))
		Expect(table.Find(0x8000_0000)).To(Equal(1))
		Expect(table.Find(0xffff_ffff)).To(Equal(1))
	})

	It("should fall back to the default port", func() {
		Expect(table.Find(0x4000_0000)).To(Equal(NoPort))

		table.SetDefault(2)
		Expect(table.Find(0x4000_0000)).To(Equal(2))
		Expect(table.Find(0x1_0000_0000)).To(Equal(2))
	})

	It("should reject bad windows", func() {
		Expect(table.AddWindow(0x10, 0x10, 0)).NotTo(Succeed())
		Expect(table.AddWindow(0x3000_0000, 0x5000_0000, 2)).NotTo(Succeed())
		Expect(table.AddWindow(0x4000_0000, 0x5000_0000, -1)).NotTo(Succeed())
		Expect(table.Windows()).To(HaveLen(2))
	})
})

var _ = Describe("InterleavedMapper", func() {
	It("should interleave", func() {
		m := NewInterleavedMapper(256, 4)

		Expect(m.Find(0)).To(Equal(0))
		Expect(m.Find(255)).To(Equal(0))
		Expect(m.Find(256)).To(Equal(1))
		Expect(m.Find(1024)).To(Equal(0))
	})

	It("should not route without ports", func() {
		m := NewInterleavedMapper(1, 0)

		Expect(m.Find(5)).To(Equal(NoPort))
	})
})

var _ = Describe("ReturnPath", func() {
	It("should route responses back to the recorded port", func() {
		pool := packet.NewPool(0)
		path := NewReturnPath()

		req := pool.Acquire()
		path.Record(req, 3)
		Expect(path.Len()).To(Equal(1))

		rsp := pool.NewResponse(req)
		port, ok := path.Lookup(rsp)

		Expect(ok).To(BeTrue())
		Expect(port).To(Equal(3))
		Expect(path.Len()).To(Equal(0))

		_, ok = path.Lookup(rsp)
		Expect(ok).To(BeFalse())
	})

	It("should not match a response without a request", func() {
		pool := packet.NewPool(0)
		path := NewReturnPath()

		_, ok := path.Lookup(pool.Acquire())
		Expect(ok).To(BeFalse())
	})

	It("should prune requests released without an answer", func() {
		pool := packet.NewPool(0)
		path := NewReturnPath()

		dropped := pool.Acquire()
		kept := pool.Acquire()
		path.Record(dropped, 0)
		path.Record(kept, 1)

		pool.Release(dropped)
		Expect(path.Len()).To(Equal(1))

		port, ok := path.Lookup(pool.NewResponse(kept))
		Expect(ok).To(BeTrue())
		Expect(port).To(Equal(1))
	})

	It("should prune while recording many requests", func() {
		pool := packet.NewPool(0)
		path := NewReturnPath()

		for i := 0; i < 1000; i++ {
			req := pool.Acquire()
			path.Record(req, 0)
			pool.Release(req)
		}

		Expect(len(path.entries)).To(BeNumerically("<", minPruneSize))
	})

	It("should forget requests", func() {
		pool := packet.NewPool(0)
		path := NewReturnPath()
		req := pool.Acquire()

		path.Record(req, 0)
		path.Forget(req)

		Expect(path.Len()).To(Equal(0))
	})
})

package port

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/fabricsim/sim/packet"
)

var _ = Describe("VirtualChannel", func() {
	It("should be a bounded FIFO", func() {
		pool := packet.NewPool(0)
		vc := NewVirtualChannel(2, 3)
		a, b := pool.Acquire(), pool.Acquire()

		vc.Push(a)
		vc.Push(b)

		Expect(vc.CanPush()).To(BeFalse())
		Expect(func() { vc.Push(pool.Acquire()) }).To(Panic())
		Expect(vc.Priority()).To(Equal(3))
		Expect(vc.Peek()).To(BeIdenticalTo(a))
		Expect(vc.Pop()).To(BeIdenticalTo(a))
		Expect(vc.Pop()).To(BeIdenticalTo(b))
		Expect(vc.Pop()).To(BeNil())
	})

	It("should reject non-positive capacity", func() {
		Expect(func() { NewVirtualChannel(0, 0) }).To(Panic())
	})
})

var _ = Describe("CreditCounter", func() {
	It("should clamp returned credits at the ceiling", func() {
		c := NewCreditCounter(4)

		Expect(c.TryConsume()).To(BeTrue())
		c.Return(10)

		Expect(c.Credits()).To(Equal(4))
		Expect(c.Initial()).To(Equal(4))
	})

	It("should refuse to go below zero", func() {
		c := NewCreditCounter(1)

		Expect(c.TryConsume()).To(BeTrue())
		Expect(c.TryConsume()).To(BeFalse())
		Expect(c.Credits()).To(Equal(0))
	})
})

var _ = Describe("Stats", func() {
	It("should track min, max and total", func() {
		var s Stats
		s.RecordResponse(7)
		s.RecordResponse(3)
		s.RecordResponse(11)

		Expect(s.RespCount).To(Equal(uint64(3)))
		Expect(s.MinDelay).To(Equal(uint64(3)))
		Expect(s.MaxDelay).To(Equal(uint64(11)))
		Expect(s.TotalDelay).To(Equal(uint64(21)))
		Expect(s.AvgDelay()).To(BeNumerically("==", 7))
	})

	It("should merge", func() {
		var a, b, empty Stats
		a.RecordResponse(5)
		b.RecordResponse(2)
		b.Dropped = 1

		a.Merge(b)
		a.Merge(empty)

		Expect(a.RespCount).To(Equal(uint64(2)))
		Expect(a.MinDelay).To(Equal(uint64(2)))
		Expect(a.MaxDelay).To(Equal(uint64(5)))
		Expect(a.Dropped).To(Equal(uint64(1)))
	})
})

package packet

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Packet", func() {
	var pool *Pool

	BeforeEach(func() {
		pool = NewPool(0)
	})

	It("should compute hop delay", func() {
		pkt := pool.Acquire()
		Expect(pkt.DelayCycles()).To(Equal(uint64(0)))

		pkt.SrcCycle = 100
		pkt.DstCycle = 105
		Expect(pkt.DelayCycles()).To(Equal(uint64(5)))

		pkt.DstCycle = 90
		Expect(pkt.DelayCycles()).To(Equal(uint64(0)))
	})

	It("should compute end-to-end delay from the original request", func() {
		req := pool.Acquire()
		req.SrcCycle = 100

		rsp := pool.NewResponse(req)
		rsp.SrcCycle = 150
		rsp.DstCycle = 205

		Expect(rsp.DelayCycles()).To(Equal(uint64(55)))
		Expect(rsp.End2EndCycles()).To(Equal(uint64(105)))
	})

	It("should fall back to hop delay without an original request", func() {
		pkt := pool.Acquire()
		pkt.SrcCycle = 3
		pkt.DstCycle = 10

		Expect(pkt.End2EndCycles()).To(Equal(uint64(7)))

		pool.SetOriginalReq(pkt, pkt)
		Expect(pkt.End2EndCycles()).To(Equal(uint64(7)))
		Expect(pkt.RefCount()).To(Equal(0))
	})

	It("should report zero when the response predates the request", func() {
		req := pool.Acquire()
		req.SrcCycle = 50

		rsp := pool.NewResponse(req)
		rsp.DstCycle = 20

		Expect(rsp.End2EndCycles()).To(Equal(uint64(0)))
	})

	It("should reject oversized payloads", func() {
		pkt := pool.Acquire()

		err := pkt.Payload().SetData(make([]byte, PayloadCapacity+1))
		Expect(err).To(HaveOccurred())

		err = pkt.Payload().SetData([]byte{1, 2, 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(pkt.Payload().Bytes()).To(Equal([]byte{1, 2, 3}))
	})

	It("should record the route", func() {
		pkt := pool.Acquire()
		pkt.AddHop("A.Down[0]")
		pkt.AddHop("B.Down[1]")

		Expect(pkt.HopCount).To(Equal(2))
		Expect(pkt.RoutePath).To(Equal([]string{"A.Down[0]", "B.Down[1]"}))
	})

	It("should expose the transaction key", func() {
		pkt := pool.Acquire()
		pkt.StreamID = 4
		pkt.SeqNum = 9

		Expect(pkt.Key()).To(Equal(Key{StreamID: 4, SeqNum: 9}))
	})

	It("should name types and commands", func() {
		Expect(Request.String()).To(Equal("Request"))
		Expect(CreditReturn.String()).To(Equal("CreditReturn"))
		Expect(CmdWrite.String()).To(Equal("Write"))
		Expect(Type(9).String()).To(Equal("Type(9)"))
	})
})

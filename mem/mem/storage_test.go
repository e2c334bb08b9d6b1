package mem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	It("should read zeros from untouched units", func() {
		s := NewStorage(1 * MB)

		data, err := s.Read(0x100, 4)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should write and read across unit boundaries", func() {
		s := NewStorage(1 * MB)
		payload := []byte{1, 2, 3, 4, 5, 6}

		Expect(s.Write(4*KB-3, payload)).To(Succeed())

		data, err := s.Read(4*KB-3, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(payload))
	})

	It("should refuse addresses beyond capacity", func() {
		s := NewStorage(4 * KB)

		_, err := s.Read(4*KB, 1)
		Expect(err).To(HaveOccurred())
		Expect(s.Write(4*KB-1, []byte{1, 2})).NotTo(Succeed())
	})
})

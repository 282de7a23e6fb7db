package rowstore_test

import (
	"bytes"

	"github.com/bsm/tabdump/rowstore"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reader", func() {
	var subject *rowstore.Reader

	BeforeEach(func() {
		var err error
		subject, err = seedReader(100, &rowstore.WriterOptions{
			BlockSize:       1024,
			RestartInterval: 4,
			Compression:     rowstore.NoCompression,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should init", func() {
		Expect(subject.Len()).To(Equal(100))
		Expect(subject.NumBlocks()).To(BeNumerically(">", 4))
		Expect(subject.Schema()).To(Equal(testSchema))
	})

	It("should reject foreign data", func() {
		_, err := rowstore.NewReader(bytes.NewReader([]byte("short")), 5)
		Expect(err).To(HaveOccurred())

		junk := bytes.Repeat([]byte{0x01}, 64)
		_, err = rowstore.NewReader(bytes.NewReader(junk), int64(len(junk)))
		Expect(err).To(HaveOccurred())
	})

	It("should get typed rows", func() {
		for key := int64(-200); key < 200; key += 4 {
			Expect(subject.Get(key)).To(Equal(testRow(key)), "for %d", key)
		}

		_, err := subject.Get(-199)
		Expect(err).To(MatchError(rowstore.ErrNotFound))
		_, err = subject.Get(195)
		Expect(err).To(MatchError(rowstore.ErrNotFound))
		_, err = subject.Get(200)
		Expect(err).To(MatchError(rowstore.ErrNotFound))
		_, err = subject.Get(-1000)
		Expect(err).To(MatchError(rowstore.ErrNotFound))
	})

	It("should get raw rows", func() {
		raw, err := subject.GetRaw(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"Name":"row-0000"`))
	})

	Describe("Iterator", func() {
		It("should iterate from beginning", func() {
			iter, err := subject.Seek(-1000)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(int64(-200)))
			Expect(iter.Row()).To(Equal(testRow(-200)))

			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(int64(-196)))

			n := 2
			for iter.Next() {
				n++
			}
			Expect(n).To(Equal(100))
			Expect(iter.Key()).To(Equal(int64(196)))
			Expect(iter.Err()).NotTo(HaveOccurred())
		})

		It("should iterate from middle", func() {
			iter, err := subject.Seek(-1)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(int64(0)))
			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(int64(4)))
		})

		It("should iterate from last entry", func() {
			iter, err := subject.Seek(196)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeTrue())
			Expect(iter.Key()).To(Equal(int64(196)))
			Expect(iter.Next()).To(BeFalse())
			Expect(iter.Err()).NotTo(HaveOccurred())
		})

		It("should not iterate when past the end", func() {
			iter, err := subject.Seek(1000)
			Expect(err).NotTo(HaveOccurred())
			defer iter.Release()

			Expect(iter.Next()).To(BeFalse())
			Expect(iter.Err()).NotTo(HaveOccurred())
		})
	})
})

package rowstore_test

import (
	"bytes"

	"github.com/bsm/tabdump"
	"github.com/bsm/tabdump/rowstore"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	var buf *bytes.Buffer
	var subject *rowstore.Writer

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		subject = rowstore.NewWriter(buf, testSchema, nil)
	})

	AfterEach(func() {
		_ = subject.Close()
	})

	It("should write empty", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(buf.String()).To(HaveSuffix("tdrows\x01\x9e"))

		r, err := rowstore.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Len()).To(Equal(0))
		Expect(r.NumBlocks()).To(Equal(0))
		Expect(r.Schema()).To(Equal(testSchema))
	})

	It("should prevent out-of-order appends", func() {
		Expect(subject.Append(20, testRow(20))).To(Succeed())
		Expect(subject.Append(19, testRow(19))).To(MatchError(`rowstore: attempted an out-of-order append, 19 must be > 20`))
		Expect(subject.Append(22, testRow(22))).To(Succeed())
		Expect(subject.Append(-5, testRow(-5))).To(MatchError(`rowstore: attempted an out-of-order append, -5 must be > 22`))
		Expect(subject.Append(22, testRow(22))).To(MatchError(`rowstore: attempted an out-of-order append, 22 must be > 22`))
		Expect(subject.Append(23, testRow(23))).To(Succeed())
	})

	It("should reject appends after close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Append(1, testRow(1))).To(HaveOccurred())
		Expect(subject.Close()).To(HaveOccurred())
	})

	It("should write tables in key order", func() {
		tbl := &tabdump.Table{Rows: map[int64]tabdump.Row{
			9: testRow(9), -3: testRow(-3), 4: testRow(4),
		}}
		Expect(subject.WriteTable(tbl)).To(Succeed())
		Expect(subject.Close()).To(Succeed())

		r, err := rowstore.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Len()).To(Equal(3))

		iter, err := r.Seek(-100)
		Expect(err).NotTo(HaveOccurred())
		defer iter.Release()

		var keys []int64
		for iter.Next() {
			keys = append(keys, iter.Key())
		}
		Expect(iter.Err()).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]int64{-3, 4, 9}))
	})

	It("should compress blocks", func() {
		sizes := make(map[rowstore.Compression]int)
		for _, c := range []rowstore.Compression{rowstore.NoCompression, rowstore.SnappyCompression, rowstore.ZstdCompression} {
			out := new(bytes.Buffer)
			w := rowstore.NewWriter(out, testSchema, &rowstore.WriterOptions{Compression: c})
			for key := int64(0); key < 2000; key++ {
				Expect(w.Append(key, testRow(key))).To(Succeed())
			}
			Expect(w.Close()).To(Succeed())
			sizes[c] = out.Len()

			r, err := rowstore.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Get(1234)).To(Equal(testRow(1234)))
		}
		Expect(sizes[rowstore.SnappyCompression]).To(BeNumerically("<", sizes[rowstore.NoCompression]))
		Expect(sizes[rowstore.ZstdCompression]).To(BeNumerically("<", sizes[rowstore.NoCompression]))
	})
})

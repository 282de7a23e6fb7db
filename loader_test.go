package tabdump_test

import (
	"bytes"

	"github.com/bsm/tabdump"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var _ = Describe("Loader", func() {
	var subject *tabdump.Loader
	var hook *test.Hook

	twoFields := tabdump.Schema{
		{Name: "f1", Type: tabdump.FieldInt32},
		{Name: "f2", Type: tabdump.FieldPooledInt64},
	}

	BeforeEach(func() {
		var logger *logrus.Logger
		logger, hook = test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
		subject = tabdump.NewLoader(&tabdump.LoaderOptions{Logger: logger})
	})

	It("should decode a hand-built table", func() {
		raw := new(rawTable).header(2, 1, 16)
		raw.i64(1001, 1002)
		raw.i32(7, 0)  // row 1001
		raw.i32(-3, 1) // row 1002
		raw.i32(int32(tabdump.PoolInt64), 20, 2).i64(100, 200)

		tbl, err := subject.Load(raw.Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Header.Stride()).To(Equal(8))
		Expect(tbl.Keys).To(Equal([]int64{1001, 1002}))
		Expect(tbl.Rows).To(Equal(map[int64]tabdump.Row{
			1001: {"f1": int32(7), "f2": int64(100)},
			1002: {"f1": int32(-3), "f2": int64(200)},
		}))
		Expect(tbl.Report.Clean()).To(BeTrue())
	})

	It("should reject inconsistent strides before reading keys", func() {
		raw := new(rawTable).header(3, 0, 10)
		_, err := subject.Load(raw.Bytes(), twoFields)
		Expect(err).To(MatchError(tabdump.ErrMalformedHeader))

		raw = new(rawTable).header(-1, 0, 0)
		_, err = subject.Load(raw.Bytes(), twoFields)
		Expect(err).To(MatchError(tabdump.ErrMalformedHeader))
	})

	It("should fail on truncated headers", func() {
		_, err := subject.Load(make([]byte, 12), twoFields)
		Expect(err).To(MatchError(tabdump.ErrOutOfRange))
	})

	It("should load empty tables", func() {
		tbl, err := subject.Load(new(rawTable).header(0, 0, 0).Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Keys).To(BeEmpty())
		Expect(tbl.Len()).To(Equal(0))
	})

	It("should round-trip every field type", func() {
		schema := tabdump.Schema{
			{Name: "Id", Type: tabdump.FieldInt32},
			{Name: "Big", Type: tabdump.FieldInt64},
			{Name: "Rate", Type: tabdump.FieldDouble},
			{Name: "On", Type: tabdump.FieldBool},
			{Name: "Tag", Type: tabdump.FieldString},
			{Name: "Level", Type: tabdump.FieldPooledInt32},
			{Name: "Exp", Type: tabdump.FieldPooledInt64},
			{Name: "Ratio", Type: tabdump.FieldPooledDouble},
			{Name: "Name", Type: tabdump.FieldPooledString},
			{Name: "Pos2", Type: tabdump.FieldVector2},
			{Name: "Pos3", Type: tabdump.FieldVector3},
			{Name: "Attrs", Type: tabdump.FieldIntIntMap},
			{Name: "Scale", Type: tabdump.FieldIntNumberMap},
			{Name: "Points", Type: tabdump.FieldIntVector2Map},
			{Name: "Spawns", Type: tabdump.FieldIntVector3Map},
		}
		rows := map[int64]tabdump.Row{
			11: {
				"Id": int32(1), "Big": int64(1 << 40), "Rate": 0.5, "On": true, "Tag": "a",
				"Level": int32(10), "Exp": int64(99), "Ratio": 1.25, "Name": "Slime",
				"Pos2":   r2.Point{X: 1, Y: 2},
				"Pos3":   r3.Vector{X: 1, Y: 2, Z: 3},
				"Attrs":  map[int32]int32{1: 100, 2: 200},
				"Scale":  map[int32]float64{7: 0.75},
				"Points": map[int32]r2.Point{1: {X: 0.5, Y: -0.5}},
				"Spawns": map[int32]r3.Vector{3: {X: 4, Y: 5, Z: 6}},
			},
			-12: {
				"Id": int32(2), "Big": int64(-1), "Rate": -2.0, "On": false, "Tag": "longer tag",
				"Level": int32(10), "Exp": int64(7), "Ratio": 1.25, "Name": "Slime",
				"Pos2":   r2.Point{X: 1, Y: 2},
				"Pos3":   r3.Vector{},
				"Attrs":  map[int32]int32{1: 100, 2: 200},
				"Scale":  map[int32]float64{},
				"Points": map[int32]r2.Point{},
				"Spawns": map[int32]r3.Vector{},
			},
		}

		tbl, err := subject.Load(buildTable(schema, rows, 11, -12), schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Keys).To(Equal([]int64{11, -12}))
		Expect(tbl.Rows).To(Equal(rows))
		Expect(tbl.Report.Clean()).To(BeTrue())
	})

	It("should dedupe pooled values", func() {
		schema := tabdump.Schema{{Name: "Name", Type: tabdump.FieldPooledString}}
		buf := new(bytes.Buffer)
		b := tabdump.NewBuilder(buf, schema, nil)
		for k := int64(0); k < 10; k++ {
			Expect(b.Append(k, tabdump.Row{"Name": "same"})).To(Succeed())
		}
		Expect(b.Close()).To(Succeed())

		pools := tabdump.NewPoolSet()
		c := tabdump.NewCursor(buf.Bytes())
		h, err := tabdump.ReadHeader(c)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.PoolCount).To(Equal(int32(1)))
		Expect(c.Seek(c.Pos() + 10*8 + int(h.DataSectionLength))).To(Succeed())
		Expect(c.ReadInt32()).To(Equal(int32(tabdump.PoolString)))
		size, err := c.ReadLength()
		Expect(err).NotTo(HaveOccurred())
		slice, err := c.ReadBytes(size)
		Expect(err).NotTo(HaveOccurred())
		Expect(pools.Populate(tabdump.PoolString, slice)).To(Equal(0))
		Expect(pools.Len(tabdump.PoolString)).To(Equal(1))
	})

	It("should omit rows with bad pool indices", func() {
		raw := new(rawTable).header(3, 1, 24)
		raw.i64(1, 2, 3)
		raw.i32(1, 0, 2, 5, 3, 1)
		raw.i32(int32(tabdump.PoolInt64), 20, 2).i64(100, 200)

		tbl, err := subject.Load(raw.Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Keys).To(Equal([]int64{1, 2, 3}))
		Expect(tbl.Rows).To(HaveLen(2))
		Expect(tbl.Rows).To(HaveKey(int64(1)))
		Expect(tbl.Rows).To(HaveKey(int64(3)))

		Expect(tbl.Report.Omitted).To(HaveLen(1))
		Expect(tbl.Report.Omitted[0].Key).To(Equal(int64(2)))
		Expect(tbl.Report.Omitted[0].Field).To(Equal("f2"))
		Expect(tbl.Report.Omitted[0]).To(MatchError(tabdump.ErrPoolIndex))
		Expect(hook.LastEntry().Message).To(Equal("row omitted"))
	})

	It("should bound rows by the stride", func() {
		schema := tabdump.Schema{{Name: "s", Type: tabdump.FieldString}}
		raw := new(rawTable).header(2, 0, 16)
		raw.i64(1, 2)
		raw.i32(4).WriteString("abcd") // fits exactly
		raw.i32(6).WriteString("abcd") // claims more than the stride

		tbl, err := subject.Load(raw.Bytes(), schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(Equal(map[int64]tabdump.Row{1: {"s": "abcd"}}))
		Expect(tbl.Report.Omitted).To(HaveLen(1))
		Expect(tbl.Report.Omitted[0]).To(MatchError(tabdump.ErrRowOverrun))
	})

	It("should tolerate unknown pools and trailing pool bytes", func() {
		raw := new(rawTable).header(1, 3, 8)
		raw.i64(5)
		raw.i32(9, 1)
		raw.i32(77, 3)
		raw.Write([]byte{1, 2, 3})
		raw.i32(int32(tabdump.PoolInt64), 24, 2).i64(100, 200).i32(0xbeef)
		raw.i32(int32(tabdump.PoolString), 0)

		tbl, err := subject.Load(raw.Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(Equal(map[int64]tabdump.Row{5: {"f1": int32(9), "f2": int64(200)}}))
		Expect(tbl.Report.UnknownPools).To(Equal([]int32{77}))
		Expect(tbl.Report.TrailingBytes).To(Equal(map[tabdump.PoolKind]int{tabdump.PoolInt64: 4}))
	})

	It("should omit rows depending on failed pools", func() {
		raw := new(rawTable).header(1, 1, 8)
		raw.i64(5)
		raw.i32(9, 0)
		raw.i32(int32(tabdump.PoolInt64), 12, 2).i64(100)

		tbl, err := subject.Load(raw.Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(BeEmpty())
		Expect(tbl.Report.PoolErrors).To(HaveLen(1))
		Expect(tbl.Report.PoolErrors[0].Kind).To(Equal(tabdump.PoolInt64))
		Expect(tbl.Report.Omitted[0]).To(MatchError(tabdump.ErrPoolUnresolved))
	})

	It("should decode absent maps without a map pool", func() {
		schema := tabdump.Schema{
			{Name: "Id", Type: tabdump.FieldInt32},
			{Name: "Attrs", Type: tabdump.FieldIntIntMap},
		}

		var buf bytes.Buffer
		b := tabdump.NewBuilder(&buf, schema, nil)
		Expect(b.Append(1, tabdump.Row{"Id": int32(1), "Attrs": map[int32]int32(nil)})).To(Succeed())
		Expect(b.Close()).To(Succeed())

		tbl, err := subject.Load(buf.Bytes(), schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(Equal(map[int64]tabdump.Row{
			1: {"Id": int32(1), "Attrs": map[int32]int32{}},
		}))
		Expect(tbl.Report.Omitted).To(BeEmpty())

		raw := new(rawTable).header(2, 0, 16)
		raw.i64(7, 8)
		raw.i32(7, -1)
		raw.i32(8, -1)

		tbl, err = subject.Load(raw.Bytes(), schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(HaveLen(2))
		Expect(tbl.Rows[8]).To(Equal(tabdump.Row{"Id": int32(8), "Attrs": map[int32]int32{}}))
		Expect(tbl.Report.Clean()).To(BeTrue())
	})

	It("should keep the first of duplicate keys", func() {
		raw := new(rawTable).header(2, 0, 8)
		raw.i64(5, 5)
		raw.i32(1, 2)

		schema := tabdump.Schema{{Name: "v", Type: tabdump.FieldInt32}}
		tbl, err := subject.Load(raw.Bytes(), schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Keys).To(Equal([]int64{5}))
		Expect(tbl.Rows).To(Equal(map[int64]tabdump.Row{5: {"v": int32(1)}}))
		Expect(tbl.Report.DuplicateKeys).To(Equal([]int64{5}))
	})

	It("should not share pools across loads", func() {
		first := new(rawTable).header(1, 1, 8)
		first.i64(1).i32(0, 0)
		first.i32(int32(tabdump.PoolInt64), 12, 1).i64(100)

		second := new(rawTable).header(1, 0, 8)
		second.i64(1).i32(0, 0)

		tbl, err := subject.Load(first.Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(HaveLen(1))

		tbl, err = subject.Load(second.Bytes(), twoFields)
		Expect(err).NotTo(HaveOccurred())
		Expect(tbl.Rows).To(BeEmpty())
		Expect(tbl.Report.Omitted[0]).To(MatchError(tabdump.ErrPoolUnresolved))
	})
})

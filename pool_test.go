package tabdump_test

import (
	"github.com/bsm/tabdump"
	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("PoolSet", func() {
	var subject *tabdump.PoolSet

	BeforeEach(func() {
		subject = tabdump.NewPoolSet()
	})

	It("should populate arrays", func() {
		slice := new(rawTable).i32(2).i64(100, 200)
		Expect(subject.Populate(tabdump.PoolInt64, slice.Bytes())).To(Equal(0))
		Expect(subject.Ready(tabdump.PoolInt64)).To(BeTrue())
		Expect(subject.Len(tabdump.PoolInt64)).To(Equal(2))
		Expect(subject.Int64(1)).To(Equal(int64(200)))

		_, err := subject.Int64(2)
		Expect(err).To(MatchError(tabdump.ErrPoolIndex))
		_, err = subject.Int64(-1)
		Expect(err).To(MatchError(tabdump.ErrPoolIndex))
	})

	It("should populate maps", func() {
		slice := new(rawTable).i32(2, 1, 5, 50, 0)
		Expect(subject.Populate(tabdump.PoolIntIntMap, slice.Bytes())).To(Equal(0))
		Expect(subject.IntIntMap(0)).To(Equal(map[int32]int32{5: 50}))
		Expect(subject.IntIntMap(1)).To(BeEmpty())
		Expect(subject.IntIntMap(-1)).To(BeEmpty())
	})

	It("should populate strings and vectors", func() {
		slice := new(rawTable).i32(1, 2)
		slice.WriteString("hi")
		Expect(subject.Populate(tabdump.PoolString, slice.Bytes())).To(Equal(0))
		Expect(subject.String(0)).To(Equal("hi"))

		v3 := new(rawTable).i32(1)
		v3.Write([]byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0x40, 0, 0, 0x40, 0x40}) // 1, 2, 3
		Expect(subject.Populate(tabdump.PoolVector3, v3.Bytes())).To(Equal(0))
		Expect(subject.Vector3(0)).To(Equal(r3.Vector{X: 1, Y: 2, Z: 3}))
	})

	It("should report trailing bytes", func() {
		slice := new(rawTable).i32(1, 9, 77)
		Expect(subject.Populate(tabdump.PoolInt32, slice.Bytes())).To(Equal(4))
		Expect(subject.Int32(0)).To(Equal(int32(9)))
	})

	It("should reject a second populate", func() {
		slice := new(rawTable).i32(1, 9)
		Expect(subject.Populate(tabdump.PoolInt32, slice.Bytes())).To(Equal(0))
		_, err := subject.Populate(tabdump.PoolInt32, slice.Bytes())
		Expect(err).To(MatchError(tabdump.ErrPoolPopulated))
	})

	It("should leave failed pools unresolved", func() {
		slice := new(rawTable).i32(3, 9)
		_, err := subject.Populate(tabdump.PoolInt32, slice.Bytes())
		Expect(err).To(MatchError(tabdump.ErrOutOfRange))
		Expect(err).To(BeAssignableToTypeOf(&tabdump.PoolError{}))
		Expect(subject.Ready(tabdump.PoolInt32)).To(BeFalse())

		_, err = subject.Int32(0)
		Expect(err).To(MatchError(tabdump.ErrPoolUnresolved))
	})

	It("should skip unknown kinds", func() {
		Expect(tabdump.ParsePoolKind(42)).To(Equal(tabdump.PoolUnknown))
		Expect(tabdump.ParsePoolKind(0)).To(Equal(tabdump.PoolUnknown))
		Expect(tabdump.ParsePoolKind(10)).To(Equal(tabdump.PoolIntVector3Map))
		Expect(subject.Populate(tabdump.PoolUnknown, []byte{1, 2, 3})).To(Equal(3))
	})
})

package tabdump_test

import (
	"github.com/bsm/tabdump"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cursor", func() {
	var subject *tabdump.Cursor

	BeforeEach(func() {
		raw := new(rawTable)
		raw.i32(7, -2).i64(1 << 40)
		raw.WriteString("abc")
		subject = tabdump.NewCursor(raw.Bytes())
	})

	It("should read primitives", func() {
		Expect(subject.ReadInt32()).To(Equal(int32(7)))
		Expect(subject.ReadInt32()).To(Equal(int32(-2)))
		Expect(subject.ReadInt64()).To(Equal(int64(1 << 40)))
		Expect(subject.ReadBytes(3)).To(Equal([]byte("abc")))
		Expect(subject.Remaining()).To(Equal(0))
	})

	It("should fail reading past the end", func() {
		Expect(subject.Seek(17)).To(Succeed())
		_, err := subject.ReadInt32()
		Expect(err).To(MatchError(tabdump.ErrOutOfRange))
		Expect(subject.Pos()).To(Equal(17))
	})

	It("should seek anywhere within bounds", func() {
		Expect(subject.Seek(8)).To(Succeed())
		Expect(subject.ReadInt64()).To(Equal(int64(1 << 40)))
		Expect(subject.Seek(0)).To(Succeed())
		Expect(subject.ReadInt32()).To(Equal(int32(7)))
		Expect(subject.Seek(subject.Len())).To(Succeed())
		Expect(subject.Seek(subject.Len() + 1)).To(MatchError(tabdump.ErrOutOfRange))
		Expect(subject.Seek(-1)).To(MatchError(tabdump.ErrOutOfRange))
	})

	It("should restrict frames", func() {
		frame, err := subject.Frame(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.ReadInt32()).To(Equal(int32(7)))
		_, err = frame.ReadInt32()
		Expect(err).To(MatchError(tabdump.ErrOutOfRange))
		Expect(subject.Pos()).To(Equal(4))
	})
})

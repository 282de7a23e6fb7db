package tabdump_test

import (
	"github.com/bsm/tabdump"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Schema", func() {
	It("should parse field types", func() {
		Expect(tabdump.ParseFieldType("int32")).To(Equal(tabdump.FieldInt32))
		Expect(tabdump.ParseFieldType(" Map_Int_Vector3 ")).To(Equal(tabdump.FieldIntVector3Map))
		_, err := tabdump.ParseFieldType("uint8")
		Expect(err).To(MatchError(`tabdump: unknown field type "uint8"`))

		var t tabdump.FieldType
		Expect(t.UnmarshalText([]byte("pool_string"))).To(Succeed())
		Expect(t).To(Equal(tabdump.FieldPooledString))
		Expect(t.MarshalText()).To(Equal([]byte("pool_string")))
	})

	It("should map pooled types to pools", func() {
		Expect(tabdump.FieldInt64.IsPooled()).To(BeFalse())
		Expect(tabdump.FieldPooledInt64.Pool()).To(Equal(tabdump.PoolInt64))
		Expect(tabdump.FieldPooledDouble.Pool()).To(Equal(tabdump.PoolNumber))
		Expect(tabdump.FieldIntNumberMap.Pool()).To(Equal(tabdump.PoolIntNumberMap))
	})

	It("should validate", func() {
		Expect(tabdump.Schema{{Name: "a", Type: tabdump.FieldInt32}}.Validate()).To(Succeed())
		Expect(tabdump.Schema{{Name: "", Type: tabdump.FieldInt32}}.Validate()).To(MatchError(`tabdump: field #0 has no name`))
		Expect(tabdump.Schema{{Name: "a"}}.Validate()).To(MatchError(`tabdump: field "a" has invalid type`))
		Expect(tabdump.Schema{
			{Name: "a", Type: tabdump.FieldInt32},
			{Name: "a", Type: tabdump.FieldInt64},
		}.Validate()).To(MatchError(`tabdump: duplicate field "a"`))
	})
})

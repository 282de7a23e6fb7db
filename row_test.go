package tabdump_test

import (
	"math"

	"github.com/bsm/tabdump"
	"github.com/goccy/go-json"
	"github.com/golang/geo/r2"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Row", func() {
	It("should return finite rows as is", func() {
		row := tabdump.Row{"Rate": 0.5, "Pos": r2.Point{X: 1}}
		Expect(row.JSONSafe()).To(Equal(row))
	})

	It("should replace non-finite floats", func() {
		row := tabdump.Row{
			"Id":     int32(2),
			"Rate":   math.NaN(),
			"Pos":    r2.Point{X: math.Inf(-1), Y: 1},
			"Points": map[int32]r2.Point{3: {X: math.Inf(1)}},
		}
		safe := row.JSONSafe()
		Expect(safe).To(Equal(tabdump.Row{
			"Id":     int32(2),
			"Rate":   "NaN",
			"Pos":    map[string]interface{}{"X": "-Inf", "Y": 1.0},
			"Points": map[int32]interface{}{3: map[string]interface{}{"X": "+Inf", "Y": 0.0}},
		}))
		Expect(math.IsNaN(row["Rate"].(float64))).To(BeTrue())

		data, err := json.Marshal(safe)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"Rate":"NaN"`))
		Expect(tabdump.JSONSafeValue(float32(math.Inf(1)))).To(Equal("+Inf"))
		Expect(tabdump.JSONSafeValue(int32(4))).To(Equal(int32(4)))
	})
})

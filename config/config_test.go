package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bsm/tabdump"
	"github.com/bsm/tabdump/config"
	"github.com/bsm/tabdump/export"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const sample = `
[scan]
workers    = 4
min_window = 16
max_window = 1024
deadline   = "1m30s"
strict     = true

[export]
formats = ["json", "XLSX", "cdb"]
dir     = "out"
run_id  = "manual"

[mapping]
include_empty = true
sort          = true

[[table]]
name = "SkillTable"
file = "dump/SkillTable.bytes"
fields = [
  { name = "Id",    type = "int32" },
  { name = "Name",  type = "pool_string" },
  { name = "Range", type = "vector2" },
]

[[table]]
name = "MonsterTable"
file = "/abs/MonsterTable.bytes"
fields = [
  { name = "Id", type = "int64" },
]
`

var _ = Describe("Config", func() {
	It("should parse", func() {
		c, err := config.Parse(sample)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Scan).To(Equal(config.Scan{
			Workers:   4,
			MinWindow: 16,
			MaxWindow: 1024,
			Deadline:  config.Duration(90 * time.Second),
			Strict:    true,
		}))
		Expect(c.Export.Formats).To(Equal([]export.Format{export.JSON, export.XLSX, export.CDB}))
		Expect(c.Mapping).To(Equal(config.Mapping{IncludeEmpty: true, Sort: true}))
		Expect(c.Tables).To(HaveLen(2))
		Expect(c.Tables[0].Fields).To(Equal(tabdump.Schema{
			{Name: "Id", Type: tabdump.FieldInt32},
			{Name: "Name", Type: tabdump.FieldPooledString},
			{Name: "Range", Type: tabdump.FieldVector2},
		}))

		t, ok := c.Table("MonsterTable")
		Expect(ok).To(BeTrue())
		Expect(t.File).To(Equal("/abs/MonsterTable.bytes"))
		_, ok = c.Table("ItemTable")
		Expect(ok).To(BeFalse())
	})

	It("should build component options", func() {
		c, err := config.Parse(sample)
		Expect(err).NotTo(HaveOccurred())

		so := c.Scan.Options(nil)
		Expect(so.Workers).To(Equal(4))
		Expect(so.MinWindow).To(Equal(16))
		Expect(so.MaxWindow).To(Equal(1024))
		Expect(so.Strict).To(BeTrue())

		eo := c.Export.Options(nil)
		Expect(eo.RunID).To(Equal("manual"))
		Expect(eo.Formats).To(HaveLen(3))

		mo := c.Mapping.Options()
		Expect(mo.IncludeEmpty).To(BeTrue())
		Expect(mo.Sort).To(BeTrue())
	})

	It("should reject invalid configs", func() {
		for _, data := range []string{
			`[scan]` + "\n" + `deadline = "soon"`,
			`[export]` + "\n" + `formats = ["csv"]`,
			`[scan]` + "\n" + `workerz = 2`,
			`[scan]` + "\n" + `min_window = 64` + "\n" + `max_window = 32`,
			`[[table]]` + "\n" + `file = "x"` + "\n" + `fields = [{ name = "Id", type = "int32" }]`,
			`[[table]]` + "\n" + `name = "A"` + "\n" + `fields = [{ name = "Id", type = "int32" }]`,
			`[[table]]` + "\n" + `name = "A"` + "\n" + `file = "x"`,
			`[[table]]` + "\n" + `name = "A"` + "\n" + `file = "x"` + "\n" + `fields = [{ name = "Id", type = "uint8" }]`,
			`[[table]]` + "\n" + `name = "A"` + "\n" + `file = "x"` + "\n" + `fields = [{ name = "Id", type = "int32" }, { name = "Id", type = "int64" }]`,
			"[[table]]\nname = \"A\"\nfile = \"x\"\nfields = [{ name = \"Id\", type = \"int32\" }]\n[[table]]\nname = \"A\"\nfile = \"y\"\nfields = [{ name = \"Id\", type = \"int32\" }]",
		} {
			_, err := config.Parse(data)
			Expect(err).To(HaveOccurred(), data)
		}
	})

	It("should load files and resolve paths", func() {
		dir, err := ioutil.TempDir("", "tabdump-config")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "tabdump.toml")
		Expect(ioutil.WriteFile(path, []byte(sample), 0o644)).To(Succeed())

		c, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Tables[0].File).To(Equal(filepath.Join(dir, "dump", "SkillTable.bytes")))
		Expect(c.Tables[1].File).To(Equal("/abs/MonsterTable.bytes"))
		Expect(c.Export.Dir).To(Equal(filepath.Join(dir, "out")))

		_, err = config.Load(filepath.Join(dir, "missing.toml"))
		Expect(err).To(HaveOccurred())
	})

	It("should format durations", func() {
		Expect(config.Duration(90 * time.Second).MarshalText()).To(Equal([]byte("1m30s")))
	})
})

// --------------------------------------------------------------------

func TestSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tabdump/config")
}

package export

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/bsm/tabdump"
	"github.com/goccy/go-json"
	"github.com/tealeg/xlsx"
)

const maxSheetName = 31

// xlsxSink writes a workbook with one sheet: a header row of "Key" plus
// the schema field names, followed by one row per table row in key order.
// Vectors and maps are written as JSON text.
type xlsxSink struct{}

func (xlsxSink) Export(dir, name string, schema tabdump.Schema, tbl *tabdump.Table) (string, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName(name))
	if err != nil {
		return "", err
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Key")
	for _, f := range schema {
		header.AddCell().SetString(f.Name)
	}

	for _, key := range sortedKeys(tbl) {
		row := tbl.Rows[key]
		xr := sheet.AddRow()
		xr.AddCell().SetInt64(key)
		for _, f := range schema {
			if err := setCell(xr.AddCell(), row[f.Name]); err != nil {
				return "", err
			}
		}
	}

	path := filepath.Join(dir, name+".xlsx")
	return path, file.Save(path)
}

func setCell(c *xlsx.Cell, v interface{}) error {
	switch x := v.(type) {
	case nil:
	case int32:
		c.SetInt64(int64(x))
	case int64:
		c.SetInt64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			c.SetString(tabdump.JSONSafeValue(x).(string))
			return nil
		}
		c.SetFloat(x)
	case bool:
		c.SetBool(x)
	case string:
		c.SetString(x)
	default:
		b, err := json.Marshal(tabdump.JSONSafeValue(x))
		if err != nil {
			return err
		}
		c.SetString(string(b))
	}
	return nil
}

// sheetName strips characters Excel forbids and truncates to 31 runes.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, name)
	if rs := []rune(name); len(rs) > maxSheetName {
		name = string(rs[:maxSheetName])
	}
	if name == "" {
		name = "Sheet1"
	}
	return name
}

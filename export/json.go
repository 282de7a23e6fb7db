package export

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bsm/tabdump"
	"github.com/goccy/go-json"
)

// jsonSink writes an indented object of rows keyed by row key, in
// ascending key order. Non-ASCII text is kept as is and non-finite
// floats are written as strings.
type jsonSink struct{}

func (jsonSink) Export(dir, name string, _ tabdump.Schema, tbl *tabdump.Table) (string, error) {
	path := filepath.Join(dir, name+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeJSONRows(w, tbl); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return path, f.Close()
}

func writeJSONRows(w *bufio.Writer, tbl *tabdump.Table) error {
	keys := sortedKeys(tbl)
	if len(keys) == 0 {
		_, err := w.WriteString("{}\n")
		return err
	}

	_, _ = w.WriteString("{\n")
	for i, key := range keys {
		row, err := json.MarshalIndentWithOption(tbl.Rows[key].JSONSafe(), "  ", "  ", json.DisableHTMLEscape())
		if err != nil {
			return err
		}

		_, _ = w.WriteString("  ")
		_, _ = w.WriteString(strconv.Quote(strconv.FormatInt(key, 10)))
		_, _ = w.WriteString(": ")
		_, _ = w.Write(row)
		if i+1 < len(keys) {
			_ = w.WriteByte(',')
		}
		_ = w.WriteByte('\n')
	}
	_, err := w.WriteString("}\n")
	return err
}

// Package mapping derives id to display name lookups from exported tables.
package mapping

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bsm/tabdump"
	"github.com/bsm/tabdump/export"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

var (
	// ErrBadRoot is returned when a JSON document is neither an object nor
	// an array.
	ErrBadRoot = errors.New("mapping: expected an object or array at the root")

	utf8BOM = []byte{0xef, 0xbb, 0xbf}
)

// Options define mapping specific options.
type Options struct {
	// IDField names the id of list entries.
	// Default: "Id".
	IDField string

	// NameField is the preferred name.
	// Default: "Name".
	NameField string

	// FallbackField is used when NameField is blank.
	// Default: "NameDesign".
	FallbackField string

	// IncludeEmpty keeps entries without any name.
	IncludeEmpty bool

	// Sort orders entries by numeric id. When any id is not numeric the
	// entries are sorted as strings instead.
	Sort bool
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.IDField == "" {
		oo.IDField = "Id"
	}
	if oo.NameField == "" {
		oo.NameField = "Name"
	}
	if oo.FallbackField == "" {
		oo.FallbackField = "NameDesign"
	}

	return &oo
}

// Entry is a single id/name pair.
type Entry struct {
	ID   string
	Name string
}

// Mapping is an ordered list of entries.
type Mapping []Entry

// Lookup returns the name for id.
func (m Mapping) Lookup(id string) (string, bool) {
	for _, e := range m {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}

// WriteTo writes m as an indented JSON object, keeping non-ASCII text.
func (m Mapping) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if len(m) == 0 {
		buf.WriteString("{}\n")
	} else {
		buf.WriteString("{\n")
		for i, e := range m {
			id, err := json.MarshalWithOption(e.ID, json.DisableHTMLEscape())
			if err != nil {
				return 0, err
			}
			name, err := json.MarshalWithOption(e.Name, json.DisableHTMLEscape())
			if err != nil {
				return 0, err
			}

			buf.WriteString("  ")
			buf.Write(id)
			buf.WriteString(": ")
			buf.Write(name)
			if i+1 < len(m) {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString("}\n")
	}
	return buf.WriteTo(w)
}

// WriteFile writes m to path, creating parent directories.
func (m Mapping) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mapping: create output dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "mapping: create output")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := m.WriteTo(w); err != nil {
		return errors.Wrap(err, "mapping: write output")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "mapping: write output")
	}
	return f.Close()
}

// --------------------------------------------------------------------

// FromTable builds a mapping from decoded rows, in table key order.
func FromTable(tbl *tabdump.Table, o *Options) Mapping {
	o = o.norm()

	m := make(Mapping, 0, len(tbl.Keys))
	for _, key := range tbl.Keys {
		row, ok := tbl.Rows[key]
		if !ok {
			continue
		}
		m = o.add(m, strconv.FormatInt(key, 10), row)
	}
	return o.finish(m)
}

// FromJSON builds a mapping from an exported JSON table. The document may
// be an object of rows keyed by id, or an array of rows carrying an id
// field. Entries keep document order. When an id repeats, the last row
// wins but keeps the position of the first. Numeric ids are kept verbatim.
func FromJSON(data []byte, o *Options) (Mapping, error) {
	o = o.norm()

	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "mapping: parse")
	}

	var rows jsonRows
	switch tok {
	case json.Delim('{'):
		for dec.More() {
			key, err := dec.Token()
			if err != nil {
				return nil, errors.Wrap(err, "mapping: parse")
			}
			var v interface{}
			if err := dec.Decode(&v); err != nil {
				return nil, errors.Wrap(err, "mapping: parse")
			}
			id, _ := key.(string)
			row, _ := v.(map[string]interface{})
			rows.set(id, row)
		}
	case json.Delim('['):
		for dec.More() {
			var v interface{}
			if err := dec.Decode(&v); err != nil {
				return nil, errors.Wrap(err, "mapping: parse")
			}
			row, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			if id, ok := row[o.IDField]; ok {
				rows.set(formatID(id), row)
			}
		}
	default:
		return nil, ErrBadRoot
	}

	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "mapping: parse")
	}
	if dec.More() {
		return nil, errors.New("mapping: trailing data after root")
	}

	m := make(Mapping, 0, len(rows.ids))
	for i, id := range rows.ids {
		if row := rows.rows[i]; row != nil {
			m = o.add(m, id, row)
		}
	}
	return o.finish(m), nil
}

// jsonRows collects rows by id in first-seen order.
type jsonRows struct {
	ids  []string
	rows []map[string]interface{}
	pos  map[string]int
}

func (r *jsonRows) set(id string, row map[string]interface{}) {
	if i, ok := r.pos[id]; ok {
		r.rows[i] = row
		return
	}
	if r.pos == nil {
		r.pos = make(map[string]int)
	}
	r.pos[id] = len(r.ids)
	r.ids = append(r.ids, id)
	r.rows = append(r.rows, row)
}

// ReadFile builds a mapping from a JSON file.
func ReadFile(path string, o *Options) (Mapping, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "mapping: read input")
	}
	return FromJSON(data, o)
}

// Latest returns the JSON export of table within the newest run below root.
func Latest(root, table string) (string, error) {
	run, err := export.LatestRun(root)
	if err != nil {
		return "", err
	}

	path := filepath.Join(run, table+".json")
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "mapping: no %s export in %s", table, run)
	}
	return path, nil
}

// SyncNameDesign copies each row's name field into its fallback field,
// using an empty string when the name is missing. It returns the number of
// rows touched.
func SyncNameDesign(tbl *tabdump.Table, o *Options) int {
	o = o.norm()

	for _, row := range tbl.Rows {
		name, _ := row[o.NameField].(string)
		row[o.FallbackField] = name
	}
	return len(tbl.Rows)
}

// --------------------------------------------------------------------

func (o *Options) add(m Mapping, id string, row map[string]interface{}) Mapping {
	name := stringField(row, o.NameField)
	if name == "" {
		name = stringField(row, o.FallbackField)
	}
	if name == "" && !o.IncludeEmpty {
		return m
	}
	return append(m, Entry{ID: id, Name: name})
}

func (o *Options) finish(m Mapping) Mapping {
	if !o.Sort {
		return m
	}

	nums := make(map[string]int64, len(m))
	for _, e := range m {
		n, err := strconv.ParseInt(e.ID, 10, 64)
		if err != nil {
			sort.SliceStable(m, func(i, j int) bool { return m[i].ID < m[j].ID })
			return m
		}
		nums[e.ID] = n
	}
	sort.SliceStable(m, func(i, j int) bool { return nums[m[i].ID] < nums[m[j].ID] })
	return m
}

func stringField(row map[string]interface{}, name string) string {
	s, _ := row[name].(string)
	return strings.TrimSpace(s)
}

func formatID(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	b, _ := json.Marshal(v)
	return string(b)
}

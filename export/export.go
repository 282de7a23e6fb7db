// Package export persists decoded tables into a timestamped run directory
// using one or more sinks.
package export

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bsm/tabdump"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Format names a sink.
type Format string

// Supported formats.
const (
	JSON     Format = "json"
	XLSX     Format = "xlsx"
	RowStore Format = "rowstore"
	LevelDB  Format = "leveldb"
	CDB      Format = "cdb"
	Badger   Format = "badger"
)

// Formats lists all supported formats.
var Formats = []Format{JSON, XLSX, RowStore, LevelDB, CDB, Badger}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, x := range Formats {
		if f == x {
			return f, nil
		}
	}
	return "", errors.Errorf("export: unknown format %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	x, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = x
	return nil
}

// Sink writes a single table below dir and returns the written path.
type Sink interface {
	Export(dir, name string, schema tabdump.Schema, tbl *tabdump.Table) (string, error)
}

// NewSink returns the sink for a format.
func NewSink(f Format) (Sink, error) {
	switch f {
	case JSON:
		return jsonSink{}, nil
	case XLSX:
		return xlsxSink{}, nil
	case RowStore:
		return rowStoreSink{}, nil
	case LevelDB:
		return levelDBSink{}, nil
	case CDB:
		return cdbSink{}, nil
	case Badger:
		return badgerSink{}, nil
	}
	return nil, errors.Errorf("export: unknown format %q", f)
}

// --------------------------------------------------------------------

// Options define exporter specific options.
type Options struct {
	// Formats are the sinks to write.
	// Default: [JSON].
	Formats []Format

	// RunID names the run directory.
	// Default: the current time as YYYYMMDD_HHMMSS.
	RunID string

	// Logger receives one entry per written file.
	// Default: discard.
	Logger logrus.FieldLogger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if len(oo.Formats) == 0 {
		oo.Formats = []Format{JSON}
	}
	if oo.RunID == "" {
		oo.RunID = NewRunID(time.Now())
	}
	if oo.Logger == nil {
		discard := logrus.New()
		discard.Out = ioutil.Discard
		oo.Logger = discard
	}

	return &oo
}

// Exporter writes tables into <root>/<run id>/.
type Exporter struct {
	o       *Options
	dir     string
	formats []Format
	sinks   []Sink
}

// NewExporter creates the run directory and returns an Exporter.
func NewExporter(root string, o *Options) (*Exporter, error) {
	o = o.norm()

	e := &Exporter{o: o, dir: filepath.Join(root, o.RunID)}
	for _, f := range o.Formats {
		s, err := NewSink(f)
		if err != nil {
			return nil, err
		}
		e.formats = append(e.formats, f)
		e.sinks = append(e.sinks, s)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "export: create run dir")
	}
	return e, nil
}

// Dir returns the run directory.
func (e *Exporter) Dir() string { return e.dir }

// Export writes tbl with every configured sink.
func (e *Exporter) Export(name string, schema tabdump.Schema, tbl *tabdump.Table) error {
	name = fileName(name)
	for i, s := range e.sinks {
		path, err := s.Export(e.dir, name, schema, tbl)
		if err != nil {
			return errors.Wrapf(err, "export: %s %s", e.formats[i], name)
		}

		log := e.o.Logger.WithFields(logrus.Fields{
			"table":  name,
			"format": e.formats[i],
			"rows":   len(tbl.Rows),
			"path":   path,
		})
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			log = log.WithField("size", humanize.Bytes(uint64(fi.Size())))
		}
		log.Info("exported")
	}
	return nil
}

// --------------------------------------------------------------------

// Key encodes a row key so that byte order matches numeric order.
func Key(key int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(key)^(1<<63))
	return b
}

func sortedKeys(tbl *tabdump.Table) []int64 {
	keys := make([]int64, 0, len(tbl.Rows))
	for k := range tbl.Rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func fileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "table"
	}
	return name
}

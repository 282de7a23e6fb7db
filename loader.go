package tabdump

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

const headerReserved = 8

// LoaderOptions define loader specific options.
type LoaderOptions struct {
	// Logger receives soft warnings and omitted rows.
	// Default: discard.
	Logger logrus.FieldLogger
}

func (o *LoaderOptions) norm() *LoaderOptions {
	var oo LoaderOptions
	if o != nil {
		oo = *o
	}

	if oo.Logger == nil {
		discard := logrus.New()
		discard.Out = ioutil.Discard
		oo.Logger = discard
	}

	return &oo
}

// Header is the fixed table header.
type Header struct {
	EntryCount        int32
	PoolCount         int32
	DataSectionLength int32
}

// Stride returns the fixed row length.
func (h Header) Stride() int {
	if h.EntryCount <= 0 {
		return 0
	}
	return int(h.DataSectionLength / h.EntryCount)
}

func (h Header) validate() error {
	if h.EntryCount < 0 || h.PoolCount < 0 || h.DataSectionLength < 0 {
		return ErrMalformedHeader
	}
	if h.EntryCount > 0 && h.DataSectionLength%h.EntryCount != 0 {
		return ErrMalformedHeader
	}
	return nil
}

// ReadHeader parses and validates the table header.
func ReadHeader(c *Cursor) (Header, error) {
	var h Header
	if err := c.Skip(headerReserved); err != nil {
		return h, err
	}

	var err error
	if h.EntryCount, err = c.ReadInt32(); err != nil {
		return h, err
	}
	if h.PoolCount, err = c.ReadInt32(); err != nil {
		return h, err
	}
	if h.DataSectionLength, err = c.ReadInt32(); err != nil {
		return h, err
	}
	return h, h.validate()
}

// --------------------------------------------------------------------

// Table is the result of a load.
type Table struct {
	Header Header
	Keys   []int64       // row keys in read order
	Rows   map[int64]Row // successfully decoded rows
	Report LoadReport
}

// Len returns the number of decoded rows.
func (t *Table) Len() int { return len(t.Rows) }

// LoadReport collects everything that was tolerated during a load.
type LoadReport struct {
	Omitted       []*RowError      // rows that failed to decode
	PoolErrors    []*PoolError     // pools that failed to populate
	UnknownPools  []int32          // raw tags of skipped pools
	TrailingBytes map[PoolKind]int // pool slices not fully consumed
	DuplicateKeys []int64
}

// Clean returns true if nothing was tolerated.
func (r *LoadReport) Clean() bool {
	return len(r.Omitted) == 0 && len(r.PoolErrors) == 0 && len(r.UnknownPools) == 0 &&
		len(r.TrailingBytes) == 0 && len(r.DuplicateKeys) == 0
}

// Loader decodes tables. A loader carries no state between loads and
// may be used concurrently.
type Loader struct {
	o *LoaderOptions
}

// NewLoader returns a loader.
func NewLoader(o *LoaderOptions) *Loader {
	return &Loader{o: o.norm()}
}

// Load decodes buf according to schema. Only ErrMalformedHeader and
// truncation of the header, key index or pool directory abort the load;
// rows that fail to decode are omitted and listed in the report.
func (l *Loader) Load(buf []byte, schema Schema) (*Table, error) {
	log := l.o.Logger
	c := NewCursor(buf)

	h, err := ReadHeader(c)
	if err != nil {
		return nil, err
	}
	stride := h.Stride()

	// row index: key -> ordinal
	tbl := &Table{
		Header: h,
		Keys:   make([]int64, 0, capHint(int(h.EntryCount), c.Remaining()/8)),
		Rows:   make(map[int64]Row, capHint(int(h.EntryCount), c.Remaining()/8)),
	}
	ordinals := make(map[int64]int, cap(tbl.Keys))
	for i := 0; i < int(h.EntryCount); i++ {
		key, err := c.ReadInt64()
		if err != nil {
			return nil, err
		}
		if _, ok := ordinals[key]; ok {
			tbl.Report.DuplicateKeys = append(tbl.Report.DuplicateKeys, key)
			log.WithField("key", key).Warn("duplicate row key, keeping first")
			continue
		}
		ordinals[key] = i
		tbl.Keys = append(tbl.Keys, key)
	}

	indexEnd := c.Pos()
	if err := c.Seek(indexEnd + int(h.DataSectionLength)); err != nil {
		return nil, err
	}

	pools, err := l.loadPools(c, int(h.PoolCount), &tbl.Report)
	if err != nil {
		return nil, err
	}

	for _, key := range tbl.Keys {
		if err := c.Seek(indexEnd + ordinals[key]*stride); err != nil {
			return nil, err
		}
		frame, err := c.Frame(stride)
		if err != nil {
			return nil, err
		}

		row, err := decodeRow(key, frame, schema, pools)
		if err != nil {
			rerr := err.(*RowError)
			tbl.Report.Omitted = append(tbl.Report.Omitted, rerr)
			log.WithFields(logrus.Fields{"key": key, "field": rerr.Field}).WithError(rerr.Err).Warn("row omitted")
			continue
		}
		tbl.Rows[key] = row
	}
	return tbl, nil
}

func (l *Loader) loadPools(c *Cursor, n int, report *LoadReport) (*PoolSet, error) {
	log := l.o.Logger
	pools := NewPoolSet()

	for i := 0; i < n; i++ {
		tag, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		size, err := c.ReadLength()
		if err != nil {
			return nil, err
		}
		slice, err := c.ReadBytes(size)
		if err != nil {
			return nil, err
		}

		kind := ParsePoolKind(tag)
		if kind == PoolUnknown {
			report.UnknownPools = append(report.UnknownPools, tag)
			log.WithFields(logrus.Fields{"tag": tag, "size": size}).Debug("skipped unknown pool")
			continue
		}
		if len(slice) == 0 {
			continue
		}

		trailing, err := pools.Populate(kind, slice)
		if err != nil {
			perr := err.(*PoolError)
			report.PoolErrors = append(report.PoolErrors, perr)
			log.WithField("pool", kind).WithError(perr.Err).Warn("pool unresolved")
			continue
		}
		if trailing != 0 {
			if report.TrailingBytes == nil {
				report.TrailingBytes = make(map[PoolKind]int)
			}
			report.TrailingBytes[kind] += trailing
			log.WithFields(logrus.Fields{"pool": kind, "trailing": trailing}).Warn("pool slice not fully consumed")
		}
	}
	return pools, nil
}

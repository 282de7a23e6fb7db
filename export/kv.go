package export

import (
	"os"
	"path/filepath"

	"github.com/bsm/tabdump"
	"github.com/bsm/tabdump/rowstore"
	"github.com/colinmarc/cdb"
	"github.com/dgraph-io/badger"
	"github.com/goccy/go-json"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/table"
)

// badgerBatchSize bounds the number of rows per badger transaction.
const badgerBatchSize = 1000

// eachRow calls fn with the ordered key and JSON encoded row, in key order.
func eachRow(tbl *tabdump.Table, fn func(key, value []byte) error) error {
	for _, k := range sortedKeys(tbl) {
		val, err := json.Marshal(tbl.Rows[k].JSONSafe())
		if err != nil {
			return err
		}
		if err := fn(Key(k), val); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------

// rowStoreSink writes a rowstore file.
type rowStoreSink struct{}

func (rowStoreSink) Export(dir, name string, schema tabdump.Schema, tbl *tabdump.Table) (string, error) {
	path := filepath.Join(dir, name+".rows")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := rowstore.NewWriter(f, schema, nil)
	if err := w.WriteTable(tbl); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// --------------------------------------------------------------------

// levelDBSink writes a single snappy-compressed LevelDB sorted table.
type levelDBSink struct{}

func (levelDBSink) Export(dir, name string, _ tabdump.Schema, tbl *tabdump.Table) (string, error) {
	path := filepath.Join(dir, name+".ldb")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := table.NewWriter(f, &opt.Options{
		Compression: opt.SnappyCompression,
	})
	if err := eachRow(tbl, w.Append); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return path, f.Close()
}

// --------------------------------------------------------------------

// cdbSink writes a constant database.
type cdbSink struct{}

func (cdbSink) Export(dir, name string, _ tabdump.Schema, tbl *tabdump.Table) (string, error) {
	path := filepath.Join(dir, name+".cdb")
	w, err := cdb.Create(path)
	if err != nil {
		return "", err
	}

	if err := eachRow(tbl, w.Put); err != nil {
		_ = w.Close()
		return "", err
	}
	return path, w.Close()
}

// --------------------------------------------------------------------

// badgerSink writes a badger database directory.
type badgerSink struct{}

func (badgerSink) Export(dir, name string, _ tabdump.Schema, tbl *tabdump.Table) (string, error) {
	path := filepath.Join(dir, name+".badger")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}

	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	db, err := badger.Open(opts)
	if err != nil {
		return "", err
	}

	type pair struct{ key, value []byte }
	batch := make([]pair, 0, badgerBatchSize)
	commit := func() error {
		err := db.Update(func(txn *badger.Txn) error {
			for _, p := range batch {
				if err := txn.Set(p.key, p.value); err != nil {
					return err
				}
			}
			return nil
		})
		batch = batch[:0]
		return err
	}

	err = eachRow(tbl, func(key, value []byte) error {
		batch = append(batch, pair{key: key, value: value})
		if len(batch) < badgerBatchSize {
			return nil
		}
		return commit()
	})
	if err == nil && len(batch) != 0 {
		err = commit()
	}
	if err != nil {
		_ = db.Close()
		return "", err
	}
	return path, db.Close()
}

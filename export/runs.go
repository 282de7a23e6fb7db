package export

import (
	"io/ioutil"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// RunIDLayout is the time layout of run directory names.
const RunIDLayout = "20060102_150405"

// ErrNoRuns is returned by LatestRun when root holds no run directory.
var ErrNoRuns = errors.New("export: no run directories")

// NewRunID returns the run directory name for t.
func NewRunID(t time.Time) string {
	return t.Format(RunIDLayout)
}

// LatestRun returns the newest run directory below root. Directories named
// by RunIDLayout win, newest name first; otherwise the most recently
// modified directory is picked.
func LatestRun(root string) (string, error) {
	infos, err := ioutil.ReadDir(root)
	if err != nil {
		return "", errors.Wrap(err, "export: list runs")
	}

	var byName, byTime string
	var newest time.Time
	for _, fi := range infos {
		if !fi.IsDir() {
			continue
		}

		name := fi.Name()
		if _, err := time.Parse(RunIDLayout, name); err == nil && name > byName {
			byName = name
		}
		if byTime == "" || fi.ModTime().After(newest) {
			byTime, newest = name, fi.ModTime()
		}
	}

	switch {
	case byName != "":
		return filepath.Join(root, byName), nil
	case byTime != "":
		return filepath.Join(root, byTime), nil
	}
	return "", ErrNoRuns
}

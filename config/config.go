// Package config loads tabdump run configuration from TOML.
//
//	[scan]
//	workers    = 8
//	min_window = 32
//	max_window = 4000000
//	deadline   = "2m"
//	strict     = false
//
//	[export]
//	formats = ["json", "xlsx"]
//	dir     = "Data/RawGameData"
//
//	[mapping]
//	include_empty = false
//	sort          = true
//
//	[[table]]
//	name = "SkillTable"
//	file = "dump/SkillTable.bytes"
//	fields = [
//	  { name = "Id",   type = "int32" },
//	  { name = "Name", type = "pool_string" },
//	]
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bsm/tabdump"
	"github.com/bsm/tabdump/export"
	"github.com/bsm/tabdump/mapping"
	"github.com/bsm/tabdump/protoscan"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Duration is a time.Duration that decodes from strings such as "90s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Scan configures descriptor recovery.
type Scan struct {
	Workers   int      `toml:"workers"`
	MinWindow int      `toml:"min_window"`
	MaxWindow int      `toml:"max_window"`
	Deadline  Duration `toml:"deadline"`
	Strict    bool     `toml:"strict"`
}

// Options returns scanner options.
func (s *Scan) Options(logger logrus.FieldLogger) *protoscan.Options {
	return &protoscan.Options{
		Workers:   s.Workers,
		MinWindow: s.MinWindow,
		MaxWindow: s.MaxWindow,
		Strict:    s.Strict,
		Logger:    logger,
	}
}

// Table declares a single table dump and its field schema.
type Table struct {
	Name   string         `toml:"name"`
	File   string         `toml:"file"`
	Fields tabdump.Schema `toml:"fields"`
}

// Export configures table exports.
type Export struct {
	Formats []export.Format `toml:"formats"`
	Dir     string          `toml:"dir"`
	RunID   string          `toml:"run_id"`
}

// Options returns exporter options.
func (e *Export) Options(logger logrus.FieldLogger) *export.Options {
	return &export.Options{
		Formats: e.Formats,
		RunID:   e.RunID,
		Logger:  logger,
	}
}

// Mapping configures id to name mappings.
type Mapping struct {
	IncludeEmpty bool `toml:"include_empty"`
	Sort         bool `toml:"sort"`
}

// Options returns mapping options.
func (m *Mapping) Options() *mapping.Options {
	return &mapping.Options{
		IncludeEmpty: m.IncludeEmpty,
		Sort:         m.Sort,
	}
}

// Config is a complete run configuration.
type Config struct {
	Scan    Scan     `toml:"scan"`
	Export  Export   `toml:"export"`
	Mapping Mapping  `toml:"mapping"`
	Tables  []*Table `toml:"table"`
}

// Parse decodes and validates a configuration.
func Parse(data string) (*Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if keys := md.Undecoded(); len(keys) != 0 {
		return nil, errors.Errorf("config: unknown key %q", keys[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a configuration file. Relative table files and the export
// directory are resolved against the file's directory.
func Load(path string) (*Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return nil, errors.Wrapf(err, "config: decode %s", path)
	}
	if keys := md.Undecoded(); len(keys) != 0 {
		return nil, errors.Errorf("config: unknown key %q in %s", keys[0].String(), path)
	}

	base := filepath.Dir(path)
	for _, t := range c.Tables {
		t.File = resolve(base, t.File)
	}
	c.Export.Dir = resolve(base, c.Export.Dir)

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return &c, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Scan.Workers < 0 {
		return errors.New("config: scan.workers must not be negative")
	}
	if c.Scan.MinWindow < 0 || c.Scan.MaxWindow < 0 {
		return errors.New("config: scan windows must not be negative")
	}
	if c.Scan.MaxWindow != 0 && c.Scan.MaxWindow < c.Scan.MinWindow {
		return errors.New("config: scan.max_window must not be below scan.min_window")
	}
	if c.Scan.Deadline < 0 {
		return errors.New("config: scan.deadline must not be negative")
	}

	seen := make(map[string]struct{}, len(c.Tables))
	for i, t := range c.Tables {
		if t.Name == "" {
			return errors.Errorf("config: table #%d has no name", i+1)
		}
		if _, ok := seen[t.Name]; ok {
			return errors.Errorf("config: duplicate table %q", t.Name)
		}
		seen[t.Name] = struct{}{}

		if t.File == "" {
			return errors.Errorf("config: table %q has no file", t.Name)
		}
		if len(t.Fields) == 0 {
			return errors.Errorf("config: table %q has no fields", t.Name)
		}
		if err := t.Fields.Validate(); err != nil {
			return errors.Wrapf(err, "config: table %q", t.Name)
		}
	}
	return nil
}

// Table returns the table named name.
func (c *Config) Table(name string) (*Table, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

package main

import (
	"io/ioutil"

	"github.com/bsm/tabdump"
	"github.com/bsm/tabdump/config"
	"github.com/bsm/tabdump/export"
	"github.com/bsm/tabdump/mapping"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

func tableCommand(app *kingpin.Application, logger *logrus.Logger) (*kingpin.CmdClause, handler) {
	cmd := app.Command("table", "decode configured tables and export them")
	configPath := cmd.Flag("config", "configuration file").Short('c').Required().ExistingFile()
	names := cmd.Flag("table", "only process the named table (repeatable)").Short('t').Strings()
	formats := cmd.Flag("format", "export format (repeatable): json, xlsx, rowstore, leveldb, cdb, badger").Short('f').Strings()
	outDir := cmd.Flag("out", "export root directory").Short('o').String()
	runID := cmd.Flag("run-id", "run directory name").String()
	syncNames := cmd.Flag("sync-names", "copy Name into NameDesign before exporting").Bool()

	return cmd, func() int {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logger.WithError(err).Error("unable to load config")
			return 1
		}

		if len(*formats) != 0 {
			cfg.Export.Formats = cfg.Export.Formats[:0]
			for _, s := range *formats {
				f, err := export.ParseFormat(s)
				if err != nil {
					logger.WithError(err).Error("invalid format")
					return 1
				}
				cfg.Export.Formats = append(cfg.Export.Formats, f)
			}
		}
		if *outDir != "" {
			cfg.Export.Dir = *outDir
		}
		if *runID != "" {
			cfg.Export.RunID = *runID
		}
		if cfg.Export.Dir == "" {
			cfg.Export.Dir = "."
		}

		tables, err := selectTables(cfg, *names)
		if err != nil {
			logger.WithError(err).Error("invalid table selection")
			return 1
		}

		exp, err := export.NewExporter(cfg.Export.Dir, cfg.Export.Options(logger))
		if err != nil {
			logger.WithError(err).Error("unable to prepare export")
			return 1
		}

		loader := tabdump.NewLoader(&tabdump.LoaderOptions{Logger: logger})
		code := 0
		for _, t := range tables {
			if err := processTable(loader, exp, t, *syncNames, logger); err != nil {
				logger.WithError(err).WithField("table", t.Name).Error("table failed")
				code = 1
			}
		}
		return code
	}
}

func selectTables(cfg *config.Config, names []string) ([]*config.Table, error) {
	if len(names) == 0 {
		return cfg.Tables, nil
	}

	tables := make([]*config.Table, 0, len(names))
	for _, name := range names {
		t, ok := cfg.Table(name)
		if !ok {
			return nil, errors.Errorf("table %q is not configured", name)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func processTable(loader *tabdump.Loader, exp *export.Exporter, t *config.Table, syncNames bool, logger logrus.FieldLogger) error {
	buf, err := ioutil.ReadFile(t.File)
	if err != nil {
		return err
	}

	tbl, err := loader.Load(buf, t.Fields)
	if err != nil {
		return errors.Wrapf(err, "decode %s", t.File)
	}
	if syncNames {
		mapping.SyncNameDesign(tbl, nil)
	}

	logger.WithFields(logrus.Fields{
		"table":   t.Name,
		"size":    humanize.Bytes(uint64(len(buf))),
		"entries": tbl.Header.EntryCount,
		"rows":    tbl.Len(),
		"omitted": len(tbl.Report.Omitted),
	}).Info("decoded")

	return exp.Export(t.Name, t.Fields, tbl)
}

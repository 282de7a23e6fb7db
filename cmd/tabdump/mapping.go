package main

import (
	"github.com/bsm/tabdump/mapping"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

func mappingCommand(app *kingpin.Application, logger *logrus.Logger) (*kingpin.CmdClause, handler) {
	cmd := app.Command("mapping", "generate an id to name mapping from an exported JSON table")
	input := cmd.Arg("input", "exported JSON table").ExistingFile()
	fromLatest := cmd.Flag("from-latest", "use the table export of the newest run below --raw-root").Bool()
	rawRoot := cmd.Flag("raw-root", "export root searched by --from-latest").Default(".").String()
	table := cmd.Flag("table", "table name used by --from-latest").Default("MonsterTable").String()
	output := cmd.Flag("output", "mapping file to write").Short('o').Default("name_mapping.json").String()
	includeEmpty := cmd.Flag("include-empty", "keep entries without a name").Bool()
	sorted := cmd.Flag("sort", "sort entries by numeric id").Bool()

	return cmd, func() int {
		path := *input
		switch {
		case path != "":
		case *fromLatest:
			var err error
			if path, err = mapping.Latest(*rawRoot, *table); err != nil {
				logger.WithError(err).Error("unable to locate latest export")
				return 1
			}
		default:
			logger.Error("either an input file or --from-latest is required")
			return 1
		}

		m, err := mapping.ReadFile(path, &mapping.Options{
			IncludeEmpty: *includeEmpty,
			Sort:         *sorted,
		})
		if err != nil {
			logger.WithError(err).Error("unable to build mapping")
			return 1
		}
		if err := m.WriteFile(*output); err != nil {
			logger.WithError(err).Error("unable to write mapping")
			return 1
		}

		logger.WithFields(logrus.Fields{
			"input":   path,
			"output":  *output,
			"entries": len(m),
		}).Info("wrote mapping")
		return 0
	}
}

// Command tabdump decodes game data tables, recovers embedded protobuf
// schemas and exports the results.
package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

// handler runs a parsed command and returns the process exit code.
type handler func() int

type command func(*kingpin.Application, *logrus.Logger) (*kingpin.CmdClause, handler)

var commands = []command{
	tableCommand,
	protoCommand,
	mappingCommand,
	inspectCommand,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app := kingpin.New("tabdump", "Decodes game data tables and recovers embedded protobuf schemas.")
	app.HelpFlag.Short('h')

	logLevel := app.Flag("log-level", "log level (debug, info, warn, error)").Default("info").String()
	logJSON := app.Flag("log-json", "log as JSON").Bool()

	logger := logrus.New()
	logger.Out = os.Stderr

	handlers := make(map[string]handler, len(commands))
	for _, fn := range commands {
		cmd, h := fn(app, logger)
		handlers[cmd.FullCommand()] = h
	}

	input, err := app.Parse(args)
	if err != nil {
		app.Errorf("%s", err)
		return 1
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		app.Errorf("%s", err)
		return 1
	}
	logger.SetLevel(level)
	if *logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if h := handlers[strings.Split(input, " ")[0]]; h != nil {
		return h()
	}
	return 1
}

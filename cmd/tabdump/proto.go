package main

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/bsm/tabdump/protorender"
	"github.com/bsm/tabdump/protoscan"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"gopkg.in/alecthomas/kingpin.v2"
)

// exitNotFound is returned when no descriptor set could be recovered.
const exitNotFound = 2

func protoCommand(app *kingpin.Application, logger *logrus.Logger) (*kingpin.CmdClause, handler) {
	cmd := app.Command("proto", "recover an embedded descriptor set and render .proto files")
	input := cmd.Arg("input", "file to scan").Required().ExistingFile()
	outDir := cmd.Flag("out", "output directory").Short('o').Default(".").String()
	workers := cmd.Flag("workers", "brute-force workers (0: one per CPU)").Int()
	minWindow := cmd.Flag("min-window", "first brute-force window length").Default("32").Int()
	maxWindow := cmd.Flag("max-window", "brute-force window cap").Default("4000000").Int()
	deadline := cmd.Flag("deadline", "give up after this long (0: never)").Duration()
	strict := cmd.Flag("strict", "require hits to pass descriptor validation").Bool()
	descriptor := cmd.Flag("descriptor", "also write the recovered set in binary form").String()

	return cmd, func() int {
		data, err := ioutil.ReadFile(*input)
		if err != nil {
			logger.WithError(err).Error("unable to read input")
			return 1
		}

		ctx := context.Background()
		if *deadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *deadline)
			defer cancel()
		}

		start := time.Now()
		scanner := protoscan.New(&protoscan.Options{
			Workers:   *workers,
			MinWindow: *minWindow,
			MaxWindow: *maxWindow,
			Strict:    *strict,
			Logger:    logger,
		})
		rec, err := scanner.Scan(ctx, data)
		if errors.Is(err, protoscan.ErrNotFound) {
			logger.WithField("input", *input).Warn("no descriptor set found")
			return exitNotFound
		} else if err != nil {
			logger.WithError(err).Error("scan aborted")
			return 1
		}

		logger.WithFields(logrus.Fields{
			"stage":  rec.Stage,
			"files":  len(rec.Set.File),
			"offset": rec.Offset,
			"size":   humanize.Bytes(uint64(rec.Length)),
			"took":   time.Since(start).Round(time.Millisecond),
		}).Info("recovered descriptor set")

		if *descriptor != "" {
			raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(rec.Set)
			if err == nil {
				err = ioutil.WriteFile(*descriptor, raw, 0o644)
			}
			if err != nil {
				logger.WithError(err).Error("unable to write descriptor set")
				return 1
			}
		}

		for _, f := range protorender.Render(rec.Set) {
			if err := writeRendered(*outDir, f); err != nil {
				logger.WithError(err).WithField("path", f.Path).Error("unable to write file")
				return 1
			}
			logger.WithField("path", f.Path).Debug("rendered")
		}
		return 0
	}
}

func writeRendered(dir string, f protorender.File) error {
	path := filepath.Join(dir, filepath.FromSlash(f.Path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, f.Content, 0o644)
}

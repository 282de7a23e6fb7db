package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/bsm/tabdump/protoscan"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var metadataMagic = []byte{0xaf, 0x1b, 0xb1, 0xfa}

// Plausible IL2CPP metadata versions.
const (
	minMetadataVersion = 10
	maxMetadataVersion = 50
)

type inspection struct {
	Size     int
	Codec    string
	Magic    bool   // metadata magic at offset 0
	Version  uint32 // valid if Magic
	MagicAt  int    // first metadata magic, -1 if none
	Reversed int    // first byte-reversed metadata magic, -1 if none
}

// PlausibleVersion returns true if the metadata version is in range.
func (i *inspection) PlausibleVersion() bool {
	return i.Magic && i.Version >= minMetadataVersion && i.Version <= maxMetadataVersion
}

func inspect(data []byte) *inspection {
	in := &inspection{
		Size:     len(data),
		MagicAt:  bytes.Index(data, metadataMagic),
		Reversed: bytes.Index(data, []byte{metadataMagic[3], metadataMagic[2], metadataMagic[1], metadataMagic[0]}),
	}
	if c, ok := protoscan.Detect(data, protoscan.DefaultCodecs()); ok {
		in.Codec = c.Name
	}
	if len(data) >= 8 && in.MagicAt == 0 {
		in.Magic = true
		in.Version = binary.LittleEndian.Uint32(data[4:8])
	}
	return in
}

func (i *inspection) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "size:      %s (%d bytes)\n", humanize.Bytes(uint64(i.Size)), i.Size)
	if i.Codec != "" {
		fmt.Fprintf(&buf, "codec:     %s\n", i.Codec)
	} else {
		fmt.Fprintf(&buf, "codec:     none\n")
	}
	switch {
	case i.PlausibleVersion():
		fmt.Fprintf(&buf, "metadata:  yes, version %d\n", i.Version)
	case i.Magic:
		fmt.Fprintf(&buf, "metadata:  magic only, implausible version %d\n", i.Version)
	case i.MagicAt > 0:
		fmt.Fprintf(&buf, "metadata:  magic at offset %d\n", i.MagicAt)
	default:
		fmt.Fprintf(&buf, "metadata:  no\n")
	}
	if i.Reversed >= 0 {
		fmt.Fprintf(&buf, "reversed:  magic at offset %d\n", i.Reversed)
	}
	return buf.WriteTo(w)
}

func inspectCommand(app *kingpin.Application, logger *logrus.Logger) (*kingpin.CmdClause, handler) {
	cmd := app.Command("inspect", "report container and metadata headers of a file")
	input := cmd.Arg("file", "file to inspect").Required().ExistingFile()

	return cmd, func() int {
		data, err := ioutil.ReadFile(*input)
		if err != nil {
			logger.WithError(err).Error("unable to read file")
			return 1
		}
		if _, err := inspect(data).WriteTo(os.Stdout); err != nil {
			logger.WithError(err).Error("unable to write report")
			return 1
		}
		return 0
	}
}

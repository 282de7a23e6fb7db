// Package protoscan recovers an embedded protobuf FileDescriptorSet from an
// arbitrary byte blob that carries no framing telling where it starts.
//
// Stages are attempted in order and the first hit wins: the whole buffer,
// the decompressed buffer (when it starts with a known codec magic), each
// top-level length-delimited record, and finally an exhaustive brute-force
// search over every start offset and a growing set of window lengths.
// Brute-force hits must additionally pass a plausibility check.
package protoscan

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ErrNotFound is returned when no stage recovered a descriptor set.
var ErrNotFound = errors.New("protoscan: no descriptor set found")

// Default window bounds of the brute-force stage.
const (
	DefaultMinWindow = 32
	DefaultMaxWindow = 4000000
)

// Stage identifies how a descriptor set was recovered.
type Stage uint8

// Recovery stages, in the order they are attempted.
const (
	StageDirect Stage = iota + 1
	StageDecompressed
	StageStructural
	StageBruteForce
)

func (s Stage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StageDecompressed:
		return "decompressed"
	case StageStructural:
		return "structural"
	case StageBruteForce:
		return "brute-force"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// Recovery is a successfully recovered descriptor set. Offset and Length
// locate the parsed bytes within the scanned buffer, which is the
// decompressed buffer when Codec is set.
type Recovery struct {
	Set    *descriptorpb.FileDescriptorSet
	Stage  Stage
	Codec  string
	Offset int
	Length int
}

// --------------------------------------------------------------------

// Options define scanner specific options.
type Options struct {
	// Workers is the number of brute-force workers.
	// Default: runtime.GOMAXPROCS(0).
	Workers int

	// MinWindow is the first brute-force window length.
	// Default: 32.
	MinWindow int

	// MaxWindow caps the brute-force window length.
	// Default: 4,000,000.
	MaxWindow int

	// ChunkSize is the number of start offsets a worker claims at once.
	// Default: 4096.
	ChunkSize int

	// Codecs are the decompressors checked by magic, in order.
	// Default: DefaultCodecs().
	Codecs []Codec

	// MaxDecompressed caps the decompressed size.
	// Default: 256MiB.
	MaxDecompressed int64

	// Plausible decides whether a brute-force hit is accepted. The other
	// stages accept any set with at least one file.
	// Default: Plausible.
	Plausible func(*descriptorpb.FileDescriptorSet) bool

	// Strict additionally requires each hit to pass protodesc validation
	// with unresolvable dependencies allowed.
	Strict bool

	// Logger receives stage transitions.
	// Default: discard.
	Logger logrus.FieldLogger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Workers < 1 {
		oo.Workers = runtime.GOMAXPROCS(0)
	}
	if oo.MinWindow < 1 {
		oo.MinWindow = DefaultMinWindow
	}
	if oo.MaxWindow < 1 {
		oo.MaxWindow = DefaultMaxWindow
	}
	if oo.MaxWindow < oo.MinWindow {
		oo.MaxWindow = oo.MinWindow
	}
	if oo.ChunkSize < 1 {
		oo.ChunkSize = 4096
	}
	if oo.Codecs == nil {
		oo.Codecs = DefaultCodecs()
	}
	if oo.MaxDecompressed < 1 {
		oo.MaxDecompressed = 256 << 20
	}
	if oo.Plausible == nil {
		oo.Plausible = Plausible
	}
	if oo.Logger == nil {
		discard := logrus.New()
		discard.Out = ioutil.Discard
		oo.Logger = discard
	}

	return &oo
}

// Scanner recovers descriptor sets. It is safe for concurrent use.
type Scanner struct {
	o *Options
}

// New returns a scanner.
func New(o *Options) *Scanner {
	return &Scanner{o: o.norm()}
}

// Scan is a shortcut for New(nil).Scan(ctx, data).
func Scan(ctx context.Context, data []byte) (*Recovery, error) {
	return New(nil).Scan(ctx, data)
}

// Scan runs all stages against data. It returns ErrNotFound if nothing
// was recovered, or the context error if ctx ends during brute force.
func (s *Scanner) Scan(ctx context.Context, data []byte) (*Recovery, error) {
	log := s.o.Logger.WithField("size", humanize.Bytes(uint64(len(data))))

	log.Debug("trying direct parse")
	if set := s.parse(data, false); set != nil {
		return s.found(&Recovery{Set: set, Stage: StageDirect, Length: len(data)}), nil
	}

	var codec string
	if c, ok := s.detect(data); ok {
		plain, err := c.decode(data, s.o.MaxDecompressed)
		if err != nil {
			log.WithField("codec", c.Name).WithError(err).Debug("not decompressible, continuing on raw bytes")
		} else {
			log.WithFields(logrus.Fields{"codec": c.Name, "plain": humanize.Bytes(uint64(len(plain)))}).Debug("decompressed")
			if set := s.parse(plain, false); set != nil {
				return s.found(&Recovery{Set: set, Stage: StageDecompressed, Codec: c.Name, Length: len(plain)}), nil
			}
			data, codec = plain, c.Name
		}
	}

	log.Debug("trying structural scan")
	if rec := s.structural(data); rec != nil {
		rec.Codec = codec
		return s.found(rec), nil
	}

	log.Debug("trying brute force")
	rec, err := s.bruteForce(ctx, data)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		rec.Codec = codec
		return s.found(rec), nil
	}
	return nil, ErrNotFound
}

func (s *Scanner) found(rec *Recovery) *Recovery {
	s.o.Logger.WithFields(logrus.Fields{
		"stage":  rec.Stage,
		"codec":  rec.Codec,
		"offset": rec.Offset,
		"length": rec.Length,
		"files":  len(rec.Set.GetFile()),
	}).Info("descriptor set recovered")
	return rec
}

// parse returns a set only if p parses into at least one file and, when
// plausible is set, passes the plausibility check.
func (s *Scanner) parse(p []byte, plausible bool) *descriptorpb.FileDescriptorSet {
	set := new(descriptorpb.FileDescriptorSet)
	if err := proto.Unmarshal(p, set); err != nil {
		return nil
	}
	if len(set.GetFile()) == 0 {
		return nil
	}
	if plausible && !s.o.Plausible(set) {
		return nil
	}
	if s.o.Strict {
		if _, err := (protodesc.FileOptions{AllowUnresolvable: true}).NewFiles(set); err != nil {
			return nil
		}
	}
	return set
}

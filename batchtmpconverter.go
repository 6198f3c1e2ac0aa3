/*
Package batchtmpconverter converts isometric tile templates to and from
ordinary images.

Templates are found by extension among the input files and directories. When
converting images back into templates, each template is paired with the PNG
image of the same name, which is matched against the palette and packed back
into the tiles before the template is saved.
*/
package batchtmpconverter

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/Starkku/BatchTMPConverter/filelog"
	"github.com/Starkku/BatchTMPConverter/palette"
)

// ErrUnsupportedPixelFormat is returned for images that are not 8, 24 or 32
// bits per pixel
var ErrUnsupportedPixelFormat = errors.New("batchtmpconverter: unsupported pixel format")

// DefaultExtensions are the template extensions used when none are given
var DefaultExtensions = []string{".tem", ".sno", ".urb", ".des", ".ubn", ".lun"}

const (
	imageExtension  = ".png"
	zDataSuffix     = "_ZData"
	preprocessToken = "$FILENAME"
)

// Options configures a Converter
type Options struct {
	// Files is a list of template files and directories holding templates
	Files []string
	// Extensions overrides DefaultExtensions
	Extensions []string
	// Palette is the palette file used for all conversions
	Palette string

	ReplaceRadarColors    bool
	RadarColorMultiplier  float64
	ExtraDataBGOverride   bool
	FixZData              bool
	AccurateColorMatching bool
	SuppressBackups       bool

	// PreprocessCommands are run in order on a copy of each image before it
	// is converted
	PreprocessCommands []Command
	// ProcessedFilesLog is the modification log used to skip unchanged
	// files, if set
	ProcessedFilesLog string
}

// Summary counts what happened to each file during a run
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d processed, %d skipped, %d failed", s.Processed, s.Skipped, s.Failed)
}

// Converter runs batch conversions
type Converter struct {
	opts    Options
	palette *palette.Palette
	log     filelog.Log
	logger  *log.Logger
}

// New returns a Converter for opts. A palette that cannot be loaded is only
// logged as some operations can run without it.
func New(opts Options, logger *log.Logger) (*Converter, error) {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}

	c := &Converter{
		opts:   opts,
		logger: logger,
	}

	if opts.ProcessedFilesLog != "" {
		l, err := filelog.Open(opts.ProcessedFilesLog)
		if err != nil {
			return nil, err
		}
		c.log = l
	}

	if opts.Palette != "" {
		p, err := palette.Load(opts.Palette)
		if err != nil {
			logger.Printf("Unable to load palette: %v\n", err)
		} else {
			c.palette = p
		}
	}

	for _, cmd := range opts.PreprocessCommands {
		logger.Printf("Added preprocess command: %s\n", cmd)
	}

	return c, nil
}

// Close releases the modification log
func (c *Converter) Close() error {
	if c.log == nil {
		return nil
	}
	return c.log.Close()
}

// ParseList splits a comma-separated list, dropping empty entries
func ParseList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

// ParseRadarColorMultiplier parses s as a radar color multiplier. The sign is
// ignored and an empty string gives 1.
func ParseRadarColorMultiplier(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 1, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 1, err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1, fmt.Errorf("invalid multiplier %q", s)
	}

	return math.Abs(v), nil
}

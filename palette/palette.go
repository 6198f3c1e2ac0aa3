/*
Package palette implements the 256 color palette that template pixel data
indexes into.

The file is exactly 768 bytes; an RGB triplet for each of the 256 colors in
index order. Each channel is stored with 6 bits of precision so it is scaled
by four when loaded and divided by four when written back.

Matching an arbitrary RGB value to the nearest palette entry is an exhaustive
scan of all 256 colors so results are memoized per Palette, keyed by the
metric and the exact probe value. The cache is never evicted; it lives and
dies with the Palette it belongs to and can be dropped with ResetCache.
*/
package palette

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/Starkku/BatchTMPConverter/colormetric"
)

const (
	// NumColors is the number of entries in every palette
	NumColors = 256
	// FileSize is the exact size in bytes of a palette file
	FileSize = NumColors * 3

	channelShift = 2
)

// ErrFormat is returned when the palette data is the wrong size
var ErrFormat = errors.New("palette: not a valid palette file")

// Color is a single palette entry. It implements the color.Color interface.
type Color struct {
	Index   int
	R, G, B uint8
}

// Invalid is returned for any lookup outside of the palette
var Invalid = Color{Index: -1}

// Valid reports whether c refers to an actual palette entry
func (c Color) Valid() bool {
	return c.Index >= 0 && c.Index < NumColors
}

// SameRGB reports whether c and o have identical channel values regardless of
// their index.
func (c Color) SameRGB(o Color) bool {
	return c.R == o.R && c.G == o.G && c.B == o.B
}

// RGBA implements color.Color, palette entries are always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{c.R, c.G, c.B, 0xff}.RGBA()
}

// Metric selects the distance function used when matching colors
type Metric int

const (
	// Fast uses a weighted Euclidean distance in RGB space
	Fast Metric = iota
	// Accurate uses the CIEDE2000 color difference in Lab space
	Accurate
)

func (m Metric) String() string {
	switch m {
	case Accurate:
		return "ciede2000"
	default:
		return "euclidean"
	}
}

func (m Metric) distance(r1, g1, b1, r2, g2, b2 uint8) float64 {
	if m == Accurate {
		return colormetric.DeltaE2000RGB(r1, g1, b1, r2, g2, b2)
	}
	return colormetric.WeightedEuclidean(r1, g1, b1, r2, g2, b2)
}

type cacheKey struct {
	metric  Metric
	r, g, b uint8
}

// Palette is a loaded palette. It implements the encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler interfaces. It is safe for concurrent use once
// loaded.
type Palette struct {
	colors [NumColors]Color

	mu    sync.RWMutex
	cache map[cacheKey]uint8
}

// New returns a palette with every entry set to Invalid
func New() *Palette {
	p := &Palette{
		cache: make(map[cacheKey]uint8),
	}
	for i := range p.colors {
		p.colors[i] = Invalid
	}
	return p
}

// Load reads the palette file
func Load(file string) (*Palette, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	p := New()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return p, nil
}

// UnmarshalBinary decodes the palette from binary form. On error the palette
// is left unchanged.
func (p *Palette) UnmarshalBinary(b []byte) error {
	if len(b) != FileSize {
		return fmt.Errorf("%w: %d bytes, expected %d", ErrFormat, len(b), FileSize)
	}

	var colors [NumColors]Color
	for i := range colors {
		colors[i] = Color{
			Index: i,
			R:     b[i*3] << channelShift,
			G:     b[i*3+1] << channelShift,
			B:     b[i*3+2] << channelShift,
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.colors = colors
	p.cache = make(map[cacheKey]uint8)

	return nil
}

// MarshalBinary encodes the palette into binary form and returns the result
func (p *Palette) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, FileSize)
	for _, c := range p.colors {
		b = append(b, c.R>>channelShift, c.G>>channelShift, c.B>>channelShift)
	}
	return b, nil
}

// Color returns the entry at index or Invalid if index is out of range
func (p *Palette) Color(index int) Color {
	if index < 0 || index >= NumColors {
		return Invalid
	}
	return p.colors[index]
}

// Colors maps each index byte to its palette entry
func (p *Palette) Colors(indexes []byte) []Color {
	colors := make([]Color, len(indexes))
	for i, b := range indexes {
		colors[i] = p.Color(int(b))
	}
	return colors
}

// ColorPalette returns the palette as a color.Palette suitable for an
// image.Paletted
func (p *Palette) ColorPalette() color.Palette {
	cp := make(color.Palette, NumColors)
	for i, c := range p.colors {
		cp[i] = color.RGBA{c.R, c.G, c.B, 0xff}
	}
	return cp
}

// Match returns the palette entry nearest to the given color using metric m.
// Ties go to the lowest index.
func (p *Palette) Match(r, g, b uint8, m Metric) Color {
	key := cacheKey{m, r, g, b}

	p.mu.RLock()
	i, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return p.colors[i]
	}

	best, closest := 0, math.MaxFloat64
	for i, c := range p.colors {
		if d := m.distance(r, g, b, c.R, c.G, c.B); d < closest {
			best, closest = i, d
		}
	}

	p.mu.Lock()
	if p.cache == nil {
		p.cache = make(map[cacheKey]uint8)
	}
	p.cache[key] = uint8(best)
	p.mu.Unlock()

	return p.colors[best]
}

// CacheLen returns the number of memoized matches
func (p *Palette) CacheLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

// ResetCache forgets all memoized matches
func (p *Palette) ResetCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[cacheKey]uint8)
}

// Swatch renders the palette as a 16 by 16 grid of size pixel squares
func (p *Palette) Swatch(size int) *image.Paletted {
	if size <= 0 {
		size = 16
	}

	const columns = 16

	m := image.NewPaletted(image.Rect(0, 0, columns*size, NumColors/columns*size), p.ColorPalette())
	for y := 0; y < m.Rect.Dy(); y++ {
		for x := 0; x < m.Rect.Dx(); x++ {
			m.SetColorIndex(x, y, uint8(y/size*columns+x/size))
		}
	}

	return m
}

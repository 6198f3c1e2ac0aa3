package template

import (
	"fmt"
	"image"

	"github.com/Starkku/BatchTMPConverter/palette"
)

// Span is one scanline of a packed tile; Width pixels starting Offset pixels
// from the left edge of the tile.
type Span struct {
	Offset, Width int
}

// RowGeometry returns the scanlines of a packed isometric tile. The rows widen
// by four pixels at a time until the middle of the tile, then narrow again, so
// the spans add up to blockWidth*blockHeight/2 pixels.
func RowGeometry(blockWidth, blockHeight int) []Span {
	rows := make([]Span, 0, blockHeight)
	halfHeight := blockHeight / 2

	x, cx := blockWidth/2, 0
	for y := 0; y < blockHeight; y++ {
		if y < halfHeight {
			cx += 4
			x -= 2
		} else {
			cx -= 4
			x += 2
		}
		rows = append(rows, Span{Offset: x, Width: max(cx, 0)})
	}

	return rows
}

func spanPixels(rows []Span) int {
	var n int
	for _, row := range rows {
		n += row.Width
	}
	return n
}

// canvas maps template coordinates onto a flat buffer covering rect
type canvas struct {
	rect   image.Rectangle
	stride int
}

func newCanvas(r image.Rectangle) canvas {
	return canvas{rect: r, stride: r.Dx()}
}

func (c canvas) size() int {
	return c.rect.Dx() * c.rect.Dy()
}

// offset returns the buffer position of a run of width pixels starting at
// (x, y), which must lie entirely on one row of the canvas
func (c canvas) offset(x, y, width int) (int, error) {
	r := image.Rect(x, y, x+width, y+1)
	if !r.In(c.rect) {
		return 0, fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, r, c.rect)
	}
	return (y-c.rect.Min.Y)*c.stride + x - c.rect.Min.X, nil
}

// origin returns the top left corner of the tile raised by its height
func (t *Template) origin(tile *Tile) image.Point {
	return image.Pt(tile.X, tile.Y-int(tile.Height)*(t.BlockHeight/2))
}

// extraOrigin returns the top left corner of the extra data raised by the
// tile height
func (t *Template) extraOrigin(tile *Tile) image.Point {
	return image.Pt(tile.ExtraX, tile.ExtraY-int(tile.Height)*(t.BlockHeight/2))
}

func unset(v byte, extra, zData bool) bool {
	return (extra && v == 0) || (zData && (v == 0 || v == zDataUnset))
}

// UnpackOptions controls which blocks Unpack draws
type UnpackOptions struct {
	// IgnoreExtraData skips the extra images
	IgnoreExtraData bool
	// UseZData draws z-data instead of pixel data
	UseZData bool
}

// Unpack draws every tile into a buffer of palette indices covering r, one
// byte per pixel with rows of r.Dx() bytes. Tiles are drawn in cell order with
// each extra image drawn straight after its tile. Zero in extra data and zero
// or 205 in z-data are never drawn.
func (t *Template) Unpack(r image.Rectangle, opts UnpackOptions) ([]byte, error) {
	c := newCanvas(r)
	if r.Dx() < 0 || r.Dy() < 0 {
		return nil, fmt.Errorf("%w: %v", ErrSizeMismatch, r)
	}

	pix := make([]byte, c.size())
	rows := RowGeometry(t.BlockWidth, t.BlockHeight)

	for i, tile := range t.Tiles {
		if tile == nil {
			continue
		}

		if err := t.unpackTile(pix, c, rows, tile, opts); err != nil {
			return nil, fmt.Errorf("tile %d: %w", i, err)
		}
	}

	return pix, nil
}

func (t *Template) unpackTile(pix []byte, c canvas, rows []Span, tile *Tile, opts UnpackOptions) error {
	src := tile.Data
	if opts.UseZData {
		src = tile.ZData
	}

	if src != nil {
		if len(src) < spanPixels(rows) {
			return fmt.Errorf("%w: %d bytes of tile data", ErrFormat, len(src))
		}

		o := t.origin(tile)
		var i int
		for y, row := range rows {
			if row.Width == 0 {
				continue
			}
			p, err := c.offset(o.X+row.Offset, o.Y+y, row.Width)
			if err != nil {
				return err
			}
			for _, v := range src[i : i+row.Width] {
				if !unset(v, false, opts.UseZData) {
					pix[p] = v
				}
				p++
			}
			i += row.Width
		}
	}

	if opts.IgnoreExtraData || !tile.HasExtraData() {
		return nil
	}

	src = tile.ExtraData
	if opts.UseZData {
		src = tile.ExtraZData
	}

	if src == nil || tile.ExtraWidth <= 0 || tile.ExtraHeight <= 0 {
		return nil
	}

	if len(src) < tile.ExtraWidth*tile.ExtraHeight {
		return fmt.Errorf("%w: %d bytes of extra data", ErrFormat, len(src))
	}

	o := t.extraOrigin(tile)
	for y := 0; y < tile.ExtraHeight; y++ {
		p, err := c.offset(o.X, o.Y+y, tile.ExtraWidth)
		if err != nil {
			return err
		}
		for _, v := range src[y*tile.ExtraWidth : (y+1)*tile.ExtraWidth] {
			if !unset(v, true, opts.UseZData) {
				pix[p] = v
			}
			p++
		}
	}

	return nil
}

// PackOptions controls how Pack writes pixels back into the tiles
type PackOptions struct {
	// Background is the transparent palette entry, normally index 0
	Background palette.Color
	// EditRadarColors replaces the radar colors of every tile with the
	// average of the non-background pixels written to it
	EditRadarColors bool
	// RadarColorMultiplier scales the averaged radar color
	RadarColorMultiplier float64
	// ExtraDataBGOverride allows background pixels of extra images to be
	// replaced
	ExtraDataBGOverride bool
}

type radarStats struct {
	r, g, b, n int
}

func (s *radarStats) add(c, background palette.Color) {
	if c.SameRGB(background) {
		return
	}
	s.r += int(c.R)
	s.g += int(c.G)
	s.b += int(c.B)
	s.n++
}

func (s radarStats) color(multiplier float64) RadarColor {
	n := max(s.n, 1)
	scale := func(sum int) uint8 {
		v := float64(uint8(sum/n)) * multiplier
		switch {
		case !(v > 0):
			return 0
		case v > 255:
			return 255
		default:
			return uint8(v)
		}
	}
	return RadarColor{scale(s.r), scale(s.g), scale(s.b)}
}

// Pack copies the pixels in src, which covers r, back into the tiles using the
// same layout as Unpack. Every tile is checked against r first so on error the
// template is left untouched.
//
// Extra images are only written where they already hold something other than
// the background color, unless ExtraDataBGOverride is set. Wherever the base
// layer of the template is already opaque the extra image is set to the
// background color so it cannot cover terrain it did not cover before.
func (t *Template) Pack(src []palette.Color, r image.Rectangle, opts PackOptions) error {
	c := newCanvas(r)
	if r.Dx() < 0 || r.Dy() < 0 || len(src) != c.size() {
		return fmt.Errorf("%w: %d pixels for %v", ErrSizeMismatch, len(src), r)
	}

	rows := RowGeometry(t.BlockWidth, t.BlockHeight)

	// Nothing is written unless every tile fits
	for i, tile := range t.Tiles {
		if tile == nil {
			continue
		}

		if err := t.checkTile(c, rows, tile); err != nil {
			return fmt.Errorf("tile %d: %w", i, err)
		}
	}

	mask, err := t.Unpack(r, UnpackOptions{IgnoreExtraData: true})
	if err != nil {
		return err
	}

	for i, tile := range t.Tiles {
		if tile == nil {
			continue
		}

		if err := t.packTile(src, mask, c, rows, tile, opts); err != nil {
			return fmt.Errorf("tile %d: %w", i, err)
		}
	}

	return nil
}

// checkTile verifies that the blocks Pack writes to are complete and lie
// within the canvas
func (t *Template) checkTile(c canvas, rows []Span, tile *Tile) error {
	if len(tile.Data) < spanPixels(rows) {
		return fmt.Errorf("%w: %d bytes of tile data", ErrFormat, len(tile.Data))
	}

	o := t.origin(tile)
	for y, row := range rows {
		if row.Width == 0 {
			continue
		}
		if _, err := c.offset(o.X+row.Offset, o.Y+y, row.Width); err != nil {
			return err
		}
	}

	if !tile.HasExtraData() || tile.ExtraWidth <= 0 || tile.ExtraHeight <= 0 {
		return nil
	}

	if len(tile.ExtraData) < tile.ExtraWidth*tile.ExtraHeight {
		return fmt.Errorf("%w: %d bytes of extra data", ErrFormat, len(tile.ExtraData))
	}

	o = t.extraOrigin(tile)
	for y := 0; y < tile.ExtraHeight; y++ {
		if _, err := c.offset(o.X, o.Y+y, tile.ExtraWidth); err != nil {
			return err
		}
	}

	return nil
}

func (t *Template) packTile(src []palette.Color, mask []byte, c canvas, rows []Span, tile *Tile, opts PackOptions) error {
	if len(tile.Data) < spanPixels(rows) {
		return fmt.Errorf("%w: %d bytes of tile data", ErrFormat, len(tile.Data))
	}

	bg := opts.Background
	var stats radarStats

	o := t.origin(tile)
	var i int
	for y, row := range rows {
		if row.Width == 0 {
			continue
		}
		p, err := c.offset(o.X+row.Offset, o.Y+y, row.Width)
		if err != nil {
			return err
		}
		for _, color := range src[p : p+row.Width] {
			tile.Data[i] = byte(color.Index)
			stats.add(color, bg)
			i++
		}
	}

	if tile.HasExtraData() && tile.ExtraWidth > 0 && tile.ExtraHeight > 0 {
		if len(tile.ExtraData) < tile.ExtraWidth*tile.ExtraHeight {
			return fmt.Errorf("%w: %d bytes of extra data", ErrFormat, len(tile.ExtraData))
		}

		o := t.extraOrigin(tile)
		for y := 0; y < tile.ExtraHeight; y++ {
			p, err := c.offset(o.X, o.Y+y, tile.ExtraWidth)
			if err != nil {
				return err
			}
			dst := tile.ExtraData[y*tile.ExtraWidth : (y+1)*tile.ExtraWidth]
			for x := range dst {
				if !opts.ExtraDataBGOverride && int(dst[x]) == bg.Index {
					continue
				}

				color := src[p+x]
				if int(mask[p+x]) != bg.Index {
					color = bg
				}

				dst[x] = byte(color.Index)
				stats.add(color, bg)
			}
		}
	}

	if opts.EditRadarColors {
		radar := stats.color(opts.RadarColorMultiplier)
		tile.RadarLeft = radar
		tile.RadarRight = radar
	}

	return nil
}

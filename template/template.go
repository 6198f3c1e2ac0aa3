/*
Package template implements the isometric tile template format.

A template is a grid of Width by Height cells, each of which either holds a
tile or is empty. Every tile carries an isometric diamond of BlockWidth by
BlockHeight pixels packed into BlockWidth*BlockHeight/2 bytes of palette
indices, where BlockWidth is always twice BlockHeight. A tile may optionally
carry a parallel block of z-data, a rectangular "extra" overlay image of its
own size and position, and z-data for that overlay.

The file starts with a 16 byte header holding the grid and block dimensions as
little-endian 32-bit integers, followed by one 32-bit offset per cell. An
offset of zero marks an empty cell, anything else is the position of the tile
record within the file. A tile record is a 52 byte header followed by the
pixel data, then the optional blocks in the order z-data, extra data and extra
z-data, as indicated by the tile flags.
*/
package template

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	headerSize     = 16
	indexEntrySize = 4
	tileHeaderSize = 52

	// BackupExtension replaces the file extension of a template when the
	// previous version is kept on save
	BackupExtension = ".old"
)

var (
	// ErrFormat is returned when the template data is malformed
	ErrFormat = errors.New("template: invalid template data")
	// ErrSizeMismatch is returned when a pixel buffer does not match the
	// rectangle it is supposed to cover
	ErrSizeMismatch = errors.New("template: image size does not match template")
	// ErrOutOfBounds is returned when a tile does not fit inside the
	// rectangle being rasterized
	ErrOutOfBounds = errors.New("template: tile outside of image bounds")
)

// Template is a decoded template file. It implements the
// encoding.BinaryMarshaler and encoding.BinaryUnmarshaler interfaces.
type Template struct {
	Width       int
	Height      int
	BlockWidth  int
	BlockHeight int

	// Tiles holds Width*Height cells in file order, nil for an empty cell
	Tiles []*Tile
}

func (t *Template) blockSize() int {
	return t.BlockWidth * t.BlockHeight / 2
}

func validBlock(width, height int) bool {
	return width == height*2 && height >= 1 && width >= 1
}

// Load reads and decodes the template file
func Load(file string) (*Template, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	t := new(Template)
	if err := t.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return t, nil
}

// BackupPath returns the path the previous version of file is moved to
func BackupPath(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + BackupExtension
}

// Save encodes the template and writes it to file. Unless suppressBackup is
// set any existing file is first renamed using BackupPath, replacing any
// earlier backup. The template is fully encoded before anything on disk is
// touched.
func (t *Template) Save(file string, suppressBackup bool) error {
	b, err := t.MarshalBinary()
	if err != nil {
		return err
	}

	if !suppressBackup {
		switch _, err := os.Stat(file); {
		case err == nil:
			backup := BackupPath(file)
			if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := os.Rename(file, backup); err != nil {
				return err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}

	return os.WriteFile(file, b, 0644)
}

// Bounds returns the smallest rectangle enclosing every tile, including any
// extra data, with each tile raised by its height. If viewTrueHeight is set
// the bottom edge is extended to where a flat grid of this size would end.
func (t *Template) Bounds(viewTrueHeight bool) image.Rectangle {
	halfHeight := t.BlockHeight / 2

	var r image.Rectangle
	found := false
	for _, tile := range t.Tiles {
		if tile == nil {
			continue
		}

		tx, ty := tile.X, tile.Y
		tr, tb := tx+t.BlockWidth, ty+t.BlockHeight

		if tile.HasExtraData() {
			tx = min(tx, tile.ExtraX)
			ty = min(ty, tile.ExtraY)
			tr = max(tr, tile.ExtraX+tile.ExtraWidth)
			tb = max(tb, tile.ExtraY+tile.ExtraHeight)
		}

		shift := int(tile.Height) * halfHeight
		ty -= shift
		tb -= shift

		if !found {
			r = image.Rectangle{image.Pt(tx, ty), image.Pt(tr, tb)}
			found = true
			continue
		}

		r.Min.X = min(r.Min.X, tx)
		r.Min.Y = min(r.Min.Y, ty)
		r.Max.X = max(r.Max.X, tr)
		r.Max.Y = max(r.Max.Y, tb)
	}

	if viewTrueHeight {
		r.Max.Y = max(r.Max.Y, halfHeight*(t.Width+t.Height))
	}

	return r
}

// FixZData clears any extra z-data value above 31 and returns how many values
// were changed
func (t *Template) FixZData() int {
	var n int
	for _, tile := range t.Tiles {
		if tile == nil {
			continue
		}
		for i, v := range tile.ExtraZData {
			if v > maxZData {
				tile.ExtraZData[i] = 0
				n++
			}
		}
	}
	return n
}

package template

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

type encoder struct {
	t *Template

	index bytes.Buffer
	data  bytes.Buffer
}

func (e *encoder) writeBlock(b []byte, size int, name string) error {
	if len(b) != size {
		return fmt.Errorf("%w: %s is %d bytes, expected %d", ErrFormat, name, len(b), size)
	}
	_, err := e.data.Write(b)
	return err
}

func (e *encoder) writeTile(tile *Tile) error {
	h := tile.header()
	if err := binary.Write(&e.data, binary.LittleEndian, &h); err != nil {
		return err
	}

	if err := e.writeBlock(tile.Data, e.t.blockSize(), "tile data"); err != nil {
		return err
	}

	if tile.HasZData() {
		if err := e.writeBlock(tile.ZData, e.t.blockSize(), "z-data"); err != nil {
			return err
		}
	}

	if tile.HasExtraData() {
		if err := e.writeBlock(tile.ExtraData, tile.extraSize(), "extra data"); err != nil {
			return err
		}
	}

	if tile.extraZDataFlagged() && tile.ExtraZData != nil {
		if err := e.writeBlock(tile.ExtraZData, tile.extraSize(), "extra z-data"); err != nil {
			return err
		}
	}

	return nil
}

func (e *encoder) encode() ([]byte, error) {
	t := e.t

	if !validBlock(t.BlockWidth, t.BlockHeight) {
		return nil, fmt.Errorf("%w: block size %dx%d", ErrFormat, t.BlockWidth, t.BlockHeight)
	}

	if t.Width < 0 || t.Height < 0 || len(t.Tiles) != t.Width*t.Height {
		return nil, fmt.Errorf("%w: %d tiles for a %dx%d grid", ErrFormat, len(t.Tiles), t.Width, t.Height)
	}

	// Tile records start straight after the index
	base := headerSize + len(t.Tiles)*indexEntrySize

	for i, tile := range t.Tiles {
		var offset int32
		if tile != nil {
			start := base + e.data.Len()
			if start > math.MaxInt32 {
				return nil, fmt.Errorf("%w: tile %d offset overflows", ErrFormat, i)
			}
			offset = int32(start)

			if err := e.writeTile(tile); err != nil {
				return nil, fmt.Errorf("tile %d: %w", i, err)
			}
		}

		if err := binary.Write(&e.index, binary.LittleEndian, offset); err != nil {
			return nil, err
		}
	}

	b := bytes.NewBuffer(make([]byte, 0, base+e.data.Len()))

	h := header{
		Width:       int32(t.Width),
		Height:      int32(t.Height),
		BlockWidth:  int32(t.BlockWidth),
		BlockHeight: int32(t.BlockHeight),
	}
	if err := binary.Write(b, binary.LittleEndian, &h); err != nil {
		return nil, err
	}

	if _, err := e.index.WriteTo(b); err != nil {
		return nil, err
	}

	if _, err := e.data.WriteTo(b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// MarshalBinary encodes the template into binary form and returns the result.
// Tile records are laid out in cell order straight after the index.
func (t *Template) MarshalBinary() ([]byte, error) {
	e := encoder{t: t}
	return e.encode()
}

package template

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

type decoder struct {
	b []byte
	t *Template
}

func (d *decoder) readHeader(r io.Reader) error {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return err
	}

	if !validBlock(int(h.BlockWidth), int(h.BlockHeight)) {
		return fmt.Errorf("block size %dx%d", h.BlockWidth, h.BlockHeight)
	}

	if h.Width < 0 || h.Height < 0 {
		return fmt.Errorf("grid size %dx%d", h.Width, h.Height)
	}

	d.t.Width = int(h.Width)
	d.t.Height = int(h.Height)
	d.t.BlockWidth = int(h.BlockWidth)
	d.t.BlockHeight = int(h.BlockHeight)

	return nil
}

func (d *decoder) readIndex(r io.Reader) ([]int32, error) {
	n := int64(d.t.Width) * int64(d.t.Height)
	if headerSize+n*indexEntrySize > int64(len(d.b)) {
		return nil, io.ErrUnexpectedEOF
	}

	index := make([]int32, n)
	if err := binary.Read(r, binary.LittleEndian, index); err != nil {
		return nil, err
	}

	return index, nil
}

func (d *decoder) readBlock(r io.Reader, size int) ([]byte, error) {
	if size > len(d.b) {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, size)
	if err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *decoder) readTile(offset int32) (*Tile, error) {
	if offset < 0 || int(offset) >= len(d.b) {
		return nil, fmt.Errorf("offset %d outside of file", offset)
	}

	r := bytes.NewReader(d.b[offset:])

	var h tileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	tile := newTile(h)

	var err error
	if tile.Data, err = d.readBlock(r, d.t.blockSize()); err != nil {
		return nil, err
	}

	if tile.HasZData() {
		if tile.ZData, err = d.readBlock(r, d.t.blockSize()); err != nil {
			return nil, err
		}
	}

	if tile.HasExtraData() {
		if tile.ExtraData, err = d.readBlock(r, tile.extraSize()); err != nil {
			return nil, err
		}
	}

	// Older tools leave the flags set without ever writing the block
	if tile.extraZDataFlagged() && int(tile.ExtraZDataOffset) < len(d.b) {
		if tile.ExtraZData, err = d.readBlock(r, tile.extraSize()); err != nil {
			return nil, err
		}
	}

	return tile, nil
}

func (d *decoder) decode() error {
	r := bytes.NewReader(d.b)

	if err := d.readHeader(r); err != nil {
		return err
	}

	index, err := d.readIndex(r)
	if err != nil {
		return err
	}

	d.t.Tiles = make([]*Tile, len(index))
	for i, offset := range index {
		if offset == 0 {
			continue
		}

		tile, err := d.readTile(offset)
		if err != nil {
			return fmt.Errorf("tile %d: %w", i, err)
		}
		d.t.Tiles[i] = tile
	}

	return nil
}

// UnmarshalBinary decodes the template from binary form
func (t *Template) UnmarshalBinary(b []byte) error {
	var decoded Template

	d := decoder{b: b, t: &decoded}
	if err := d.decode(); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}

	*t = decoded

	return nil
}

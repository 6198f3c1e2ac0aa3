package template

// Flags marks which optional blocks a tile carries
type Flags uint32

const (
	FlagExtraData Flags = 1 << iota
	FlagZData
	FlagDamagedData
)

const (
	// z-data value that is never drawn
	zDataUnset = 205
	// anything higher in extra z-data is cleared by FixZData
	maxZData = 31
)

// RadarColor is the color a tile is shown as on the minimap
type RadarColor struct {
	R, G, B uint8
}

// Tile is a single template cell.
//
// The three data offsets are carried over from the file as-is. Which blocks
// are present is decided by Flags alone.
type Tile struct {
	X, Y int

	ExtraDataOffset  int32
	ZDataOffset      int32
	ExtraZDataOffset int32

	ExtraX, ExtraY          int
	ExtraWidth, ExtraHeight int
	Flags                   Flags
	Height                  uint8
	TerrainType             uint8
	RampType                uint8
	RadarLeft, RadarRight   RadarColor
	Data, ZData             []byte
	ExtraData, ExtraZData   []byte

	padding [3]byte
}

// HasExtraData reports whether the tile carries an extra image
func (t *Tile) HasExtraData() bool {
	return t.Flags&FlagExtraData != 0
}

// HasZData reports whether the tile carries z-data
func (t *Tile) HasZData() bool {
	return t.Flags&FlagZData != 0
}

// HasDamagedData reports whether the tile is flagged as damaged
func (t *Tile) HasDamagedData() bool {
	return t.Flags&FlagDamagedData != 0
}

// extraSize is the size in bytes of both the extra data and extra z-data
func (t *Tile) extraSize() int {
	n := t.ExtraWidth * t.ExtraHeight
	if n < 0 {
		return -n
	}
	return n
}

// extraZDataFlagged reports whether the flags and legacy offset allow for an
// extra z-data block
func (t *Tile) extraZDataFlagged() bool {
	return t.HasZData() && t.HasExtraData() && t.ExtraZDataOffset > 0
}

func (t *Tile) header() tileHeader {
	return tileHeader{
		X:                int32(t.X),
		Y:                int32(t.Y),
		ExtraDataOffset:  t.ExtraDataOffset,
		ZDataOffset:      t.ZDataOffset,
		ExtraZDataOffset: t.ExtraZDataOffset,
		ExtraX:           int32(t.ExtraX),
		ExtraY:           int32(t.ExtraY),
		ExtraWidth:       int32(t.ExtraWidth),
		ExtraHeight:      int32(t.ExtraHeight),
		Flags:            uint32(t.Flags),
		Height:           t.Height,
		TerrainType:      t.TerrainType,
		RampType:         t.RampType,
		RadarLeft:        [3]uint8{t.RadarLeft.R, t.RadarLeft.G, t.RadarLeft.B},
		RadarRight:       [3]uint8{t.RadarRight.R, t.RadarRight.G, t.RadarRight.B},
		Padding:          t.padding,
	}
}

func newTile(h tileHeader) *Tile {
	return &Tile{
		X:                int(h.X),
		Y:                int(h.Y),
		ExtraDataOffset:  h.ExtraDataOffset,
		ZDataOffset:      h.ZDataOffset,
		ExtraZDataOffset: h.ExtraZDataOffset,
		ExtraX:           int(h.ExtraX),
		ExtraY:           int(h.ExtraY),
		ExtraWidth:       int(h.ExtraWidth),
		ExtraHeight:      int(h.ExtraHeight),
		Flags:            Flags(h.Flags),
		Height:           h.Height,
		TerrainType:      h.TerrainType,
		RampType:         h.RampType,
		RadarLeft:        RadarColor{h.RadarLeft[0], h.RadarLeft[1], h.RadarLeft[2]},
		RadarRight:       RadarColor{h.RadarRight[0], h.RadarRight[1], h.RadarRight[2]},
		padding:          h.Padding,
	}
}

type tileHeader struct {
	X, Y             int32
	ExtraDataOffset  int32
	ZDataOffset      int32
	ExtraZDataOffset int32
	ExtraX, ExtraY   int32
	ExtraWidth       int32
	ExtraHeight      int32
	Flags            uint32
	Height           uint8
	TerrainType      uint8
	RampType         uint8
	RadarLeft        [3]uint8
	RadarRight       [3]uint8
	Padding          [3]uint8
}

type header struct {
	Width, Height           int32
	BlockWidth, BlockHeight int32
}

package batchtmpconverter

import (
	"context"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/Starkku/BatchTMPConverter/palette"
	"github.com/Starkku/BatchTMPConverter/template"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = log.New(io.Discard, "", 0)

func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// writePalette writes a palette where entry i is a gray of (i % 64) * 4
func writePalette(t *testing.T, dir string) string {
	t.Helper()

	b := make([]byte, palette.FileSize)
	for i := 0; i < palette.NumColors; i++ {
		v := byte(i % 64)
		b[i*3], b[i*3+1], b[i*3+2] = v, v, v
	}

	file := filepath.Join(dir, "iso.pal")
	require.NoError(t, os.WriteFile(file, b, 0644))
	return file
}

func writeTemplate(t *testing.T, file string, tiles ...*template.Tile) {
	t.Helper()

	tmp := &template.Template{
		Width:       len(tiles),
		Height:      1,
		BlockWidth:  8,
		BlockHeight: 4,
		Tiles:       tiles,
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, tmp.Save(file, true))
}

func loadTile(t *testing.T, file string) *template.Tile {
	t.Helper()

	tmp, err := template.Load(file)
	require.NoError(t, err)
	require.Len(t, tmp.Tiles, 1)
	return tmp.Tiles[0]
}

func newConverter(t *testing.T, opts Options) *Converter {
	t.Helper()

	c, err := New(opts, discard)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
	})
	return c
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, ParseList("a, b c,,d,"))
	assert.Nil(t, ParseList(""))
}

func TestParseRadarColorMultiplier(t *testing.T) {
	tables := []struct {
		input string
		want  float64
		err   bool
	}{
		{"", 1, false},
		{"2.5", 2.5, false},
		{"-3", 3, false},
		{" 0.5 ", 0.5, false},
		{"abc", 1, true},
		{"NaN", 1, true},
		{"-Inf", 1, true},
	}

	for _, table := range tables {
		v, err := ParseRadarColorMultiplier(table.input)
		if table.err {
			assert.Error(t, err, table.input)
		} else {
			assert.NoError(t, err, table.input)
		}
		assert.Equal(t, table.want, v, table.input)
	}
}

func TestParseCommands(t *testing.T) {
	assert.Equal(t, []Command{
		{Executable: "convert", Arguments: "$FILENAME -flip $FILENAME"},
		{Executable: "optipng"},
		{Executable: "x"},
	}, ParseCommands("convert;$FILENAME -flip $FILENAME,,optipng,;x"))

	assert.Nil(t, ParseCommands(""))
}

func TestCommandArguments(t *testing.T) {
	c := Command{Executable: "convert", Arguments: "-i $FILENAME -o $FILENAME.bak"}
	cmd, err := c.cmd(context.Background(), "/tmp/my image.png.preproc")
	require.NoError(t, err)
	assert.Equal(t, []string{"convert", "-i", "/tmp/my image.png.preproc", "-o", "/tmp/my image.png.preproc.bak"}, cmd.Args)
	assert.Equal(t, "convert -i $FILENAME -o $FILENAME.bak", c.String())
}

func TestCommandQuotedArguments(t *testing.T) {
	tables := []struct {
		arguments string
		want      []string
	}{
		{`-comment "two words" $FILENAME`, []string{"convert", "-comment", "two words", "/tmp/my image.png.preproc"}},
		{`-label 'a b c' -- $FILENAME`, []string{"convert", "-label", "a b c", "--", "/tmp/my image.png.preproc"}},
		{`"$FILENAME" out\ file.png`, []string{"convert", "/tmp/my image.png.preproc", "out file.png"}},
	}

	for _, table := range tables {
		t.Run(table.arguments, func(t *testing.T) {
			c := Command{Executable: "convert", Arguments: table.arguments}
			cmd, err := c.cmd(context.Background(), "/tmp/my image.png.preproc")
			require.NoError(t, err)
			assert.Equal(t, table.want, cmd.Args)
		})
	}

	c := Command{Executable: "convert", Arguments: `-comment "unterminated`}
	_, err := c.cmd(context.Background(), "/tmp/image.png")
	assert.Error(t, err)
}

func TestTrimStride(t *testing.T) {
	pix := []byte{
		1, 2, 3, 0, 0,
		4, 5, 6, 0, 0,
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, trimStride(pix, 0, 5, 3, 2))
	assert.Equal(t, []byte{2, 3, 5, 6}, trimStride(pix, 1, 5, 2, 2))
	assert.Equal(t, pix, trimStride(pix, 0, 5, 5, 2))
}

func TestLockPixels(t *testing.T) {
	paletted := image.NewPaletted(image.Rect(0, 0, 4, 2), color.Palette{color.Black, color.White})
	copy(paletted.Pix, []byte{0, 1, 1, 0, 1, 0, 0, 1})

	p, err := lockPixels(paletted.SubImage(image.Rect(1, 0, 3, 2)))
	require.NoError(t, err)
	assert.Equal(t, &pixels{width: 2, height: 2, depth: 8, pix: []byte{1, 1, 0, 0}}, p)

	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgba.SetRGBA(0, 0, color.RGBA{10, 20, 30, 255})
	p, err = lockPixels(rgba)
	require.NoError(t, err)
	assert.Equal(t, &pixels{width: 1, height: 1, depth: 32, pix: []byte{10, 20, 30, 255}}, p)

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.Pix[0], gray.Pix[1] = 7, 200
	p, err = lockPixels(gray)
	require.NoError(t, err)
	assert.Equal(t, &pixels{width: 2, height: 1, depth: 24, pix: []byte{7, 7, 7, 200, 200, 200}}, p)

	_, err = lockPixels(image.NewCMYK(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrUnsupportedPixelFormat)
}

func TestLockPixelsDeepColor(t *testing.T) {
	rgba64 := image.NewRGBA64(image.Rect(0, 0, 2, 1))
	rgba64.SetRGBA64(0, 0, color.RGBA64{0x1234, 0x5678, 0x9abc, 0xffff})
	rgba64.SetRGBA64(1, 0, color.RGBA64{0xffff, 0, 0x00ff, 0xffff})

	p, err := lockPixels(rgba64)
	require.NoError(t, err)
	assert.Equal(t, &pixels{width: 2, height: 1, depth: 32, pix: []byte{0x12, 0x56, 0x9a, 0xff, 0xff, 0, 0, 0xff}}, p)

	nrgba64 := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	nrgba64.SetNRGBA64(0, 0, color.NRGBA64{0x8000, 0x4000, 0x2000, 0xffff})

	p, err = lockPixels(nrgba64)
	require.NoError(t, err)
	assert.Equal(t, &pixels{width: 1, height: 1, depth: 32, pix: []byte{0x80, 0x40, 0x20, 0xff}}, p)

	gray16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	gray16.SetGray16(0, 0, color.Gray16{0x4000})

	p, err = lockPixels(gray16)
	require.NoError(t, err)
	assert.Equal(t, &pixels{width: 1, height: 1, depth: 24, pix: []byte{0x40, 0x40, 0x40}}, p)
}

func TestOutputImages(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clear.tem")

	z := seq(16, 1)
	z[15] = 40
	writeTemplate(t, file, &template.Tile{
		Flags: template.FlagZData,
		Data:  seq(16, 1),
		ZData: z,
	})

	c := newConverter(t, Options{
		Files:   []string{dir},
		Palette: writePalette(t, dir),
	})

	s, err := c.OutputImages(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1}, s)

	img, err := imgio.Open(filepath.Join(dir, "clear.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgbaAt(img, 0, 0))
	assert.Equal(t, color.RGBA{4, 4, 4, 255}, rgbaAt(img, 2, 0))
	assert.Equal(t, color.RGBA{48, 48, 48, 255}, rgbaAt(img, 7, 1))

	s, err = c.OutputImages(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1}, s)

	img, err = imgio.Open(filepath.Join(dir, "clear_ZData.png"))
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgbaAt(img, 0, 0))
	assert.Equal(t, color.RGBA{8, 8, 8, 255}, rgbaAt(img, 2, 0))
	assert.Equal(t, color.RGBA{40, 40, 40, 255}, rgbaAt(img, 0, 1))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(img, 5, 2))
}

func TestOutputImagesLog(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, filepath.Join(dir, "clear.tem"), &template.Tile{Data: seq(16, 1)})

	opts := Options{
		Files:             []string{dir},
		Palette:           writePalette(t, dir),
		ProcessedFilesLog: filepath.Join(dir, "processed.txt"),
	}

	s, err := newConverter(t, opts).OutputImages(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1}, s)

	s, err = newConverter(t, opts).OutputImages(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, s)
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()

	for _, file := range []string{
		filepath.Join(dir, "a.tem"),
		filepath.Join(dir, ".hidden.tem"),
		filepath.Join(dir, "sub", "c.tem"),
		filepath.Join(other, "d.sno"),
	} {
		writeTemplate(t, file, &template.Tile{Data: seq(16, 1)})
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0644))

	c := newConverter(t, Options{
		Files: []string{
			dir,
			filepath.Join(other, "d.sno"),
			filepath.Join(other, "missing.tem"),
		},
		Palette: writePalette(t, dir),
	})

	s, err := c.OutputImages(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 2}, s)

	assert.FileExists(t, filepath.Join(dir, "a.png"))
	assert.FileExists(t, filepath.Join(other, "d.png"))
	assert.NoFileExists(t, filepath.Join(dir, ".hidden.png"))
	assert.NoFileExists(t, filepath.Join(dir, "sub", "c.png"))
}

func TestProcessTilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clear.tem")
	pal := writePalette(t, dir)

	writeTemplate(t, file, &template.Tile{Data: seq(16, 1)})

	s, err := newConverter(t, Options{Files: []string{dir}, Palette: pal}).OutputImages(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 1}, s)

	writeTemplate(t, file, &template.Tile{Data: make([]byte, 16)})

	for _, accurate := range []bool{false, true} {
		c := newConverter(t, Options{
			Files:                 []string{dir},
			Palette:               pal,
			ReplaceRadarColors:    true,
			RadarColorMultiplier:  1,
			AccurateColorMatching: accurate,
		})

		s, err = c.ProcessTiles(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Summary{Processed: 1}, s)

		tile := loadTile(t, file)
		assert.Equal(t, seq(16, 1), tile.Data)
		assert.Equal(t, template.RadarColor{R: 34, G: 34, B: 34}, tile.RadarLeft)
		assert.Equal(t, template.RadarColor{R: 34, G: 34, B: 34}, tile.RadarRight)
	}

	assert.FileExists(t, template.BackupPath(file))
}

func TestProcessTilesPaletted(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clear.tem")
	pal := writePalette(t, dir)

	writeTemplate(t, file, &template.Tile{Data: seq(16, 1)})

	p, err := palette.Load(pal)
	require.NoError(t, err)

	// Index 70 has the same color as index 6 but is kept as is
	img := image.NewPaletted(image.Rect(0, 0, 8, 4), p.ColorPalette())
	for i := range img.Pix {
		img.Pix[i] = 70
	}
	require.NoError(t, imgio.Save(filepath.Join(dir, "clear.png"), img, imgio.PNGEncoder()))

	s, err := newConverter(t, Options{
		Files:           []string{dir},
		Palette:         pal,
		SuppressBackups: true,
	}).ProcessTiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1}, s)

	for _, v := range loadTile(t, file).Data {
		assert.Equal(t, byte(70), v)
	}
	assert.NoFileExists(t, template.BackupPath(file))
}

func TestProcessTilesSkipAndFail(t *testing.T) {
	dir := t.TempDir()

	writeTemplate(t, filepath.Join(dir, "noimage.tem"), &template.Tile{Data: seq(16, 1)})
	writeTemplate(t, filepath.Join(dir, "wrongsize.tem"), &template.Tile{Data: seq(16, 1)})
	require.NoError(t, imgio.Save(filepath.Join(dir, "wrongsize.png"), image.NewRGBA(image.Rect(0, 0, 10, 4)), imgio.PNGEncoder()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.tem"), []byte("not a template"), 0644))

	s, err := newConverter(t, Options{
		Files:   []string{dir},
		Palette: writePalette(t, dir),
	}).ProcessTiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1, Failed: 2}, s)
}

func TestProcessTilesLog(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clear.tem")

	writeTemplate(t, file, &template.Tile{Data: seq(16, 1)})
	require.NoError(t, imgio.Save(filepath.Join(dir, "clear.png"), image.NewRGBA(image.Rect(0, 0, 8, 4)), imgio.PNGEncoder()))

	opts := Options{
		Files:             []string{dir},
		Palette:           writePalette(t, dir),
		ProcessedFilesLog: filepath.Join(dir, "processed.db"),
	}

	s, err := newConverter(t, opts).ProcessTiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1}, s)
	assert.Equal(t, make([]byte, 16), loadTile(t, file).Data)

	s, err = newConverter(t, opts).ProcessTiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, s)
}

func TestProcessTilesFixZData(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clear.tem")

	newTemplate := func(t *testing.T) {
		writeTemplate(t, file, &template.Tile{
			Flags:            template.FlagZData | template.FlagExtraData,
			Data:             seq(16, 1),
			ZData:            seq(16, 1),
			ExtraWidth:       2,
			ExtraHeight:      1,
			ExtraZDataOffset: 1,
			ExtraData:        []byte{1, 2},
			ExtraZData:       []byte{40, 5},
		})
	}

	tables := []struct {
		name    string
		palette bool
	}{
		{"without palette", false},
		{"without image", true},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			newTemplate(t)

			opts := Options{
				Files:           []string{dir},
				FixZData:        true,
				SuppressBackups: true,
			}
			if table.palette {
				opts.Palette = writePalette(t, t.TempDir())
			}

			s, err := newConverter(t, opts).ProcessTiles(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Summary{Processed: 1}, s)

			tile := loadTile(t, file)
			assert.Equal(t, []byte{0, 5}, tile.ExtraZData)
			assert.Equal(t, seq(16, 1), tile.Data)
		})
	}
}

func TestNoPalette(t *testing.T) {
	dir := t.TempDir()

	c := newConverter(t, Options{
		Files:   []string{dir},
		Palette: filepath.Join(dir, "missing.pal"),
	})

	_, err := c.ProcessTiles(context.Background())
	assert.ErrorIs(t, err, ErrNoPalette)

	_, err = c.OutputImages(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoPalette)

	s, err := c.OutputImages(context.Background(), true)
	assert.NoError(t, err)
	assert.Equal(t, Summary{}, s)
}

func TestPreprocess(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	tables := []struct {
		name     string
		commands []Command
		want     Summary
	}{
		{"success", []Command{{Executable: "true", Arguments: "$FILENAME"}}, Summary{Processed: 1}},
		{"failure", []Command{{Executable: "true"}, {Executable: "false"}}, Summary{Failed: 1}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			dir := t.TempDir()
			img := filepath.Join(dir, "clear.png")

			writeTemplate(t, filepath.Join(dir, "clear.tem"), &template.Tile{Data: seq(16, 1)})
			require.NoError(t, imgio.Save(img, newBlank(8, 4), imgio.PNGEncoder()))

			s, err := newConverter(t, Options{
				Files:              []string{dir},
				Palette:            writePalette(t, dir),
				PreprocessCommands: table.commands,
			}).ProcessTiles(context.Background())
			require.NoError(t, err)
			assert.Equal(t, table.want, s)

			assert.FileExists(t, img)
			assert.NoFileExists(t, img+preprocessExtension)
		})
	}
}

func newBlank(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

package batchtmpconverter

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/Starkku/BatchTMPConverter/palette"
	"github.com/anthonynsimon/bild/imgio"
	_ "golang.org/x/image/bmp"
)

// pixels is a locked image; rows of width*depth/8 bytes with no padding. An 8
// bit image holds palette indices, 24 bit holds R, G, B and 32 bit holds R,
// G, B, A.
type pixels struct {
	width, height int
	depth         int
	pix           []byte
}

// trimStride copies height rows of rowLength bytes out of a buffer whose rows
// are stride bytes apart, starting at offset
func trimStride(pix []byte, offset, stride, rowLength, height int) []byte {
	if offset == 0 && stride == rowLength {
		return pix[:rowLength*height]
	}

	b := make([]byte, rowLength*height)
	for y := 0; y < height; y++ {
		start := offset + y*stride
		copy(b[y*rowLength:(y+1)*rowLength], pix[start:start+rowLength])
	}
	return b
}

// lockPixels flattens img into pixels. Paletted images stay 8 bit indices.
// RGBA and NRGBA images are copied as 32 bit, and 16 bit RGBA64 and NRGBA64
// images are reduced to 8 bits per channel through color.NRGBAModel. Gray,
// Gray16 and YCbCr images become 24 bit RGB and are matched against the
// palette like any other color image. Anything else is
// ErrUnsupportedPixelFormat.
func lockPixels(img image.Image) (*pixels, error) {
	r := img.Bounds()
	p := &pixels{width: r.Dx(), height: r.Dy()}

	switch m := img.(type) {
	case *image.Paletted:
		p.depth = 8
		p.pix = trimStride(m.Pix, m.PixOffset(r.Min.X, r.Min.Y), m.Stride, p.width, p.height)
	case *image.RGBA:
		p.depth = 32
		p.pix = trimStride(m.Pix, m.PixOffset(r.Min.X, r.Min.Y), m.Stride, p.width*4, p.height)
	case *image.NRGBA:
		p.depth = 32
		p.pix = trimStride(m.Pix, m.PixOffset(r.Min.X, r.Min.Y), m.Stride, p.width*4, p.height)
	case *image.RGBA64, *image.NRGBA64:
		p.depth = 32
		p.pix = make([]byte, 0, p.width*p.height*4)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
				p.pix = append(p.pix, c.R, c.G, c.B, c.A)
			}
		}
	case *image.Gray, *image.Gray16, *image.YCbCr:
		p.depth = 24
		p.pix = make([]byte, 0, p.width*p.height*3)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				c := color.RGBAModel.Convert(m.At(x, y)).(color.RGBA)
				p.pix = append(p.pix, c.R, c.G, c.B)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPixelFormat, img)
	}

	return p, nil
}

func (c *Converter) metric() palette.Metric {
	if c.opts.AccurateColorMatching {
		return palette.Accurate
	}
	return palette.Fast
}

// colors resolves every pixel to a palette entry. Indexed images are taken as
// indices into the palette as-is, anything else is matched to the nearest
// color.
func (c *Converter) colors(p *pixels) ([]palette.Color, error) {
	if p.depth == 8 {
		return c.palette.Colors(p.pix), nil
	}

	if p.depth != 24 && p.depth != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedPixelFormat, p.depth)
	}

	n := p.depth / 8
	m := c.metric()
	colors := make([]palette.Color, 0, len(p.pix)/n)
	for i := 0; i+n <= len(p.pix); i += n {
		colors = append(colors, c.palette.Match(p.pix[i], p.pix[i+1], p.pix[i+2], m))
	}
	return colors, nil
}

func openImage(file string) (*pixels, error) {
	img, err := imgio.Open(file)
	if err != nil {
		return nil, err
	}
	return lockPixels(img)
}

// indexedImage renders palette indices as an opaque RGB image
func (c *Converter) indexedImage(pix []byte, r image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for i, v := range pix {
		e := c.palette.Color(int(v))
		img.Pix[i*4] = e.R
		img.Pix[i*4+1] = e.G
		img.Pix[i*4+2] = e.B
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// zDataImage renders z-data as grayscale, scaling the 0-31 range to 0-248
func zDataImage(pix []byte, r image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for i, v := range pix {
		img.Pix[i] = uint8(min(int(v)<<3, 0xff))
	}
	return img
}

func saveImage(file string, img image.Image) error {
	return imgio.Save(file, img, imgio.PNGEncoder())
}

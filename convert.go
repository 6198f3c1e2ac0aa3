package batchtmpconverter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Starkku/BatchTMPConverter/template"
)

// ErrNoPalette is returned when a conversion needs a palette but none could be
// loaded
var ErrNoPalette = errors.New("batchtmpconverter: no palette loaded")

func replaceExtension(file, suffix string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + suffix
}

func (c *Converter) updateLog(file string) {
	if c.log == nil {
		return
	}

	added, err := c.log.UpdateOrAddFile(file)
	switch {
	case err != nil:
		c.logger.Printf("Unable to update \"%s\" in file log: %v\n", file, err)
	case added:
		c.logger.Printf("Added timestamp for \"%s\" to file log\n", file)
	default:
		c.logger.Printf("Updated timestamp for \"%s\" in file log\n", file)
	}
}

// ProcessTiles converts the image paired with each template back into the
// template. If FixZData is set every template is z-data fixed and saved even
// when there is no image or palette to convert with.
func (c *Converter) ProcessTiles(ctx context.Context) (Summary, error) {
	if c.palette == nil && !c.opts.FixZData {
		return Summary{}, ErrNoPalette
	}
	return c.run(ctx, c.processTile)
}

func (c *Converter) processTile(ctx context.Context, file string) (outcome, error) {
	t, err := template.Load(file)
	if err != nil {
		return failed, err
	}

	image := replaceExtension(file, imageExtension)
	convert := c.palette != nil

	if convert {
		switch _, err := os.Stat(image); {
		case errors.Is(err, fs.ErrNotExist):
			if !c.opts.FixZData {
				c.logger.Printf("Image \"%s\" does not exist, skipping\n", image)
				return skipped, nil
			}
			convert = false
		case err != nil:
			return failed, err
		case c.log != nil && !c.log.HasFileBeenModified(image):
			if !c.opts.FixZData {
				c.logger.Printf("Image \"%s\" has not been modified, skipping\n", image)
				return skipped, nil
			}
			convert = false
		}
	}

	if convert {
		if err := c.convertImage(ctx, t, image); err != nil {
			return failed, err
		}
	}

	if c.opts.FixZData {
		if n := t.FixZData(); n > 0 {
			c.logger.Printf("Fixed %d z-data values in \"%s\"\n", n, file)
		}
	}

	if err := t.Save(file, c.opts.SuppressBackups); err != nil {
		return failed, err
	}
	c.logger.Printf("Saved \"%s\"\n", file)

	if convert {
		c.updateLog(image)
	}

	return processed, nil
}

func (c *Converter) convertImage(ctx context.Context, t *template.Template, image string) error {
	src, err := c.preprocess(ctx, image)
	if err != nil {
		return err
	}
	if src != image {
		defer os.Remove(src)
	}

	p, err := openImage(src)
	if err != nil {
		return err
	}

	r := t.Bounds(false)
	if p.width != r.Dx() || p.height != r.Dy() {
		return fmt.Errorf("%w: image \"%s\" is %dx%d, template is %dx%d", template.ErrSizeMismatch, image, p.width, p.height, r.Dx(), r.Dy())
	}

	colors, err := c.colors(p)
	if err != nil {
		return fmt.Errorf("%s: %w", image, err)
	}

	return t.Pack(colors, r, template.PackOptions{
		Background:           c.palette.Color(0),
		EditRadarColors:      c.opts.ReplaceRadarColors,
		RadarColorMultiplier: c.opts.RadarColorMultiplier,
		ExtraDataBGOverride:  c.opts.ExtraDataBGOverride,
	})
}

// OutputImages writes each template out as a PNG image next to it, or its
// z-data as a grayscale image if zData is set
func (c *Converter) OutputImages(ctx context.Context, zData bool) (Summary, error) {
	if c.palette == nil && !zData {
		return Summary{}, ErrNoPalette
	}
	return c.run(ctx, func(ctx context.Context, file string) (outcome, error) {
		return c.outputImage(file, zData)
	})
}

func (c *Converter) outputImage(file string, zData bool) (outcome, error) {
	if c.log != nil && !c.log.HasFileBeenModified(file) {
		c.logger.Printf("Template \"%s\" has not been modified, skipping\n", file)
		return skipped, nil
	}

	t, err := template.Load(file)
	if err != nil {
		return failed, err
	}

	r := t.Bounds(false)
	if r.Empty() {
		c.logger.Printf("Template \"%s\" has no tiles, skipping\n", file)
		return skipped, nil
	}

	pix, err := t.Unpack(r, template.UnpackOptions{UseZData: zData})
	if err != nil {
		return failed, err
	}

	suffix := imageExtension
	if zData {
		suffix = zDataSuffix + imageExtension
	}
	image := replaceExtension(file, suffix)

	if zData {
		err = saveImage(image, zDataImage(pix, r))
	} else {
		err = saveImage(image, c.indexedImage(pix, r))
	}
	if err != nil {
		return failed, err
	}

	c.updateLog(file)
	c.logger.Printf("Saved \"%s\" to \"%s\"\n", file, image)

	return processed, nil
}

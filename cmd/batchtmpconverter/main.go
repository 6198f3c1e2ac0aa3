package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	batchtmpconverter "github.com/Starkku/BatchTMPConverter"
	"github.com/Starkku/BatchTMPConverter/palette"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/urfave/cli/v2"
)

const logFilename = "batchtmpconverter.log"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) (*log.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = io.NopCloser(nil)

	if c.Bool("verbose") {
		writers = append(writers, os.Stderr)
	}

	flags := 0
	if c.Bool("log-to-file") {
		f, err := os.Create(logFilename)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closer = f
		flags = log.LstdFlags
	}

	logger := log.New(io.Discard, "", flags)
	if len(writers) > 0 {
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger, closer, nil
}

func options(c *cli.Context, logger *log.Logger) batchtmpconverter.Options {
	multiplier := 1.0
	if c.Bool("replace-radarcolor") {
		v, err := batchtmpconverter.ParseRadarColorMultiplier(c.String("radarcolor-multiplier"))
		if err != nil {
			logger.Printf("Radar color multiplier \"%s\" is not a valid number, using 1.0\n", c.String("radarcolor-multiplier"))
		}
		multiplier = v
	}

	files := batchtmpconverter.ParseList(c.String("files"))
	files = append(files, c.Args().Slice()...)

	return batchtmpconverter.Options{
		Files:                 files,
		Extensions:            batchtmpconverter.ParseList(c.String("extensions-override")),
		Palette:               c.String("palette"),
		ReplaceRadarColors:    c.Bool("replace-radarcolor"),
		RadarColorMultiplier:  multiplier,
		ExtraDataBGOverride:   c.Bool("extraimage-bg-override"),
		FixZData:              c.Bool("zdata-fix"),
		AccurateColorMatching: c.Bool("accurate-color-matching"),
		SuppressBackups:       c.Bool("no-backups"),
		PreprocessCommands:    batchtmpconverter.ParseCommands(c.String("preprocess-commands")),
		ProcessedFilesLog:     c.String("processed-files-log"),
	}
}

func convert(c *cli.Context) error {
	logger, closer, err := newLogger(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer closer.Close()

	opts := options(c, logger)
	if len(opts.Files) == 0 || opts.Palette == "" {
		cli.ShowAppHelpAndExit(c, 1)
	}

	b, err := batchtmpconverter.New(opts, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer b.Close()

	ctx := context.Background()

	var s batchtmpconverter.Summary
	switch {
	case c.Bool("output-images"):
		s, err = b.OutputImages(ctx, false)
	case c.Bool("output-zdata"):
		s, err = b.OutputImages(ctx, true)
	default:
		s, err = b.ProcessTiles(ctx)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	logger.Println(s)

	if s.Failed > 0 {
		return cli.NewExitError(fmt.Sprintf("%d file(s) failed", s.Failed), 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "batchtmpconverter"
	app.Usage = "Isometric tile template image converter"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "files",
			Aliases: []string{"i"},
			Usage:   "comma-separated list of input files and/or directories",
		},
		&cli.StringFlag{
			Name:    "palette",
			Aliases: []string{"p"},
			EnvVars: []string{"BATCHTMP_PALETTE"},
			Usage:   "palette file to use for conversion",
		},
		&cli.BoolFlag{
			Name:    "output-images",
			Aliases: []string{"o"},
			Usage:   "output template data as images instead of converting images to templates",
		},
		&cli.BoolFlag{
			Name:    "output-zdata",
			Aliases: []string{"u"},
			Usage:   "output template z-data as images instead of converting images to templates",
		},
		&cli.StringFlag{
			Name:    "extensions-override",
			Aliases: []string{"e"},
			Usage:   "comma-separated list of file extensions (including the .) to use instead of the defaults",
		},
		&cli.BoolFlag{
			Name:    "replace-radarcolor",
			Aliases: []string{"r"},
			Usage:   "alter tile radar colors based on new image and palette data",
		},
		&cli.StringFlag{
			Name:    "radarcolor-multiplier",
			Aliases: []string{"m"},
			Value:   "1.0",
			Usage:   "multiplier to radar color RGB values, if they are altered",
		},
		&cli.BoolFlag{
			Name:    "extraimage-bg-override",
			Aliases: []string{"x"},
			Usage:   "allow overwriting background color pixels on existing extra images",
		},
		&cli.BoolFlag{
			Name:    "zdata-fix",
			Aliases: []string{"z"},
			Usage:   "convert any z-data value higher than 31 to 0, even if no image data is modified",
		},
		&cli.BoolFlag{
			Name:    "accurate-color-matching",
			Aliases: []string{"c"},
			Usage:   "enable slower but more accurate palette color matching",
		},
		&cli.StringFlag{
			Name:    "preprocess-commands",
			Aliases: []string{"d"},
			Usage:   "comma-separated list of commands to preprocess images with, executable and arguments separated by semicolon, arguments containing spaces must be quoted",
		},
		&cli.BoolFlag{
			Name:    "no-backups",
			Aliases: []string{"b"},
			Usage:   "disable keeping the previous version of edited files with extension .old",
		},
		&cli.StringFlag{
			Name:    "processed-files-log",
			Aliases: []string{"f"},
			EnvVars: []string{"BATCHTMP_FILE_LOG"},
			Usage:   "file to record timestamps of processed files in, unchanged files are not processed again (.db or .sqlite for SQLite)",
		},
		&cli.BoolFlag{
			Name:    "log-to-file",
			Aliases: []string{"l"},
			Usage:   "write log to " + logFilename,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Action = convert

	app.Commands = []*cli.Command{
		{
			Name:        "swatch",
			Usage:       "Write the palette out as an image",
			Description: "",
			ArgsUsage:   "FILE",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "size",
					Value: 16,
					Usage: "size in pixels of each color",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 || c.String("palette") == "" {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				p, err := palette.Load(c.String("palette"))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := imgio.Save(c.Args().First(), p.Swatch(c.Int("size")), imgio.PNGEncoder()); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

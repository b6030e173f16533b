package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2cdev/cmd/regctl/console"
	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/config"
)

var colorCmd = cli.Command{
	Name:  "color",
	Usage: "TCS3472 color sensor",
	Subcommands: cli.Commands{
		&colorInitCmd,
		&colorConfigureCmd,
		&colorReadCmd,
		&colorWatchCmd,
		&colorReplayCmd,
	},
}

func newColorSensor(s *session) *color.TCS3472 {
	return color.New(s.transport, color.WithAddress(byte(s.cfg.Devices.Color.Address)), color.WithLogger(slog.Default()))
}

func colorSettings(c *cli.Context, cfg config.Color) (color.Gain, color.IntegrationTime, error) {
	if c.IsSet("gain") {
		cfg.Gain = c.Int("gain")
	}
	if c.IsSet("integration") {
		cfg.Integration = c.Duration("integration")
	}
	gain, err := cfg.ColorGain()
	if err != nil {
		return 0, 0, err
	}
	return gain, cfg.IntegrationTime(), nil
}

var colorSettingsFlags = []cli.Flag{
	&cli.IntFlag{Name: "gain", Aliases: []string{"g"}, Usage: "analog gain (1, 4, 16, 64)"},
	&cli.DurationFlag{Name: "integration", Aliases: []string{"i"}, Usage: "integration time (2.4ms to 614ms)"},
}

var colorInitCmd = cli.Command{
	Name:  "init",
	Usage: "power the sensor up and start conversions",
	Action: withSession(func(c *cli.Context, s *session) error {
		sensor := newColorSensor(s)
		if err := sensor.InitializeBlocking(s.ctx); err != nil {
			return console.Exit(1, "initialization error: %s", console.Red(err))
		}
		id, err := sensor.ReadIDBlocking(s.ctx)
		if err != nil {
			return console.Exit(1, "could not read sensor id: %s", console.Red(err))
		}
		console.PInfof(console.PictoBulb, "sensor %s initialized (id %s)", console.White(fmt.Sprintf("%#x", s.cfg.Devices.Color.Address)), console.White(fmt.Sprintf("%#x", id)))
		return nil
	}),
}

var colorConfigureCmd = cli.Command{
	Name:  "configure",
	Usage: "set gain and integration time",
	Flags: colorSettingsFlags,
	Action: withSession(func(c *cli.Context, s *session) error {
		gain, it, err := colorSettings(c, s.cfg.Devices.Color)
		if err != nil {
			return console.Exit(1, "invalid settings: %s", console.Red(err))
		}
		if err := newColorSensor(s).ConfigureBlocking(s.ctx, gain, it); err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		console.Infof("gain %s, integration time %s", console.White(gain), console.White(it.Duration()))
		return nil
	}),
}

var colorReadCmd = cli.Command{
	Name:  "read",
	Usage: "initialize, configure and read one sample",
	Flags: colorSettingsFlags,
	Action: withSession(func(c *cli.Context, s *session) error {
		gain, it, err := colorSettings(c, s.cfg.Devices.Color)
		if err != nil {
			return console.Exit(1, "invalid settings: %s", console.Red(err))
		}
		sensor := newColorSensor(s)
		if err := sensor.InitializeBlocking(s.ctx); err != nil {
			return console.Exit(1, "initialization error: %s", console.Red(err))
		}
		if err := sensor.ConfigureBlocking(s.ctx, gain, it); err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		sample, err := sensor.GetNewColors(s.ctx)
		if err != nil {
			return console.Exit(1, "could not read colors: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(console.Writer())
		defer enc.Close()
		if err := enc.Encode(sample); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	}),
}

var colorWatchCmd = cli.Command{
	Name:  "watch",
	Usage: "sample colors periodically",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "time between samples"},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "stop after n samples (0 runs until interrupted)"},
		&cli.StringFlag{Name: "record", Usage: "append samples to a CBOR file"},
	}, colorSettingsFlags...),
	Action: withSession(func(c *cli.Context, s *session) error {
		gain, it, err := colorSettings(c, s.cfg.Devices.Color)
		if err != nil {
			return console.Exit(1, "invalid settings: %s", console.Red(err))
		}
		sensor := newColorSensor(s)
		if err := sensor.InitializeBlocking(s.ctx); err != nil {
			return console.Exit(1, "initialization error: %s", console.Red(err))
		}
		if err := sensor.ConfigureBlocking(s.ctx, gain, it); err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		var rec *color.Recorder
		if path := c.String("record"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return console.Exit(1, "could not open record file: %s", console.Red(err))
			}
			defer f.Close()
			rec = color.NewRecorder(f)
		}
		// conversions need one integration period before the first read
		interval := max(c.Duration("interval"), it.Duration())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for n := 0; c.Int("count") == 0 || n < c.Int("count"); n++ {
			select {
			case <-s.ctx.Done():
				return nil
			case now := <-ticker.C:
				sample, err := sensor.GetNewColors(s.ctx)
				if err != nil {
					console.Warnf("sample %d failed: %s", n, err)
					continue
				}
				console.PInfof(console.PictoBulb, "C %s R %s G %s B %s",
					console.White(sample.Clear), console.Red(sample.Red), console.Green(sample.Green), console.White(sample.Blue))
				if rec == nil {
					continue
				}
				err = rec.Record(color.Record{
					Time:            now,
					Address:         byte(s.cfg.Devices.Color.Address),
					Gain:            gain,
					IntegrationTime: it,
					Sample:          sample,
				})
				if err != nil {
					return console.Exit(1, "could not record sample: %s", console.Red(err))
				}
			}
		}
		if rec != nil {
			console.PInfof(console.PictoFloppy, "%s samples recorded", console.White(rec.Count()))
		}
		return nil
	}),
}

var colorReplayCmd = cli.Command{
	Name:      "replay",
	Usage:     "print samples recorded with watch --record",
	ArgsUsage: "<file.cbor>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "record file is required")
		}
		f, err := os.Open(c.Args().First())
		if err != nil {
			return console.Exit(1, "could not open record file: %s", console.Red(err))
		}
		defer f.Close()
		records, err := color.ReadRecords(f)
		if err != nil {
			console.Warnf("%s", err)
		}
		enc := yaml.NewEncoder(console.Writer())
		defer enc.Close()
		if err := enc.Encode(records); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

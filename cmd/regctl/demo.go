package main

import (
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2cdev/cmd/regctl/console"
	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/environment"
	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/scheduler"
	"github.com/mklimuk/i2cdev/storage"
)

type demoReport struct {
	Steps       int          `yaml:"steps"`
	Elapsed     string       `yaml:"elapsed"`
	Colors      color.Sample `yaml:"colors"`
	Temperature float32      `yaml:"temperature"`
	Stored      string       `yaml:"stored"`
	Errors      []string     `yaml:"errors,omitempty"`
}

// demoCmd drives three devices at once from one goroutine. The default
// simulated bus shows the interleaving without hardware.
var demoCmd = cli.Command{
	Name:  "demo",
	Usage: "run color, temperature and eeprom transactions interleaved on one bus",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "message", Value: "i2cdev", Usage: "text stored in the eeprom"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		cfg := s.cfg.Devices
		logger := slog.Default()
		light := color.New(s.transport, color.WithAddress(byte(cfg.Color.Address)), color.WithLogger(logger))
		thermo := environment.NewTC74(s.transport, environment.WithAddress(byte(cfg.TC74.Address)))
		mem := storage.New(s.transport,
			storage.WithAddress(byte(cfg.EEPROM.Address)),
			storage.WithPageSize(cfg.EEPROM.PageSize),
			storage.WithTransferLimit(s.maxTransfer),
			storage.WithLogger(logger),
		)
		gain, err := cfg.Color.ColorGain()
		if err != nil {
			return console.Exit(1, "invalid settings: %s", console.Red(err))
		}
		message := []byte(c.String("message"))
		if len(message) > mem.MaxRead() {
			return console.Exit(1, "message longer than %d bytes", mem.MaxRead())
		}
		readBack := make([]byte, len(message))

		sched := scheduler.New(logger)
		sched.Go("color", resumable.Steps(
			light.Initialize,
			func() resumable.Task { return light.Configure(gain, cfg.Color.IntegrationTime()) },
			light.RefreshAllColors,
		), nil)
		sched.Go("temperature", thermo.ReadTemperature(), nil)
		sched.Go("eeprom", resumable.Steps(
			func() resumable.Task { return mem.WritePages(0, message) },
			func() resumable.Task { return mem.Read(0, readBack) },
		), nil)

		start := time.Now()
		report := demoReport{}
		for sched.Step() > 0 {
			report.Steps++
			if err := s.ctx.Err(); err != nil {
				return console.Exit(1, "demo interrupted: %s", err)
			}
		}
		report.Elapsed = time.Since(start).String()
		report.Colors = light.GetOldColors()
		report.Temperature = thermo.LastTemperature()
		report.Stored = string(readBack)
		if err := sched.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		enc := yaml.NewEncoder(console.Writer())
		defer enc.Close()
		if err := enc.Encode(report); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		if len(report.Errors) > 0 {
			return cli.Exit("", 1)
		}
		return nil
	}),
}

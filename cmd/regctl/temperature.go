package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cdev/cmd/regctl/console"
	"github.com/mklimuk/i2cdev/environment"
)

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read the TC74 temperature sensor",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "standby", Usage: "put the sensor in standby after reading"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		sensor := environment.NewTC74(s.transport, environment.WithAddress(byte(s.cfg.Devices.TC74.Address)))
		temp, err := sensor.GetTemperature(s.ctx)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		if !sensor.DataReady() {
			console.Warnf("conversion not ready")
		}
		console.Printf("%s %s\n", console.PictoThermometer, console.White(temp))
		if c.Bool("standby") {
			if err := sensor.SetStandbyBlocking(s.ctx, true); err != nil {
				return console.Exit(1, "could not enter standby: %s", console.Red(err))
			}
		}
		return nil
	}),
}

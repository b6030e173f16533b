package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cdev/accel"
	"github.com/mklimuk/i2cdev/cmd/regctl/console"
)

var motionCmd = cli.Command{
	Name:  "motion",
	Usage: "BMA220 accelerometer slope detection",
	Subcommands: cli.Commands{
		&motionInitCmd,
		&motionCheckCmd,
		&motionResetCmd,
	},
}

func newAccelerometer(s *session) *accel.BMA220 {
	return accel.NewBMA220(s.transport, byte(s.cfg.Devices.Motion.Address))
}

var motionInitCmd = cli.Command{
	Name: "init",
	Action: withSession(func(c *cli.Context, s *session) error {
		if err := newAccelerometer(s).InitMotionDetectionBlocking(s.ctx); err != nil {
			return console.Exit(1, "error initializing BMA220: %s", console.Red(err))
		}
		console.Infof("motion detection enabled")
		return nil
	}),
}

var motionCheckCmd = cli.Command{
	Name: "check",
	Action: withSession(func(c *cli.Context, s *session) error {
		triggered, err := newAccelerometer(s).CheckMotionInterruptBlocking(s.ctx)
		if err != nil {
			return console.Exit(1, "error checking BMA220 interrupt: %s", console.Red(err))
		}
		if triggered {
			console.Printf("motion: %s\n", console.Yellow("detected"))
			return nil
		}
		console.Printf("motion: %s\n", console.Green("none"))
		return nil
	}),
}

var motionResetCmd = cli.Command{
	Name: "reset",
	Action: withSession(func(c *cli.Context, s *session) error {
		if err := newAccelerometer(s).ResetMotionInterruptBlocking(s.ctx); err != nil {
			return console.Exit(1, "error resetting BMA220 interrupt: %s", console.Red(err))
		}
		return nil
	}),
}

package main

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cdev/cmd/regctl/console"
	"github.com/mklimuk/i2cdev/gpio"
)

var gpioCmd = cli.Command{
	Name:  "gpio",
	Usage: "MCP23017 I/O expander",
	Subcommands: cli.Commands{
		&gpioStatusCmd,
		&gpioReadCmd,
		&gpioConfigureCmd,
		&gpioPullCmd,
		&gpioWriteCmd,
	},
}

func newExpander(s *session) *gpio.MCP23017 {
	return gpio.NewMCP23017(s.transport, byte(s.cfg.Devices.GPIO.Address),
		gpio.WithBank(s.cfg.Devices.GPIO.Bank), gpio.WithRetryLimit(3))
}

func hexByte(arg string) (byte, error) {
	data, err := hex.DecodeString(arg)
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, hex.ErrLength
	}
	return data[0], nil
}

func timeout(s *session) (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, 5*time.Second)
}

var gpioReadCmd = cli.Command{
	Name:  "read",
	Usage: "configure both sets as inputs and read them",
	Action: withSession(func(c *cli.Context, s *session) error {
		exp := newExpander(s)
		ctx, cancel := timeout(s)
		defer cancel()
		if err := exp.InitA(ctx, 0xFF); err != nil {
			return console.Exit(1, "could not initialize gpio: %v", err)
		}
		if err := exp.InitB(ctx, 0xFF); err != nil {
			return console.Exit(1, "could not initialize gpio: %v", err)
		}
		ports, err := exp.Read(ctx)
		if err != nil {
			return console.Exit(1, "could not read gpio: %v", err)
		}
		console.PInfof(console.PictoPin, "I/O A: %s", console.White(hex.EncodeToString(ports[:1])))
		console.PInfof(console.PictoPin, "I/O B: %s", console.White(hex.EncodeToString(ports[1:])))
		return nil
	}),
}

var gpioStatusCmd = cli.Command{
	Name:  "status",
	Usage: "read the IOCON registry",
	Action: withSession(func(c *cli.Context, s *session) error {
		ctx, cancel := timeout(s)
		defer cancel()
		data, err := newExpander(s).ReadSettingsA(ctx)
		if err != nil {
			return console.Exit(1, "could not read settings: %v", err)
		}
		console.Printf("IOCON content: %#X\n", data)
		return nil
	}),
}

var gpioConfigureCmd = cli.Command{
	Name:      "configure",
	Usage:     "write the IOCON registry",
	ArgsUsage: "<hex byte>",
	Action: withSession(func(c *cli.Context, s *session) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		data, err := hexByte(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		ctx, cancel := timeout(s)
		defer cancel()
		if err := newExpander(s).WriteSettingsA(ctx, data); err != nil {
			return console.Exit(1, "could not write settings: %v", err)
		}
		console.Printf("Wrote IOCON content: %#X\n", data)
		return nil
	}),
}

var gpioPullCmd = cli.Command{
	Name:      "pull",
	Usage:     "set pull-up resistors on both sets",
	ArgsUsage: "<hex A> <hex B>",
	Action: withSession(func(c *cli.Context, s *session) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		a, err := hexByte(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		b, err := hexByte(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		exp := newExpander(s)
		ctx, cancel := timeout(s)
		defer cancel()
		if err := exp.PullUpA(ctx, a); err != nil {
			return console.Exit(1, "could not write pull up settings: %v", err)
		}
		if err := exp.PullUpB(ctx, b); err != nil {
			return console.Exit(1, "could not write pull up settings: %v", err)
		}
		console.Printf("Wrote GPPU content: %#X %#X\n", a, b)
		return nil
	}),
}

var gpioWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "set a port as outputs and drive it",
	ArgsUsage: "<A|B> <hex byte>",
	Action: withSession(func(c *cli.Context, s *session) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		port := gpio.PortA
		switch c.Args().Get(0) {
		case "A", "a":
		case "B", "b":
			port = gpio.PortB
		default:
			return console.Exit(1, "unknown port %q", c.Args().Get(0))
		}
		value, err := hexByte(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		exp := newExpander(s)
		ctx, cancel := timeout(s)
		defer cancel()
		setup := exp.InitA
		if port == gpio.PortB {
			setup = exp.InitB
		}
		if err := setup(ctx, 0x00); err != nil {
			return console.Exit(1, "could not set outputs: %v", err)
		}
		if err := exp.Write(ctx, port, value); err != nil {
			return console.Exit(1, "could not write gpio: %v", err)
		}
		console.Printf("Wrote OLAT%s content: %#X\n", port, value)
		return nil
	}),
}

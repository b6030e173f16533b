package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2cdev/adapter"
	"github.com/mklimuk/i2cdev/busctx"
	"github.com/mklimuk/i2cdev/cmd/regctl/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB to I2C adapter",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221GPIOCmd,
	},
}

func adapterContext(c *cli.Context) context.Context {
	ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
	if idx := c.Int("adapter-index"); idx >= 0 {
		ctx = busctx.SetDeviceIndex(ctx, idx)
	}
	return ctx
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(console.Writer())
	defer enc.Close()
	if err := enc.Encode(v); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		status, err := a.Status(adapterContext(c))
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current I2C transfer and free the bus",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		status, err := a.ReleaseBus(adapterContext(c))
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printYAML(status)
	},
}

var mcp2221GPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "show GP pin designations and values",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		ctx := adapterContext(c)
		params, err := a.GetGPIOParameters(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		values, err := a.ReadGPIO(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printYAML(map[string]interface{}{"parameters": params, "values": values})
	},
}

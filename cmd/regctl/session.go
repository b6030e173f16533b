package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/adapter"
	"github.com/mklimuk/i2cdev/busctx"
	"github.com/mklimuk/i2cdev/config"
	"github.com/mklimuk/i2cdev/i2c"
	"github.com/mklimuk/i2cdev/sim"
	"github.com/mklimuk/i2cdev/transport"
)

// session is the bus opened for one command invocation.
type session struct {
	ctx       context.Context
	cfg       *config.Config
	transport i2cdev.Transport
	bench     *sim.Bus
	// maxTransfer is the adapter's transfer size limit, 0 when unlimited.
	maxTransfer int
	closers     []func() error
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if kind := c.String("bus"); kind != "" {
		cfg.Bus.Kind = config.BusKind(kind)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	ctx := busctx.SetVerbose(c.Context, c.Bool("verbose"))
	if idx := c.Int("adapter-index"); idx >= 0 {
		ctx = busctx.SetDeviceIndex(ctx, idx)
	}
	s := &session{ctx: ctx, cfg: cfg}
	logger := slog.Default().With("bus", cfg.Bus.Kind)

	var bus i2cdev.Bus
	switch cfg.Bus.Kind {
	case config.BusSim:
		s.bench = newBench(cfg)
		s.transport = s.bench
		return s, nil
	case config.BusPeriph:
		b, err := i2c.NewGenericBus(cfg.Bus.Device, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, b.Close)
		bus = b
	case config.BusMCP2221:
		a := adapter.NewMCP2221(adapter.WithLogger(logger))
		s.maxTransfer = a.MaxTransfer()
		bus = a
	case config.BusGobot:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		b := adapter.NewGobotBus(npi, cfg.Bus.Number)
		s.closers = append(s.closers, npi.I2cBusAdaptor.Finalize, b.Close)
		bus = b
	}
	switch cfg.Bus.Mode {
	case config.ModeQueue:
		q := transport.NewQueue(bus, transport.WithContext(ctx), transport.WithLogger(logger), transport.WithDepth(cfg.Bus.QueueDepth))
		s.closers = append(s.closers, q.Close)
		s.transport = q
	default:
		s.transport = transport.NewBlocking(bus, transport.WithContext(ctx), transport.WithLogger(logger))
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withSession opens the configured bus around action.
func withSession(action func(c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return fmt.Errorf("could not open bus: %w", err)
		}
		defer func() {
			if err := s.Close(); err != nil {
				slog.Warn("could not close bus", "error", err)
			}
		}()
		return action(c, s)
	}
}

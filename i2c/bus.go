// Package i2c opens host I2C buses through periph.io.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/i2cdev"
)

var _ i2cdev.Bus = &GenericBus{}

type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus initializes the host drivers and opens the named bus ("" selects the first one).
func NewGenericBus(dev string, logger *slog.Logger) (*GenericBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		logger.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewBus(bus), nil
}

// NewBus wraps an already opened periph bus.
func NewBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// Tx runs w and r as one combined transaction with a repeated start.
func (b *GenericBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.bus.Tx(uint16(address), w, r)
	if err == nil {
		return nil
	}
	if isNAK(err) {
		return fmt.Errorf("%w: i2c address %#02x: %w", i2cdev.ErrNAK, address, err)
	}
	return fmt.Errorf("%w: i2c transfer to %#02x: %w", i2cdev.ErrBusError, address, err)
}

func isNAK(err error) bool {
	for _, target := range nakErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

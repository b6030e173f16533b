package adapter

import (
	"context"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/i2cdev"
)

var _ i2cdev.Bus = &TinyGoBus{}

// TinyGoBus adapts a TinyGo drivers.I2C (machine.I2C0 and friends) to the blocking bus contract.
type TinyGoBus struct {
	bus drivers.I2C
}

func NewTinyGoBus(bus drivers.I2C) *TinyGoBus {
	return &TinyGoBus{bus: bus}
}

func (b *TinyGoBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.bus.Tx(uint16(address), w, r); err != nil {
		return fmt.Errorf("%w: i2c transfer to %#02x: %w", i2cdev.ErrBusError, address, err)
	}
	return nil
}

package adapter

import (
	"context"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/i2cdev"
)

// smbus block transfers are limited to 32 bytes
const gobotBlockLimit = 32

var _ i2cdev.Bus = &GobotBus{}

// GobotBus drives devices through a gobot I2C adaptor, e.g. nanopi.NewNeoAdaptor().
type GobotBus struct {
	mx        sync.Mutex
	connector i2c.Connector
	bus       int
	conns     map[byte]i2c.Connection
}

// NewGobotBus uses bus number busNr of the adaptor; a negative value selects its default bus.
func NewGobotBus(connector i2c.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{connector: connector, bus: busNr, conns: map[byte]i2c.Connection{}}
}

func (b *GobotBus) connection(address byte) (i2c.Connection, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return nil, err
	}
	b.conns[address] = c
	return c, nil
}

// Tx maps a one byte pointer write followed by a read onto an I2C block read,
// which the kernel performs with a repeated start. Other shapes are sent as
// separate write and read messages.
func (b *GobotBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return fmt.Errorf("%w: gobot connection to %#02x: %w", i2cdev.ErrBusError, address, err)
	}
	if len(w) == 1 && len(r) > 0 && len(r) <= gobotBlockLimit {
		if err := conn.ReadBlockData(w[0], r); err != nil {
			return fmt.Errorf("%w: block read from %#02x: %w", i2cdev.ErrBusError, address, err)
		}
		return nil
	}
	if len(w) > 0 || len(r) == 0 {
		if _, err := conn.Write(w); err != nil {
			return fmt.Errorf("%w: write to %#02x: %w", i2cdev.ErrBusError, address, err)
		}
	}
	if len(r) > 0 {
		n, err := conn.Read(r)
		if err != nil {
			return fmt.Errorf("%w: read from %#02x: %w", i2cdev.ErrBusError, address, err)
		}
		if n != len(r) {
			return fmt.Errorf("%w: short read from %#02x: %d of %d", i2cdev.ErrBusError, address, n, len(r))
		}
	}
	return nil
}

// Close closes every connection opened so far. The adaptor itself is left to the caller.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var first error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.conns, addr)
	}
	return first
}

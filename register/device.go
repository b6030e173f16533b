// Package register binds a device address to a transaction engine and exposes
// register reads and writes as resumable tasks.
package register

import (
	"log/slog"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/transaction"
)

type Option func(*transaction.Config)

func WithPointerWidth(width int) Option {
	return func(c *transaction.Config) {
		c.PointerWidth = width
	}
}

// WithMaxBurst sets the largest write payload accepted in one transaction.
func WithMaxBurst(n int) Option {
	return func(c *transaction.Config) {
		c.MaxBurst = n
	}
}

func WithMaxRead(n int) Option {
	return func(c *transaction.Config) {
		c.MaxRead = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *transaction.Config) {
		c.Logger = logger
	}
}

// Device is the register accessor of one peripheral. It owns its engine and
// command buffer; they are never shared with another Device.
type Device struct {
	engine *transaction.Engine
}

func New(transport i2cdev.Transport, address byte, opts ...Option) *Device {
	var config transaction.Config
	for _, opt := range opts {
		opt(&config)
	}
	return &Device{engine: transaction.New(transport, address, config)}
}

func (d *Device) Address() byte {
	return d.engine.Address()
}

// Busy reports whether an operation is in flight.
func (d *Device) Busy() bool {
	return d.engine.InFlight()
}

// Reset abandons the operation in flight. Tasks created before Reset fail when polled.
func (d *Device) Reset() {
	d.engine.Reset()
}

// WriteRegister writes a single byte to register.
func (d *Device) WriteRegister(register uint16, value byte) resumable.Task {
	return d.Write(register, value)
}

// Write writes data to consecutive registers starting at register in one burst.
func (d *Device) Write(register uint16, data ...byte) resumable.Task {
	h, err := d.engine.BeginWrite(register, data...)
	return d.task(h, err)
}

// ReadRegisters reads len(buf) consecutive registers starting at register.
// buf is left untouched unless the whole burst succeeds.
func (d *Device) ReadRegisters(register uint16, buf []byte) resumable.Task {
	h, err := d.engine.BeginRead(register, buf)
	return d.task(h, err)
}

// Probe addresses the device without payload; it succeeds when the device acknowledges.
func (d *Device) Probe() resumable.Task {
	h, err := d.engine.BeginProbe()
	return d.task(h, err)
}

func (d *Device) task(h transaction.Handle, err error) resumable.Task {
	if err != nil {
		return resumable.Done(err)
	}
	return resumable.Once(func() resumable.Result {
		return d.engine.Poll(h)
	})
}

package gpio

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
)

type registry int

const DefaultMCP23017Address = 0x21

// BRegistries
const (
	IODIRA registry = iota
	IOPOLA
	GPINTENA
	DEFVALA
	INTCONA
	IOCONA
	GPPUA
	INTFA
	INTCAPA
	GPIOA
	OLATA
	IODIRB
	IOPOLB
	GPINTENB
	DEFVALB
	INTCONB
	IOCONB
	GPPUB
	INTFB
	INTCAPB
	GPIOB
	OLATB
)

// IOCON bit selecting the register layout
const IOCONBank = 0x80

var (
	BankAddr = []map[registry]byte{
		{
			IODIRA:   0x00,
			IOPOLA:   0x02,
			GPINTENA: 0x04,
			DEFVALA:  0x06,
			INTCONA:  0x08,
			IOCONA:   0x0A,
			GPPUA:    0x0C,
			INTFA:    0x0E,
			INTCAPA:  0x10,
			GPIOA:    0x12,
			OLATA:    0x14,
			IODIRB:   0x01,
			IOPOLB:   0x03,
			GPINTENB: 0x05,
			DEFVALB:  0x07,
			INTCONB:  0x09,
			IOCONB:   0x0B,
			GPPUB:    0x0D,
			INTFB:    0x0F,
			INTCAPB:  0x11,
			GPIOB:    0x13,
			OLATB:    0x15,
		},
		{
			IODIRA:   0x00,
			IOPOLA:   0x01,
			GPINTENA: 0x02,
			DEFVALA:  0x03,
			INTCONA:  0x04,
			IOCONA:   0x05,
			GPPUA:    0x06,
			INTFA:    0x07,
			INTCAPA:  0x08,
			GPIOA:    0x09,
			OLATA:    0x0A,
			IODIRB:   0x10,
			IOPOLB:   0x11,
			GPINTENB: 0x12,
			DEFVALB:  0x13,
			INTCONB:  0x14,
			IOCONB:   0x15,
			GPPUB:    0x16,
			INTFB:    0x17,
			INTCAPB:  0x18,
			GPIOB:    0x19,
			OLATB:    0x1A,
		},
	}
)

// Port selects one of the two 8-bit I/O sets.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

func (p Port) pick(a, b registry) registry {
	if p == PortB {
		return b
	}
	return a
}

type MCP23017Option func(*MCP23017)

// WithRetryLimit sets how many times a blocking call is attempted while the bus reports busy.
func WithRetryLimit(limit int) MCP23017Option {
	return func(m *MCP23017) {
		if limit > 0 {
			m.retryLimit = limit
		}
	}
}

// WithBank selects the register layout; it must match the IOCON.BANK bit of the chip.
func WithBank(bank int) MCP23017Option {
	return func(m *MCP23017) {
		if bank == 1 {
			m.bank = 1
		}
	}
}

/*
	Steps to read GPIO:

1. Set 0xFF to IODIR registry (all inputs) - 0x00(A)/0x01(B)
2. Configure pull-up? 0x0C/0x0D
3. Read port register 0x12/0x13
*/
type MCP23017 struct {
	dev        *register.Device
	bank       int
	retryLimit int
}

func NewMCP23017(trans i2cdev.Transport, address byte, opts ...MCP23017Option) *MCP23017 {
	m := &MCP23017{dev: register.New(trans, address), retryLimit: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MCP23017) Device() *register.Device {
	return m.dev
}

func (m *MCP23017) addr(r registry) uint16 {
	return uint16(BankAddr[m.bank][r])
}

// SetDirection writes the IODIR registry of a port; a set bit makes the pin an input.
func (m *MCP23017) SetDirection(port Port, inout byte) resumable.Task {
	return m.dev.WriteRegister(m.addr(port.pick(IODIRA, IODIRB)), inout)
}

// SetPullUp writes the GPPU registry of a port.
func (m *MCP23017) SetPullUp(port Port, settings byte) resumable.Task {
	return m.dev.WriteRegister(m.addr(port.pick(GPPUA, GPPUB)), settings)
}

// SetOutput writes the output latch of a port.
func (m *MCP23017) SetOutput(port Port, value byte) resumable.Task {
	return m.dev.WriteRegister(m.addr(port.pick(OLATA, OLATB)), value)
}

func (m *MCP23017) WriteSettings(port Port, settings byte) resumable.Task {
	return m.dev.WriteRegister(m.addr(port.pick(IOCONA, IOCONB)), settings)
}

func (m *MCP23017) ReadSettings(port Port, dst *byte) resumable.Task {
	return m.readInto(m.addr(port.pick(IOCONA, IOCONB)), dst)
}

// ReadPort reads the GPIO registry of a port into dst.
func (m *MCP23017) ReadPort(port Port, dst *byte) resumable.Task {
	return m.readInto(m.addr(port.pick(GPIOA, GPIOB)), dst)
}

// ReadPorts reads both ports into dst[0] (A) and dst[1] (B).
// In bank 0 layout the two registers are adjacent and are read in one burst.
func (m *MCP23017) ReadPorts(dst []byte) resumable.Task {
	if len(dst) < 2 {
		return resumable.Done(fmt.Errorf("gpio: destination too short: %d", len(dst)))
	}
	if m.bank == 0 {
		return m.dev.ReadRegisters(m.addr(GPIOA), dst[:2])
	}
	return resumable.Steps(
		func() resumable.Task { return m.ReadPort(PortA, &dst[0]) },
		func() resumable.Task { return m.ReadPort(PortB, &dst[1]) },
	)
}

func (m *MCP23017) readInto(reg uint16, dst *byte) resumable.Task {
	var buf [1]byte
	read := m.dev.ReadRegisters(reg, buf[:])
	return resumable.Once(func() resumable.Result {
		r := read.Poll()
		if r.OK() {
			*dst = buf[0]
		}
		return r
	})
}

// run drives a fresh task from next until it succeeds, fails with something
// other than ErrBusBusy or the retry limit is reached.
func (m *MCP23017) run(ctx context.Context, next func() resumable.Task) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = resumable.Run(ctx, next())
		if err == nil || !errors.Is(err, i2cdev.ErrBusBusy) {
			return err
		}
	}
	return fmt.Errorf("retry limit reached: %w", err)
}

// InitA sets IODIR registry to inout on I/O pool A
func (m *MCP23017) InitA(ctx context.Context, inout byte) error {
	if err := m.run(ctx, func() resumable.Task { return m.SetDirection(PortA, inout) }); err != nil {
		return fmt.Errorf("could not initialize gpio A set: %w", err)
	}
	return nil
}

// InitB sets IODIR registry to inout on I/O pool B
func (m *MCP23017) InitB(ctx context.Context, inout byte) error {
	if err := m.run(ctx, func() resumable.Task { return m.SetDirection(PortB, inout) }); err != nil {
		return fmt.Errorf("could not initialize gpio B set: %w", err)
	}
	return nil
}

// PullUpA sets up pull up resistors on set A
func (m *MCP23017) PullUpA(ctx context.Context, settings byte) error {
	if err := m.run(ctx, func() resumable.Task { return m.SetPullUp(PortA, settings) }); err != nil {
		return fmt.Errorf("could not set pull-up on gpio A set: %w", err)
	}
	return nil
}

// PullUpB sets up pull up resistors on set B
func (m *MCP23017) PullUpB(ctx context.Context, settings byte) error {
	if err := m.run(ctx, func() resumable.Task { return m.SetPullUp(PortB, settings) }); err != nil {
		return fmt.Errorf("could not set pull-up on gpio B set: %w", err)
	}
	return nil
}

func (m *MCP23017) Read(ctx context.Context) ([]byte, error) {
	res := make([]byte, 2)
	if err := m.run(ctx, func() resumable.Task { return m.ReadPorts(res) }); err != nil {
		return nil, fmt.Errorf("could not read gpio sets: %w", err)
	}
	return res, nil
}

// ReadA reads gpio A set values
func (m *MCP23017) ReadA(ctx context.Context) (byte, error) {
	var res byte
	if err := m.run(ctx, func() resumable.Task { return m.ReadPort(PortA, &res) }); err != nil {
		return res, fmt.Errorf("could not read gpio A set: %w", err)
	}
	return res, nil
}

// ReadB reads gpio B set values
func (m *MCP23017) ReadB(ctx context.Context) (byte, error) {
	var res byte
	if err := m.run(ctx, func() resumable.Task { return m.ReadPort(PortB, &res) }); err != nil {
		return res, fmt.Errorf("could not read gpio B set: %w", err)
	}
	return res, nil
}

// Write sets the output latch of a port
func (m *MCP23017) Write(ctx context.Context, port Port, value byte) error {
	if err := m.run(ctx, func() resumable.Task { return m.SetOutput(port, value) }); err != nil {
		return fmt.Errorf("could not write gpio %s set: %w", port, err)
	}
	return nil
}

// ReadSettingsA reads contents of IOCON registry
func (m *MCP23017) ReadSettingsA(ctx context.Context) (byte, error) {
	var res byte
	if err := m.run(ctx, func() resumable.Task { return m.ReadSettings(PortA, &res) }); err != nil {
		return res, fmt.Errorf("could not read gpio A settings: %w", err)
	}
	return res, nil
}

// WriteSettingsA writes IOCON registry through set A
func (m *MCP23017) WriteSettingsA(ctx context.Context, settings byte) error {
	if err := m.run(ctx, func() resumable.Task { return m.WriteSettings(PortA, settings) }); err != nil {
		return fmt.Errorf("could not write settings on gpio A set: %w", err)
	}
	return nil
}

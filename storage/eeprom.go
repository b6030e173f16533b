// Package storage drives I2C EEPROMs with a 16-bit memory pointer, such as the
// 24C256 family (base address 0x50).
//
// Example usage:
//
//	mem := storage.New(transport, storage.WithPageSize(64))
//	if !mem.IsAvailableBlocking(ctx) { ... }
//	err := mem.WriteBlocking(ctx, 0x0100, []byte("config"))
//	buf := make([]byte, 6)
//	err = mem.ReadBlocking(ctx, 0x0100, buf)
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/transaction"
)

const DefaultAddress = 0x50

const (
	DefaultPageSize = 64
	DefaultMaxRead  = 256
	// DefaultAckPolls bounds acknowledge polling after a page write.
	DefaultAckPolls = 1000
)

var ErrPageLimit = fmt.Errorf("%w: write exceeds page size", transaction.ErrProtocolViolation)

var ErrWriteCycle = errors.New("eeprom did not finish its write cycle")

// PageLimitError reports a single write longer than the device page.
type PageLimitError struct {
	Address  uint16
	Length   int
	PageSize int
}

func (e *PageLimitError) Error() string {
	return fmt.Sprintf("write of %d bytes at %#04x exceeds page size of %d", e.Length, e.Address, e.PageSize)
}

func (e *PageLimitError) Unwrap() error {
	return ErrPageLimit
}

// pointerWidth is the size of the memory address sent before every access.
const pointerWidth = 2

type Config struct {
	Address  byte
	PageSize int
	MaxRead  int
	AckPolls int
	// TransferLimit is the largest transfer the bus moves in one go, pointer
	// included. Zero means no limit.
	TransferLimit int
	Logger        *slog.Logger
}

type Option func(*Config)

func WithAddress(address byte) Option {
	return func(c *Config) {
		c.Address = address
	}
}

func WithPageSize(size int) Option {
	return func(c *Config) {
		c.PageSize = size
	}
}

func WithMaxRead(n int) Option {
	return func(c *Config) {
		c.MaxRead = n
	}
}

// WithTransferLimit fits the memory to a bus that moves at most n bytes per
// transfer. Reads are capped at n bytes and the page used for writes is halved
// until a full page write fits; a half page stays page aligned.
func WithTransferLimit(n int) Option {
	return func(c *Config) {
		c.TransferLimit = n
	}
}

func WithAckPolls(n int) Option {
	return func(c *Config) {
		c.AckPolls = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

type EEPROM struct {
	dev    *register.Device
	config Config
}

func New(transport i2cdev.Transport, opts ...Option) *EEPROM {
	config := Config{
		Address:  DefaultAddress,
		PageSize: DefaultPageSize,
		MaxRead:  DefaultMaxRead,
		AckPolls: DefaultAckPolls,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.MaxRead <= 0 {
		config.MaxRead = DefaultMaxRead
	}
	if config.AckPolls <= 0 {
		config.AckPolls = DefaultAckPolls
	}
	if config.TransferLimit > 0 {
		for config.PageSize%2 == 0 && config.PageSize+pointerWidth > config.TransferLimit {
			config.PageSize /= 2
		}
		config.MaxRead = min(config.MaxRead, config.TransferLimit)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &EEPROM{
		dev: register.New(transport, config.Address,
			register.WithPointerWidth(pointerWidth),
			register.WithMaxBurst(config.PageSize),
			register.WithMaxRead(config.MaxRead),
			register.WithLogger(config.Logger),
		),
		config: config,
	}
}

func (e *EEPROM) PageSize() int {
	return e.config.PageSize
}

// MaxRead returns the longest burst a single Read accepts.
func (e *EEPROM) MaxRead() int {
	return e.config.MaxRead
}

func (e *EEPROM) Device() *register.Device {
	return e.dev
}

func (e *EEPROM) WriteByte(address uint16, data byte) resumable.Task {
	return e.Write(address, []byte{data})
}

// Write stores data at address in a single page write. Writes longer than a
// page fail before anything is sent; use WritePages for longer blocks.
func (e *EEPROM) Write(address uint16, data []byte) resumable.Task {
	if len(data) > e.config.PageSize {
		return resumable.Done(&PageLimitError{Address: address, Length: len(data), PageSize: e.config.PageSize})
	}
	return e.dev.Write(address, data...)
}

// ReadByte reads one byte from address into data.
func (e *EEPROM) ReadByte(address uint16, data *byte) resumable.Task {
	buf := make([]byte, 1)
	read := e.dev.ReadRegisters(address, buf)
	return resumable.Once(func() resumable.Result {
		r := read.Poll()
		if r.OK() {
			*data = buf[0]
		}
		return r
	})
}

// Read fills buf starting at address: pointer write, repeated start, burst read.
func (e *EEPROM) Read(address uint16, buf []byte) resumable.Task {
	return e.dev.ReadRegisters(address, buf)
}

// IsAvailable checks whether the device acknowledges its address. NAK or a
// busy bus set available to false; the task itself only fails on misuse.
func (e *EEPROM) IsAvailable(available *bool) resumable.Task {
	probe := e.dev.Probe()
	return resumable.Once(func() resumable.Result {
		r := probe.Poll()
		switch r.Status {
		case resumable.Pending:
			return r
		case resumable.Success:
			*available = true
			return r
		}
		if errors.Is(r.Err, transaction.ErrProtocolViolation) {
			return r
		}
		*available = false
		return resumable.SuccessResult()
	})
}

// WritePages writes data of any length, split at page boundaries. After each
// page it polls the device address until the internal write cycle completes.
func (e *EEPROM) WritePages(address uint16, data []byte) resumable.Task {
	var steps []func() resumable.Task
	for offset := 0; offset < len(data); {
		start := address + uint16(offset)
		n := e.config.PageSize - int(start)%e.config.PageSize
		if n > len(data)-offset {
			n = len(data) - offset
		}
		chunk := data[offset : offset+n]
		steps = append(steps,
			func() resumable.Task { return e.Write(start, chunk) },
			func() resumable.Task { return e.awaitWriteCycle() },
		)
		offset += n
	}
	return resumable.Steps(steps...)
}

// awaitWriteCycle probes the device until it acknowledges again.
func (e *EEPROM) awaitWriteCycle() resumable.Task {
	left := e.config.AckPolls
	var probe resumable.Task
	return resumable.Once(func() resumable.Result {
		if probe == nil {
			if left <= 0 {
				return resumable.FailureResult(fmt.Errorf("%w after %d probes", ErrWriteCycle, e.config.AckPolls))
			}
			left--
			probe = e.dev.Probe()
		}
		r := probe.Poll()
		switch r.Status {
		case resumable.Success:
			return r
		case resumable.Failure:
			if errors.Is(r.Err, transaction.ErrProtocolViolation) {
				return r
			}
			probe = nil
		}
		return resumable.PendingResult()
	})
}

func (e *EEPROM) WriteByteBlocking(ctx context.Context, address uint16, data byte) error {
	return e.WriteBlocking(ctx, address, []byte{data})
}

func (e *EEPROM) WriteBlocking(ctx context.Context, address uint16, data []byte) error {
	err := resumable.Run(ctx, e.Write(address, data))
	if err != nil {
		return fmt.Errorf("eeprom: could not write %d bytes at %#04x: %w", len(data), address, err)
	}
	return nil
}

func (e *EEPROM) WritePagesBlocking(ctx context.Context, address uint16, data []byte) error {
	err := resumable.Run(ctx, e.WritePages(address, data))
	if err != nil {
		return fmt.Errorf("eeprom: could not write %d bytes at %#04x: %w", len(data), address, err)
	}
	return nil
}

func (e *EEPROM) ReadByteBlocking(ctx context.Context, address uint16) (byte, error) {
	var data byte
	err := resumable.Run(ctx, e.ReadByte(address, &data))
	if err != nil {
		return 0, fmt.Errorf("eeprom: could not read byte at %#04x: %w", address, err)
	}
	return data, nil
}

func (e *EEPROM) ReadBlocking(ctx context.Context, address uint16, buf []byte) error {
	err := resumable.Run(ctx, e.Read(address, buf))
	if err != nil {
		return fmt.Errorf("eeprom: could not read %d bytes at %#04x: %w", len(buf), address, err)
	}
	return nil
}

func (e *EEPROM) IsAvailableBlocking(ctx context.Context) bool {
	var available bool
	err := resumable.Run(ctx, e.IsAvailable(&available))
	if err != nil {
		e.config.Logger.Debug("eeprom availability check failed", "address", e.config.Address, "error", err)
		return false
	}
	return available
}

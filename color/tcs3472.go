package color

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/transaction"
)

// TCS34725 and TCS34727 answer on 0x29, TCS34721 and TCS34723 on 0x39.
const (
	AddressTCS34725 = 0x29
	AddressTCS34721 = 0x39
)

const (
	RegEnable                 = 0x00
	RegTiming                 = 0x01
	RegLowThresholdLow        = 0x04
	RegLowThresholdHigh       = 0x05
	RegHighThresholdLow       = 0x06
	RegHighThresholdHigh      = 0x07
	RegGain                   = 0x0F
	RegID                     = 0x12
	RegClearLow               = 0x14
	RegClearHigh              = 0x15
	RegRedLow                 = 0x16
	RegRedHigh                = 0x17
	RegGreenLow               = 0x18
	RegGreenHigh              = 0x19
	RegBlueLow                = 0x1A
	RegBlueHigh               = 0x1B
	RegisterMask         byte = 0x1F
)

// every register access goes through the command register
const (
	cmdSelect        = 0x80
	cmdAutoIncrement = 0x20
)

const (
	EnablePower      = 0b01
	EnableConversion = 0b10
)

type Gain byte

const (
	GainX1  Gain = 0b00
	GainX4  Gain = 0b01
	GainX16 Gain = 0b10
	GainX64 Gain = 0b11

	DefaultGain = GainX1
)

func (g Gain) Factor() int {
	return 1 << (2 * int(g&0b11))
}

func (g Gain) String() string {
	return fmt.Sprintf("x%d", g.Factor())
}

// IntegrationTime is the ATIME register: 256 minus the number of 2.4 ms integration cycles.
type IntegrationTime byte

const (
	IntegrationTime2   IntegrationTime = 0xFF
	IntegrationTime24  IntegrationTime = 0xF6
	IntegrationTime101 IntegrationTime = 0xD5
	IntegrationTime154 IntegrationTime = 0xC0
	IntegrationTime700 IntegrationTime = 0x00

	DefaultIntegrationTime = IntegrationTime2
)

const integrationStep = 2400 * time.Microsecond

func (it IntegrationTime) Cycles() int {
	return 256 - int(it)
}

func (it IntegrationTime) Duration() time.Duration {
	return time.Duration(it.Cycles()) * integrationStep
}

// IntegrationTimeFor returns the register value closest to d, clamped to 1..256 cycles.
func IntegrationTimeFor(d time.Duration) IntegrationTime {
	cycles := int((d + integrationStep/2) / integrationStep)
	if cycles < 1 {
		cycles = 1
	}
	if cycles > 256 {
		cycles = 256
	}
	return IntegrationTime(256 - cycles)
}

type Sample struct {
	Clear uint16 `yaml:"clear" cbor:"1,keyasint"`
	Red   uint16 `yaml:"red" cbor:"2,keyasint"`
	Green uint16 `yaml:"green" cbor:"3,keyasint"`
	Blue  uint16 `yaml:"blue" cbor:"4,keyasint"`
}

type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateSampling
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateSampling:
		return "sampling"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	Address byte
	Logger  *slog.Logger
}

type Option func(*Config)

func WithAddress(address byte) Option {
	return func(c *Config) {
		c.Address = address
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// TCS3472 represents an ams TCS3472x RGBC color sensor.
// See: https://cdn-shop.adafruit.com/datasheets/TCS34725.pdf
//
// Every operation returns a resumable.Task to be polled by a cooperative
// scheduler; the *Blocking variants poll it to completion.
//
//	s := color.New(transport)
//	err := s.ConfigureBlocking(ctx, color.GainX16, color.IntegrationTime154)
//	sample, err := s.GetNewColors(ctx)
type TCS3472 struct {
	dev    *register.Device
	logger *slog.Logger
	state  State

	raw     [8]byte
	sample  Sample
	sampled bool
}

func New(transport i2cdev.Transport, opts ...Option) *TCS3472 {
	config := &Config{
		Address: AddressTCS34725,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}
	return &TCS3472{
		dev:    register.New(transport, config.Address, register.WithLogger(config.Logger)),
		logger: config.Logger,
	}
}

func (s *TCS3472) State() State {
	return s.state
}

// Device exposes the register accessor, e.g. to reset it after a timeout.
func (s *TCS3472) Device() *register.Device {
	return s.dev
}

// Initialize powers the sensor up and starts RGBC conversions.
func (s *TCS3472) Initialize() resumable.Task {
	return s.track(StateConfiguring, s.writeRegister(RegEnable, EnablePower|EnableConversion))
}

func (s *TCS3472) SetGain(gain Gain) resumable.Task {
	return s.track(StateConfiguring, s.writeRegister(RegGain, byte(gain)))
}

func (s *TCS3472) SetIntegrationTime(it IntegrationTime) resumable.Task {
	return s.track(StateConfiguring, s.writeRegister(RegTiming, byte(it)))
}

// Configure writes gain and integration time as two independent register writes.
// Pass DefaultGain and DefaultIntegrationTime to restore the power-on settings.
func (s *TCS3472) Configure(gain Gain, it IntegrationTime) resumable.Task {
	return s.track(StateConfiguring, resumable.Steps(
		func() resumable.Task { return s.writeRegister(RegGain, byte(gain)) },
		func() resumable.Task { return s.writeRegister(RegTiming, byte(it)) },
	))
}

// ReadID reads the part number register into id.
func (s *TCS3472) ReadID(id *byte) resumable.Task {
	buf := make([]byte, 1)
	read := s.dev.ReadRegisters(cmdSelect|RegID, buf)
	return s.track(StateConfiguring, resumable.Once(func() resumable.Result {
		r := read.Poll()
		if r.OK() {
			*id = buf[0]
		}
		return r
	}))
}

// RefreshAllColors reads the four channels in one burst. The cached sample is
// replaced only when the whole burst succeeded.
func (s *TCS3472) RefreshAllColors() resumable.Task {
	read := s.dev.ReadRegisters(cmdSelect|cmdAutoIncrement|RegClearLow, s.raw[:])
	return s.track(StateSampling, resumable.Once(func() resumable.Result {
		r := read.Poll()
		if r.OK() {
			s.sample = decodeSample(s.raw[:])
			s.sampled = true
		}
		return r
	}))
}

// GetOldColors returns the last successfully sampled colors without bus activity.
func (s *TCS3472) GetOldColors() Sample {
	return s.sample
}

// HasSample reports whether at least one refresh succeeded.
func (s *TCS3472) HasSample() bool {
	return s.sampled
}

// GetNewColors refreshes the sample and returns it. When the refresh fails the
// last good sample is returned together with the error.
func (s *TCS3472) GetNewColors(ctx context.Context) (Sample, error) {
	err := resumable.Run(ctx, s.RefreshAllColors())
	if err != nil {
		return s.sample, fmt.Errorf("tcs3472: could not refresh colors: %w", err)
	}
	return s.sample, nil
}

func (s *TCS3472) InitializeBlocking(ctx context.Context) error {
	err := resumable.Run(ctx, s.Initialize())
	if err != nil {
		return fmt.Errorf("tcs3472: could not initialize: %w", err)
	}
	return nil
}

func (s *TCS3472) ConfigureBlocking(ctx context.Context, gain Gain, it IntegrationTime) error {
	err := resumable.Run(ctx, s.Configure(gain, it))
	if err != nil {
		return fmt.Errorf("tcs3472: could not configure: %w", err)
	}
	return nil
}

func (s *TCS3472) ReadIDBlocking(ctx context.Context) (byte, error) {
	var id byte
	err := resumable.Run(ctx, s.ReadID(&id))
	if err != nil {
		return 0, fmt.Errorf("tcs3472: could not read id: %w", err)
	}
	return id, nil
}

func (s *TCS3472) writeRegister(reg byte, value byte) resumable.Task {
	return s.dev.WriteRegister(uint16(cmdSelect|reg), value)
}

// track moves the protocol state machine along with task. A task rejected
// before it reached the bus leaves the state to the operation still running.
func (s *TCS3472) track(state State, task resumable.Task) resumable.Task {
	started := false
	return resumable.Once(func() resumable.Result {
		r := task.Poll()
		if !started {
			started = true
			if r.Status == resumable.Failure && errors.Is(r.Err, transaction.ErrProtocolViolation) {
				return r
			}
			s.state = state
		}
		switch r.Status {
		case resumable.Success:
			s.state = StateIdle
		case resumable.Failure:
			s.state = StateError
			s.logger.Debug("tcs3472 operation failed", "state", state, "error", r.Err)
		}
		return r
	})
}

// decodeSample reassembles the clear, red, green and blue channels, low byte first.
func decodeSample(raw []byte) Sample {
	return Sample{
		Clear: binary.LittleEndian.Uint16(raw[0:2]),
		Red:   binary.LittleEndian.Uint16(raw[2:4]),
		Green: binary.LittleEndian.Uint16(raw[4:6]),
		Blue:  binary.LittleEndian.Uint16(raw[6:8]),
	}
}

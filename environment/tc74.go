package environment

import (
	"context"
	"fmt"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
)

const TC74DefaultAddress = 0x4D

const (
	tc74TempRegister   = 0x00
	tc74ConfigRegister = 0x01
)

const (
	tc74ConfigDataReady = 0x40
	tc74ConfigStandby   = 0x80
)

// TC74 represents a Microchip TC74 Digital Temperature Sensor
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/21462D.pdf
//
// Usage: Instantiate with NewTC74, then poll ReadTemperature or call GetTemperature(ctx)
type TC74 struct {
	dev      *register.Device
	buf      [1]byte
	config   byte
	lastTemp float32
}

type TC74Config struct {
	Address byte
}

type TC74ConfigOption func(*TC74Config)

func WithAddress(address byte) TC74ConfigOption {
	return func(c *TC74Config) {
		c.Address = address
	}
}

// NewTC74 creates a new TC74 sensor on the given transport, at 0x4D unless WithAddress is used.
func NewTC74(trans i2cdev.Transport, opts ...TC74ConfigOption) *TC74 {
	config := &TC74Config{
		Address: TC74DefaultAddress,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &TC74{dev: register.New(trans, config.Address)}
}

// ReadConfig reads the configuration register; Config returns its value afterwards.
func (sensor *TC74) ReadConfig() resumable.Task {
	read := sensor.dev.ReadRegisters(tc74ConfigRegister, sensor.buf[:])
	return resumable.Once(func() resumable.Result {
		r := read.Poll()
		if r.OK() {
			sensor.config = sensor.buf[0]
		}
		return r
	})
}

func (sensor *TC74) Config() byte {
	return sensor.config
}

// DataReady reports the DATA_RDY bit of the last read configuration.
func (sensor *TC74) DataReady() bool {
	return sensor.config&tc74ConfigDataReady != 0
}

// SetStandby switches the sensor between standby and normal conversion.
func (sensor *TC74) SetStandby(standby bool) resumable.Task {
	var value byte
	if standby {
		value = tc74ConfigStandby
	}
	return sensor.dev.WriteRegister(tc74ConfigRegister, value)
}

// ReadTemperature reads the configuration and, when a conversion is ready, the
// temperature register. LastTemperature keeps the previous value otherwise.
func (sensor *TC74) ReadTemperature() resumable.Task {
	return resumable.Steps(
		sensor.ReadConfig,
		func() resumable.Task {
			if !sensor.DataReady() {
				return resumable.Done(nil)
			}
			read := sensor.dev.ReadRegisters(tc74TempRegister, sensor.buf[:])
			return resumable.Once(func() resumable.Result {
				r := read.Poll()
				if r.OK() {
					// 2's complement 8-bit value
					sensor.lastTemp = float32(int8(sensor.buf[0]))
				}
				return r
			})
		},
	)
}

func (sensor *TC74) LastTemperature() float32 {
	return sensor.lastTemp
}

// GetTemperature reads the current temperature in Celsius from the TC74 sensor.
// It returns the previous reading when DATA_RDY is not set.
func (sensor *TC74) GetTemperature(ctx context.Context) (float32, error) {
	err := resumable.Run(ctx, sensor.ReadTemperature())
	if err != nil {
		return 0, fmt.Errorf("tc74: could not read temperature: %w", err)
	}
	return sensor.lastTemp, nil
}

func (sensor *TC74) SetStandbyBlocking(ctx context.Context, standby bool) error {
	if err := resumable.Run(ctx, sensor.SetStandby(standby)); err != nil {
		return fmt.Errorf("tc74: could not set standby: %w", err)
	}
	return nil
}

// Package config loads the bus and device settings used by regctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2cdev/accel"
	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/environment"
	"github.com/mklimuk/i2cdev/gpio"
	"github.com/mklimuk/i2cdev/storage"
)

var ErrInvalid = errors.New("invalid configuration")

// BusKind names the bus implementation.
type BusKind string

const (
	BusSim     BusKind = "sim"
	BusPeriph  BusKind = "periph"
	BusMCP2221 BusKind = "mcp2221"
	BusGobot   BusKind = "gobot"
)

// TransportMode selects how a blocking bus is exposed to the engines.
type TransportMode string

const (
	ModeBlocking TransportMode = "blocking"
	ModeQueue    TransportMode = "queue"
)

type Bus struct {
	Kind BusKind `yaml:"kind"`
	// periph bus name, "" opens the first one
	Device string `yaml:"device,omitempty"`
	// gobot bus number, -1 selects the adaptor default
	Number     int           `yaml:"number"`
	Mode       TransportMode `yaml:"mode"`
	QueueDepth int           `yaml:"queue_depth,omitempty"`
	// simulated bus only
	Latency int `yaml:"latency,omitempty"`
}

type Color struct {
	Address     int           `yaml:"address"`
	Gain        int           `yaml:"gain"`
	Integration time.Duration `yaml:"integration"`
}

type EEPROM struct {
	Address  int `yaml:"address"`
	PageSize int `yaml:"page_size"`
	Size     int `yaml:"size"`
}

type TC74 struct {
	Address int `yaml:"address"`
}

type Motion struct {
	Address int `yaml:"address"`
}

type GPIO struct {
	Address int `yaml:"address"`
	Bank    int `yaml:"bank"`
}

type Devices struct {
	Color  Color  `yaml:"color"`
	EEPROM EEPROM `yaml:"eeprom"`
	TC74   TC74   `yaml:"tc74"`
	GPIO   GPIO   `yaml:"gpio"`
	Motion Motion `yaml:"motion"`
}

type Config struct {
	Bus     Bus     `yaml:"bus"`
	Devices Devices `yaml:"devices"`
}

// Default returns a configuration for the simulated bus with every device at its factory address.
func Default() *Config {
	return &Config{
		Bus: Bus{
			Kind:       BusSim,
			Number:     -1,
			Mode:       ModeBlocking,
			QueueDepth: 8,
			Latency:    1,
		},
		Devices: Devices{
			Color: Color{
				Address:     color.AddressTCS34725,
				Gain:        color.DefaultGain.Factor(),
				Integration: color.DefaultIntegrationTime.Duration(),
			},
			EEPROM: EEPROM{
				Address:  storage.DefaultAddress,
				PageSize: storage.DefaultPageSize,
				Size:     0x8000,
			},
			TC74:   TC74{Address: environment.TC74DefaultAddress},
			GPIO:   GPIO{Address: gpio.DefaultMCP23017Address},
			Motion: Motion{Address: accel.DefaultAddress},
		},
	}
}

// Load reads a YAML file on top of Default. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Bus.Kind {
	case BusSim, BusPeriph, BusMCP2221, BusGobot:
	default:
		return fmt.Errorf("%w: unknown bus kind %q", ErrInvalid, c.Bus.Kind)
	}
	switch c.Bus.Mode {
	case ModeBlocking, ModeQueue:
	default:
		return fmt.Errorf("%w: unknown transport mode %q", ErrInvalid, c.Bus.Mode)
	}
	if c.Bus.Mode == ModeQueue && c.Bus.QueueDepth < 1 {
		return fmt.Errorf("%w: queue depth must be positive", ErrInvalid)
	}
	for name, addr := range map[string]int{
		"color":  c.Devices.Color.Address,
		"eeprom": c.Devices.EEPROM.Address,
		"tc74":   c.Devices.TC74.Address,
		"gpio":   c.Devices.GPIO.Address,
		"motion": c.Devices.Motion.Address,
	} {
		if addr < 0x08 || addr > 0x77 {
			return fmt.Errorf("%w: %s address %#x outside 7-bit range", ErrInvalid, name, addr)
		}
	}
	if _, err := c.Devices.Color.ColorGain(); err != nil {
		return err
	}
	if c.Devices.EEPROM.PageSize <= 0 || c.Devices.EEPROM.PageSize&(c.Devices.EEPROM.PageSize-1) != 0 {
		return fmt.Errorf("%w: eeprom page size %d is not a power of two", ErrInvalid, c.Devices.EEPROM.PageSize)
	}
	if c.Devices.EEPROM.Size < c.Devices.EEPROM.PageSize || c.Devices.EEPROM.Size%c.Devices.EEPROM.PageSize != 0 {
		return fmt.Errorf("%w: eeprom size %d is not a multiple of its page size", ErrInvalid, c.Devices.EEPROM.Size)
	}
	if c.Devices.GPIO.Bank != 0 && c.Devices.GPIO.Bank != 1 {
		return fmt.Errorf("%w: gpio bank must be 0 or 1", ErrInvalid)
	}
	return nil
}

// ColorGain maps the configured multiplier onto a gain setting.
func (c Color) ColorGain() (color.Gain, error) {
	for _, g := range []color.Gain{color.GainX1, color.GainX4, color.GainX16, color.GainX64} {
		if g.Factor() == c.Gain {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported color gain %d", ErrInvalid, c.Gain)
}

func (c Color) IntegrationTime() color.IntegrationTime {
	return color.IntegrationTimeFor(c.Integration)
}

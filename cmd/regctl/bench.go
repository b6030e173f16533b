package main

import (
	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/config"
	"github.com/mklimuk/i2cdev/sim"
)

// TCS34725 part number
const benchColorID = 0x44

// newBench builds a simulated bus populated with every configured device.
func newBench(cfg *config.Config) *sim.Bus {
	bus := sim.NewBus(sim.WithLatency(cfg.Bus.Latency))

	light := sim.NewRegisters(32, sim.WithPointerMask(color.RegisterMask))
	light.Set(color.RegID, benchColorID)
	light.Set16(color.RegClearLow, 0x0400)
	light.Set16(color.RegRedLow, 0x0180)
	light.Set16(color.RegGreenLow, 0x0140)
	light.Set16(color.RegBlueLow, 0x00C0)
	bus.Attach(byte(cfg.Devices.Color.Address), light)

	bus.Attach(byte(cfg.Devices.EEPROM.Address), sim.NewEEPROM(cfg.Devices.EEPROM.Size, cfg.Devices.EEPROM.PageSize, 2))

	temp := sim.NewRegisters(2)
	// 22°C, conversion ready
	temp.Set(0x00, 0x16, 0x40)
	bus.Attach(byte(cfg.Devices.TC74.Address), temp)

	bus.Attach(byte(cfg.Devices.GPIO.Address), sim.NewRegisters(0x1B))
	bus.Attach(byte(cfg.Devices.Motion.Address), sim.NewRegisters(0x40))
	return bus
}

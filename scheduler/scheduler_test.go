package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/sim"
	"github.com/mklimuk/i2cdev/storage"
)

func TestScheduler_InterleavesDevicesOnOneBus(t *testing.T) {
	bus := sim.NewBus(sim.WithLatency(3))
	regs := sim.NewRegisters(32, sim.WithPointerMask(color.RegisterMask))
	regs.Set16(color.RegClearLow, 100)
	regs.Set16(color.RegRedLow, 10)
	regs.Set16(color.RegGreenLow, 20)
	regs.Set16(color.RegBlueLow, 30)
	bus.Attach(color.AddressTCS34725, regs)
	mem := sim.NewEEPROM(0x8000, 64, 2)
	bus.Attach(storage.DefaultAddress, mem)

	sensor := color.New(bus)
	eeprom := storage.New(bus)
	readBack := make([]byte, 5)

	s := New(nil)
	s.Go("color", resumable.Steps(
		sensor.Initialize,
		func() resumable.Task { return sensor.Configure(color.GainX16, color.IntegrationTime154) },
		sensor.RefreshAllColors,
	), nil)
	s.Go("eeprom", resumable.Steps(
		func() resumable.Task { return eeprom.WritePages(0x0100, []byte("hello")) },
		func() resumable.Task { return eeprom.Read(0x0100, readBack) },
	), nil)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, color.Sample{Clear: 100, Red: 10, Green: 20, Blue: 30}, sensor.GetOldColors())
	assert.Equal(t, []byte("hello"), readBack)
	assert.Equal(t, resumable.Success, s.Result("color").Status)

	// both devices were on the bus before either finished
	var addresses []byte
	for _, tr := range bus.Transfers() {
		addresses = append(addresses, tr.Address)
	}
	assert.Equal(t, []byte{color.AddressTCS34725, storage.DefaultAddress}, addresses[:2])
}

func TestScheduler_CollectsFailures(t *testing.T) {
	bus := sim.NewBus()
	sensor := color.New(bus)
	var got resumable.Result
	s := New(nil)
	s.Go("missing", sensor.Initialize(), func(r resumable.Result) { got = r })
	err := s.Run(context.Background())
	assert.ErrorContains(t, err, "missing")
	assert.Equal(t, resumable.Failure, got.Status)
	assert.Equal(t, color.StateError, sensor.State())
}

func TestScheduler_Loop(t *testing.T) {
	bus := sim.NewBus(sim.WithLatency(0))
	bus.Attach(color.AddressTCS34725, sim.NewRegisters(32, sim.WithPointerMask(color.RegisterMask)))
	sensor := color.New(bus)
	refreshes := 0
	s := New(nil)
	s.Loop("refresh", sensor.RefreshAllColors, func(r resumable.Result) {
		if r.OK() {
			refreshes++
		}
	})
	// each refresh takes two polls: start the transfer, collect its status
	for i := 0; i < 20; i++ {
		s.Step()
	}
	assert.Equal(t, 10, refreshes)
	assert.Equal(t, resumable.Pending, s.Result("refresh").Status)
}

package color

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/sim"
	"github.com/mklimuk/i2cdev/transaction"
)

func newSimSensor(t *testing.T, opts ...sim.BusOption) (*TCS3472, *sim.Bus, *sim.Registers) {
	t.Helper()
	bus := sim.NewBus(opts...)
	regs := sim.NewRegisters(32, sim.WithPointerMask(RegisterMask))
	regs.Set(RegID, 0x44)
	bus.Attach(AddressTCS34725, regs)
	return New(bus), bus, regs
}

func preload(regs *sim.Registers, s Sample) {
	regs.Set16(RegClearLow, s.Clear)
	regs.Set16(RegRedLow, s.Red)
	regs.Set16(RegGreenLow, s.Green)
	regs.Set16(RegBlueLow, s.Blue)
}

func TestTCS3472_ConfigureAndRefresh(t *testing.T) {
	sensor, bus, regs := newSimSensor(t, sim.WithLatency(2))
	preload(regs, Sample{Clear: 100, Red: 10, Green: 20, Blue: 30})
	ctx := context.Background()

	require.NoError(t, sensor.InitializeBlocking(ctx))
	require.NoError(t, sensor.ConfigureBlocking(ctx, GainX16, IntegrationTime154))
	require.NoError(t, resumable.Run(ctx, sensor.RefreshAllColors()))

	assert.Equal(t, Sample{Clear: 100, Red: 10, Green: 20, Blue: 30}, sensor.GetOldColors())
	assert.Equal(t, byte(EnablePower|EnableConversion), regs.Get(RegEnable))
	assert.Equal(t, byte(GainX16), regs.Get(RegGain))
	assert.Equal(t, byte(0xC0), regs.Get(RegTiming))
	assert.Equal(t, StateIdle, sensor.State())

	transfers := bus.Transfers()
	require.Len(t, transfers, 4)
	assert.Equal(t, []byte{0x80, 0x03}, transfers[0].W)
	assert.Equal(t, []byte{0x8F, 0x02}, transfers[1].W)
	assert.Equal(t, []byte{0x81, 0xC0}, transfers[2].W)
	assert.Equal(t, []byte{0xB4}, transfers[3].W)
	assert.Equal(t, 8, transfers[3].ReadLen)
}

func TestTCS3472_ByteOrder(t *testing.T) {
	sensor, _, regs := newSimSensor(t)
	regs.Set(RegClearLow, 0x34, 0x12)
	sample, err := sensor.GetNewColors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), sample.Clear)
}

func TestTCS3472_PartialFailureKeepsCache(t *testing.T) {
	sensor, bus, regs := newSimSensor(t)
	preload(regs, Sample{Clear: 1, Red: 2, Green: 3, Blue: 4})
	ctx := context.Background()
	_, err := sensor.GetNewColors(ctx)
	require.NoError(t, err)

	preload(regs, Sample{Clear: 500, Red: 600, Green: 700, Blue: 800})
	bus.Inject(AddressTCS34725, sim.FaultReadError)
	task := sensor.RefreshAllColors()
	err = resumable.Run(ctx, task)
	assert.ErrorIs(t, err, transaction.ErrTransportFailure)
	assert.Equal(t, resumable.Failure, task.Poll().Status)
	assert.Equal(t, StateError, sensor.State())
	assert.Equal(t, Sample{Clear: 1, Red: 2, Green: 3, Blue: 4}, sensor.GetOldColors())

	bus.Inject(AddressTCS34725, sim.FaultNAK)
	sample, err := sensor.GetNewColors(ctx)
	assert.Error(t, err)
	assert.Equal(t, Sample{Clear: 1, Red: 2, Green: 3, Blue: 4}, sample, "last good sample is returned")

	sample, err = sensor.GetNewColors(ctx)
	require.NoError(t, err)
	assert.Equal(t, Sample{Clear: 500, Red: 600, Green: 700, Blue: 800}, sample)
	assert.Equal(t, StateIdle, sensor.State())
}

func TestTCS3472_ConfigureStopsAfterFailedGain(t *testing.T) {
	sensor, bus, regs := newSimSensor(t)
	bus.Inject(AddressTCS34725, sim.FaultNAK)
	err := sensor.ConfigureBlocking(context.Background(), GainX64, IntegrationTime700)
	assert.Error(t, err)
	assert.Len(t, bus.Transfers(), 1, "timing must not be written after the gain write failed")
	assert.Equal(t, byte(0x00), regs.Get(RegGain))
	assert.Equal(t, StateError, sensor.State())
}

func TestTCS3472_StateWhileSampling(t *testing.T) {
	sensor, _, _ := newSimSensor(t, sim.WithLatency(3))
	task := sensor.RefreshAllColors()
	assert.Equal(t, resumable.Pending, task.Poll().Status)
	assert.Equal(t, StateSampling, sensor.State())

	busy := sensor.Initialize()
	r := busy.Poll()
	assert.ErrorIs(t, r.Err, transaction.ErrInFlight)
	assert.Equal(t, StateSampling, sensor.State(), "rejected call leaves the state alone")

	require.NoError(t, resumable.Run(context.Background(), task))
	assert.True(t, sensor.HasSample())
}

func TestTCS3472_InstancesDoNotShareCache(t *testing.T) {
	bus := sim.NewBus()
	a := sim.NewRegisters(32, sim.WithPointerMask(RegisterMask))
	b := sim.NewRegisters(32, sim.WithPointerMask(RegisterMask))
	bus.Attach(AddressTCS34725, a)
	bus.Attach(AddressTCS34721, b)
	preload(a, Sample{Clear: 11})
	preload(b, Sample{Clear: 22})
	first := New(bus)
	second := New(bus, WithAddress(AddressTCS34721))
	ctx := context.Background()

	_, err := first.GetNewColors(ctx)
	require.NoError(t, err)
	_, err = second.GetNewColors(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(11), first.GetOldColors().Clear)
	assert.Equal(t, uint16(22), second.GetOldColors().Clear)
}

func TestTCS3472_ReadID(t *testing.T) {
	sensor, _, _ := newSimSensor(t)
	id, err := sensor.ReadIDBlocking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0x44), id)
}

func TestIntegrationTime(t *testing.T) {
	tests := []struct {
		given    IntegrationTime
		cycles   int
		duration time.Duration
	}{
		{IntegrationTime2, 1, 2400 * time.Microsecond},
		{IntegrationTime24, 10, 24 * time.Millisecond},
		{IntegrationTime154, 64, 153600 * time.Microsecond},
		{IntegrationTime700, 256, 614400 * time.Microsecond},
	}
	for _, test := range tests {
		t.Run(test.duration.String(), func(t *testing.T) {
			assert.Equal(t, test.cycles, test.given.Cycles())
			assert.Equal(t, test.duration, test.given.Duration())
			assert.Equal(t, test.given, IntegrationTimeFor(test.duration))
		})
	}
	assert.Equal(t, IntegrationTime2, IntegrationTimeFor(0))
	assert.Equal(t, IntegrationTime700, IntegrationTimeFor(time.Second))
}

func TestGain(t *testing.T) {
	tests := []struct {
		given    Gain
		expected int
	}{
		{GainX1, 1},
		{GainX4, 4},
		{GainX16, 16},
		{GainX64, 64},
	}
	for _, test := range tests {
		t.Run(test.given.String(), func(t *testing.T) {
			assert.Equal(t, test.expected, test.given.Factor())
		})
	}
}

package register

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/sim"
	"github.com/mklimuk/i2cdev/transaction"
)

func TestDevice_RoundTrip(t *testing.T) {
	tests := []struct {
		register uint16
		value    byte
	}{
		{0x00, 0x03},
		{0x0F, 0x02},
		{0x7F, 0xFF},
	}
	bus := sim.NewBus(sim.WithLatency(2))
	bus.Attach(0x20, sim.NewRegisters(128))
	dev := New(bus, 0x20)
	ctx := context.Background()
	for _, test := range tests {
		require.NoError(t, resumable.Run(ctx, dev.WriteRegister(test.register, test.value)))
		buf := make([]byte, 1)
		require.NoError(t, resumable.Run(ctx, dev.ReadRegisters(test.register, buf)))
		assert.Equal(t, test.value, buf[0])
	}
}

func TestDevice_BusyFailsFast(t *testing.T) {
	bus := sim.NewBus(sim.WithLatency(5))
	regs := sim.NewRegisters(16)
	bus.Attach(0x20, regs)
	dev := New(bus, 0x20)

	first := dev.WriteRegister(0x01, 0xAA)
	assert.Equal(t, resumable.Pending, first.Poll().Status)
	assert.True(t, dev.Busy())

	second := dev.WriteRegister(0x02, 0xBB)
	r := second.Poll()
	assert.Equal(t, resumable.Failure, r.Status)
	assert.ErrorIs(t, r.Err, transaction.ErrInFlight)
	assert.Len(t, bus.Transfers(), 1)

	require.NoError(t, resumable.Run(context.Background(), first))
	assert.False(t, dev.Busy())
	assert.Equal(t, byte(0xAA), regs.Get(0x01))
	assert.Equal(t, byte(0x00), regs.Get(0x02))
}

func TestDevice_ResolvedTaskKeepsResult(t *testing.T) {
	bus := sim.NewBus()
	bus.Attach(0x20, sim.NewRegisters(16))
	dev := New(bus, 0x20)
	task := dev.WriteRegister(0x01, 0x01)
	require.NoError(t, resumable.Run(context.Background(), task))
	assert.Equal(t, resumable.Success, task.Poll().Status)
	assert.Len(t, bus.Transfers(), 1)
}

func TestDevice_BurstWriteLimit(t *testing.T) {
	bus := sim.NewBus()
	bus.Attach(0x20, sim.NewRegisters(16))
	dev := New(bus, 0x20, WithMaxBurst(2))
	err := resumable.Run(context.Background(), dev.Write(0x00, 1, 2, 3))
	assert.ErrorIs(t, err, transaction.ErrBurstTooLong)
	assert.Empty(t, bus.Transfers())
}

func TestDevice_ResetUnblocks(t *testing.T) {
	bus := sim.NewBus(sim.WithLatency(100))
	bus.Attach(0x20, sim.NewRegisters(16))
	dev := New(bus, 0x20)
	stuck := resumable.Limit(dev.WriteRegister(0x00, 0x01), 5, dev.Reset)
	err := resumable.Run(context.Background(), stuck)
	assert.ErrorIs(t, err, resumable.ErrTimeout)
	assert.False(t, dev.Busy())

	r := dev.Probe().Poll()
	assert.Equal(t, resumable.Pending, r.Status)
}

func TestDevice_Probe(t *testing.T) {
	bus := sim.NewBus()
	bus.Attach(0x20, sim.NewRegisters(16))
	ctx := context.Background()
	assert.NoError(t, resumable.Run(ctx, New(bus, 0x20).Probe()))
	assert.Error(t, resumable.Run(ctx, New(bus, 0x21).Probe()))
}

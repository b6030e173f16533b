package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/transport"
)

func TestGenericBus_RegisterRead(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x48, W: []byte{0x01, 0x60}},
			{Addr: 0x48, W: []byte{0x00}, R: []byte{0x19, 0x80}},
		},
	}
	bus := NewBus(playback)
	dev := register.New(transport.NewBlocking(bus), 0x48)
	ctx := context.Background()

	require.NoError(t, resumable.Run(ctx, dev.WriteRegister(0x01, 0x60)))
	buf := make([]byte, 2)
	require.NoError(t, resumable.Run(ctx, dev.ReadRegisters(0x00, buf)))
	assert.Equal(t, []byte{0x19, 0x80}, buf)
	require.NoError(t, bus.Close())
}

func TestGenericBus_Failure(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := NewBus(playback)
	err := bus.Tx(context.Background(), 0x48, []byte{0x00}, nil)
	assert.ErrorIs(t, err, i2cdev.ErrBusError)
}

func TestGenericBus_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewBus(&i2ctest.Playback{}).Tx(ctx, 0x48, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

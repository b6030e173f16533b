package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cdev/resumable"
	"github.com/mklimuk/i2cdev/sim"
	"github.com/mklimuk/i2cdev/transaction"
)

func newSimEEPROM(t *testing.T, writeCycle int, opts ...Option) (*EEPROM, *sim.Bus, *sim.EEPROM) {
	t.Helper()
	bus := sim.NewBus(sim.WithLatency(1))
	mem := sim.NewEEPROM(0x8000, 64, writeCycle)
	bus.Attach(DefaultAddress, mem)
	return New(bus, opts...), bus, mem
}

func TestEEPROM_ByteRoundTrip(t *testing.T) {
	e, bus, _ := newSimEEPROM(t, 0)
	ctx := context.Background()
	require.NoError(t, e.WriteByteBlocking(ctx, 0x1234, 0x5A))
	data, err := e.ReadByteBlocking(ctx, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), data)

	transfers := bus.Transfers()
	require.Len(t, transfers, 2)
	assert.Equal(t, []byte{0x12, 0x34, 0x5A}, transfers[0].W)
	assert.Equal(t, []byte{0x12, 0x34}, transfers[1].W)
	assert.Equal(t, 1, transfers[1].ReadLen)
}

func TestEEPROM_BlockRoundTrip(t *testing.T) {
	e, _, mem := newSimEEPROM(t, 0)
	ctx := context.Background()
	data := []byte("resumable")
	require.NoError(t, e.WriteBlocking(ctx, 0x0040, data))
	assert.Equal(t, data, mem.Bytes(0x0040, len(data)))

	buf := make([]byte, len(data))
	require.NoError(t, e.ReadBlocking(ctx, 0x0040, buf))
	assert.Equal(t, data, buf)
}

func TestEEPROM_PageLimit(t *testing.T) {
	e, bus, mem := newSimEEPROM(t, 0, WithPageSize(16))
	err := e.WriteBlocking(context.Background(), 0x0000, make([]byte, 17))
	var pageErr *PageLimitError
	require.True(t, errors.As(err, &pageErr))
	assert.Equal(t, 17, pageErr.Length)
	assert.Equal(t, 16, pageErr.PageSize)
	assert.ErrorIs(t, err, ErrPageLimit)
	assert.ErrorIs(t, err, transaction.ErrProtocolViolation)
	assert.Empty(t, bus.Transfers())
	assert.Zero(t, mem.PayloadWrites())

	assert.NoError(t, e.WriteBlocking(context.Background(), 0x0000, make([]byte, 16)))
}

func TestEEPROM_IsAvailable(t *testing.T) {
	e, bus, mem := newSimEEPROM(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.True(t, e.IsAvailableBlocking(ctx))
	}
	assert.Zero(t, mem.PayloadWrites())
	for _, tr := range bus.Transfers() {
		assert.Empty(t, tr.W)
	}

	bus.Inject(DefaultAddress, sim.FaultNAK)
	assert.False(t, e.IsAvailableBlocking(ctx))
	bus.Inject(DefaultAddress, sim.FaultBusy)
	assert.False(t, e.IsAvailableBlocking(ctx))
	assert.True(t, e.IsAvailableBlocking(ctx))

	missing := New(bus, WithAddress(0x57))
	var available = true
	require.NoError(t, resumable.Run(ctx, missing.IsAvailable(&available)))
	assert.False(t, available)
}

func TestEEPROM_IsAvailableWhileBusyIsViolation(t *testing.T) {
	e, _, _ := newSimEEPROM(t, 0)
	read := e.Read(0x0000, make([]byte, 4))
	assert.Equal(t, resumable.Pending, read.Poll().Status)
	var available bool
	r := e.IsAvailable(&available).Poll()
	assert.Equal(t, resumable.Failure, r.Status)
	assert.ErrorIs(t, r.Err, transaction.ErrInFlight)
}

func TestEEPROM_ReadFailureLeavesBuffer(t *testing.T) {
	e, bus, mem := newSimEEPROM(t, 0)
	mem.Set(0x0010, 1, 2, 3, 4)
	bus.Inject(DefaultAddress, sim.FaultReadError)
	buf := []byte{9, 9, 9, 9}
	err := e.ReadBlocking(context.Background(), 0x0010, buf)
	assert.ErrorIs(t, err, transaction.ErrTransportFailure)
	assert.Equal(t, []byte{9, 9, 9, 9}, buf)
}

func TestEEPROM_WritePages(t *testing.T) {
	e, bus, mem := newSimEEPROM(t, 3, WithPageSize(64))
	data := bytes.Repeat([]byte{0xA5, 0x5A}, 80)
	require.NoError(t, e.WritePagesBlocking(context.Background(), 0x0030, data))
	assert.Equal(t, data, mem.Bytes(0x0030, len(data)))

	var writes [][]byte
	for _, tr := range bus.Transfers() {
		if len(tr.W) > 2 {
			writes = append(writes, tr.W[:2])
		}
	}
	// 0x30..0x3F, 0x40..0x7F, 0x80..0xBF, 0xC0..0xCF
	assert.Equal(t, [][]byte{{0x00, 0x30}, {0x00, 0x40}, {0x00, 0x80}, {0x00, 0xC0}}, writes)
}

func TestEEPROM_WriteCycleTimeout(t *testing.T) {
	e, _, _ := newSimEEPROM(t, 50, WithAckPolls(5))
	err := e.WritePagesBlocking(context.Background(), 0x0000, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrWriteCycle)
}

func TestNew_NonPositiveSettingsUseDefaults(t *testing.T) {
	e, _, mem := newSimEEPROM(t, 0, WithPageSize(0), WithMaxRead(-1), WithAckPolls(0))
	assert.Equal(t, DefaultPageSize, e.PageSize())
	assert.Equal(t, DefaultMaxRead, e.MaxRead())

	data := bytes.Repeat([]byte{0x11}, 70)
	require.NoError(t, e.WritePagesBlocking(context.Background(), 0x0000, data))
	assert.Equal(t, data, mem.Bytes(0x0000, len(data)))
}

func TestWithTransferLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		page    int
		expPage int
		expRead int
	}{
		{"no limit", 0, 64, 64, DefaultMaxRead},
		{"usb bridge", 60, 64, 32, 60},
		{"page fits", 66, 64, 64, 66},
		{"smbus block", 32, 64, 16, 32},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := New(sim.NewBus(), WithPageSize(test.page), WithTransferLimit(test.limit))
			assert.Equal(t, test.expPage, e.PageSize())
			assert.Equal(t, test.expRead, e.MaxRead())
		})
	}
}

func TestWithTransferLimit_WritePagesStayWithinLimit(t *testing.T) {
	e, bus, mem := newSimEEPROM(t, 1, WithTransferLimit(20))
	data := bytes.Repeat([]byte{0xC3}, 50)
	require.NoError(t, e.WritePagesBlocking(context.Background(), 0x0008, data))
	assert.Equal(t, data, mem.Bytes(0x0008, len(data)))
	for _, tr := range bus.Transfers() {
		assert.LessOrEqual(t, len(tr.W), 20)
	}
}

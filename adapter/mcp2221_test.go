package adapter

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/sim"
	"github.com/mklimuk/i2cdev/storage"
	"github.com/mklimuk/i2cdev/transport"
)

// fakeHID answers MCP2221 reports from simulated devices.
type fakeHID struct {
	devices  map[byte]sim.Device
	busy     bool
	nak      bool
	pending  []byte
	commands []byte
	response [64]byte
}

func newFakeHID() *fakeHID {
	return &fakeHID{devices: map[byte]sim.Device{}}
}

func (f *fakeHID) opener(context.Context) (io.ReadWriteCloser, error) {
	return f, nil
}

func (f *fakeHID) Write(req []byte) (int, error) {
	f.commands = append(f.commands, req[0])
	f.response = [64]byte{}
	f.response[0] = req[0]
	size := int(req[1]) | int(req[2])<<8
	address := req[3] >> 1
	switch req[0] {
	case cmdI2CWrite, cmdI2CWriteNoStop:
		if f.busy {
			f.response[1] = 0x01
			break
		}
		dev, ok := f.devices[address]
		f.nak = !ok
		if ok && dev.Write(append([]byte(nil), req[4:4+size]...)) != nil {
			f.nak = true
		}
	case cmdI2CRead, cmdI2CReadRepeated:
		f.pending = nil
		if dev, ok := f.devices[address]; ok {
			f.pending = make([]byte, size)
			_ = dev.Read(f.pending)
		}
	case cmdGetI2CData:
		if f.pending == nil {
			f.response[1] = respI2CDataNotReady
			break
		}
		f.response[3] = byte(len(f.pending))
		copy(f.response[4:], f.pending)
	case cmdStatus:
		if f.nak {
			f.response[statusAckIndex] = statusNAK
		}
		if req[2] == statusCancelTx {
			f.nak = false
		}
	}
	return 64, nil
}

func (f *fakeHID) Read(buf []byte) (int, error) {
	return copy(buf, f.response[:]), nil
}

func (f *fakeHID) Close() error {
	return nil
}

func newTestAdapter(f *fakeHID) *MCP2221 {
	return NewMCP2221(WithOpener(f.opener), WithResponseWait(0))
}

func TestMCP2221_TxRepeatedStart(t *testing.T) {
	f := newFakeHID()
	regs := sim.NewRegisters(16)
	regs.Set(0x04, 0xDE, 0xAD)
	f.devices[0x20] = regs
	d := newTestAdapter(f)

	buf := make([]byte, 2)
	require.NoError(t, d.Tx(context.Background(), 0x20, []byte{0x04}, buf))
	assert.Equal(t, []byte{0xDE, 0xAD}, buf)
	assert.Equal(t, []byte{cmdI2CWriteNoStop, cmdStatus, cmdI2CReadRepeated, cmdGetI2CData}, f.commands)
}

func TestMCP2221_TxWrite(t *testing.T) {
	f := newFakeHID()
	regs := sim.NewRegisters(16)
	f.devices[0x20] = regs
	d := newTestAdapter(f)
	require.NoError(t, d.Tx(context.Background(), 0x20, []byte{0x02, 0x11, 0x22}, nil))
	assert.Equal(t, []byte{0x11, 0x22}, regs.Bytes(0x02, 2))
	assert.Equal(t, []byte{cmdI2CWrite, cmdStatus}, f.commands)
}

func TestMCP2221_TxErrors(t *testing.T) {
	ctx := context.Background()
	f := newFakeHID()
	d := newTestAdapter(f)

	err := d.Tx(ctx, 0x30, []byte{0x00}, nil)
	assert.ErrorIs(t, err, i2cdev.ErrNAK)
	assert.False(t, f.nak, "engine released after NAK")

	f.busy = true
	err = d.Tx(ctx, 0x30, []byte{0x00}, nil)
	assert.ErrorIs(t, err, i2cdev.ErrBusBusy)
	f.busy = false

	err = d.Tx(ctx, 0x30, nil, make([]byte, 1))
	assert.ErrorIs(t, err, i2cdev.ErrBusError)

	err = d.Tx(ctx, 0x30, make([]byte, 61), nil)
	assert.ErrorIs(t, err, i2cdev.ErrBusError)
}

func TestMCP2221_DrivesColorSensor(t *testing.T) {
	f := newFakeHID()
	regs := sim.NewRegisters(32, sim.WithPointerMask(color.RegisterMask))
	regs.Set16(color.RegClearLow, 0x1234)
	f.devices[color.AddressTCS34725] = regs
	ctx := context.Background()

	s := color.New(transport.NewBlocking(newTestAdapter(f)))
	require.NoError(t, s.InitializeBlocking(ctx))
	sample, err := s.GetNewColors(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), sample.Clear)
}

func TestMCP2221_DrivesEEPROM(t *testing.T) {
	f := newFakeHID()
	mem := sim.NewEEPROM(0x1000, 64, 2)
	f.devices[storage.DefaultAddress] = mem
	d := newTestAdapter(f)
	ctx := context.Background()

	e := storage.New(transport.NewBlocking(d), storage.WithTransferLimit(d.MaxTransfer()))
	assert.Equal(t, 32, e.PageSize())
	assert.Equal(t, 60, e.MaxRead())
	require.True(t, e.IsAvailableBlocking(ctx))

	data := make([]byte, 150)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, e.WritePagesBlocking(ctx, 0x0010, data))
	assert.Equal(t, data, mem.Bytes(0x0010, len(data)))

	got := make([]byte, len(data))
	for off := 0; off < len(got); off += e.MaxRead() {
		end := min(off+e.MaxRead(), len(got))
		require.NoError(t, e.ReadBlocking(ctx, uint16(0x0010+off), got[off:end]))
	}
	assert.Equal(t, data, got)
}

func TestBufferToStatus(t *testing.T) {
	buf := make([]byte, 64)
	buf[9], buf[10] = 0x05, 0x00
	buf[11], buf[12] = 0x03, 0x00
	buf[13] = 2
	buf[16], buf[17] = 0x52, 0x00
	buf[statusAckIndex] = statusNAK
	buf[25] = 1
	status := bufferToStatus(buf)
	assert.Equal(t, uint16(5), status.LastWriteRequestedSize)
	assert.Equal(t, uint16(3), status.LastWriteSentSize)
	assert.Equal(t, 2, status.I2CDataBufferCounter)
	assert.Equal(t, "5200", status.CurrentAddress)
	assert.Equal(t, 1, status.ReadPending)
	assert.True(t, status.AddressNAK)
}

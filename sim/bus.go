package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/i2cdev"
)

type Fault int

const (
	FaultNone Fault = iota
	// FaultNAK: the device does not acknowledge its address.
	FaultNAK
	// FaultReadError: the register-select write is acknowledged, the read phase fails.
	FaultReadError
	// FaultBusy: the bus refuses to start the transfer.
	FaultBusy
)

// Transfer records one transfer seen on the simulated bus.
type Transfer struct {
	Address byte
	W       []byte
	ReadLen int
	Status  i2cdev.TransferStatus
}

type pendingTransfer struct {
	left   int
	status i2cdev.TransferStatus
}

// Bus is a simulated I2C bus. It implements both the blocking i2cdev.Bus and the
// resumable i2cdev.Transport. The bus effect of a transfer is applied when it
// starts; its completion is reported after Latency polls.
type Bus struct {
	mx        sync.Mutex
	devices   map[byte]Device
	faults    map[byte][]Fault
	pending   map[i2cdev.TransferHandle]*pendingTransfer
	next      i2cdev.TransferHandle
	transfers []Transfer
	latency   int
}

var _ i2cdev.Bus = &Bus{}
var _ i2cdev.Transport = &Bus{}
var _ i2cdev.Forgetter = &Bus{}

type BusOption func(*Bus)

// WithLatency sets how many PollTransfer calls report pending before completion.
func WithLatency(polls int) BusOption {
	return func(b *Bus) {
		b.latency = polls
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		devices: make(map[byte]Device),
		faults:  make(map[byte][]Fault),
		pending: make(map[i2cdev.TransferHandle]*pendingTransfer),
		latency: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Attach(address byte, dev Device) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.devices[address] = dev
}

func (b *Bus) Detach(address byte) {
	b.mx.Lock()
	defer b.mx.Unlock()
	delete(b.devices, address)
}

// Inject queues faults for the next transfers addressed to address, one fault per transfer.
func (b *Bus) Inject(address byte, faults ...Fault) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.faults[address] = append(b.faults[address], faults...)
}

// Transfers returns a copy of the transfer log.
func (b *Bus) Transfers() []Transfer {
	b.mx.Lock()
	defer b.mx.Unlock()
	out := make([]Transfer, len(b.transfers))
	copy(out, b.transfers)
	return out
}

func (b *Bus) ResetLog() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.transfers = nil
}

// Pending returns the number of started transfers not yet reported complete.
func (b *Bus) Pending() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return len(b.pending)
}

func (b *Bus) StartTransfer(address byte, w, r []byte) (i2cdev.TransferHandle, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	status, err := b.execute(address, w, r)
	if err != nil {
		return 0, err
	}
	b.next++
	b.pending[b.next] = &pendingTransfer{left: b.latency, status: status}
	return b.next, nil
}

func (b *Bus) PollTransfer(h i2cdev.TransferHandle) i2cdev.TransferStatus {
	b.mx.Lock()
	defer b.mx.Unlock()
	p, ok := b.pending[h]
	if !ok {
		return i2cdev.TransferBusError
	}
	if p.left > 0 {
		p.left--
		return i2cdev.TransferPending
	}
	delete(b.pending, h)
	return p.status
}

func (b *Bus) Forget(h i2cdev.TransferHandle) {
	b.mx.Lock()
	defer b.mx.Unlock()
	delete(b.pending, h)
}

func (b *Bus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	status, err := b.execute(address, w, r)
	if err != nil {
		return err
	}
	if status != i2cdev.TransferOK {
		return fmt.Errorf("transfer to %#x failed: %w", address, status.Err())
	}
	return nil
}

func (b *Bus) execute(address byte, w, r []byte) (i2cdev.TransferStatus, error) {
	fault := FaultNone
	if q := b.faults[address]; len(q) > 0 {
		fault = q[0]
		b.faults[address] = q[1:]
	}
	if fault == FaultBusy {
		return i2cdev.TransferPending, i2cdev.ErrBusBusy
	}
	rec := Transfer{Address: address, W: append([]byte(nil), w...), ReadLen: len(r)}
	rec.Status = b.apply(address, fault, w, r)
	b.transfers = append(b.transfers, rec)
	return rec.Status, nil
}

func (b *Bus) apply(address byte, fault Fault, w, r []byte) i2cdev.TransferStatus {
	dev, ok := b.devices[address]
	if !ok || fault == FaultNAK {
		return i2cdev.TransferNAK
	}
	if err := dev.Write(w); err != nil {
		return i2cdev.TransferNAK
	}
	if len(r) == 0 {
		return i2cdev.TransferOK
	}
	if fault == FaultReadError {
		return i2cdev.TransferBusError
	}
	if err := dev.Read(r); err != nil {
		return i2cdev.TransferBusError
	}
	return i2cdev.TransferOK
}

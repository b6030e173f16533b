// Package sim provides simulated register-mapped devices and a simulated bus
// for tests and for running the command line tool without hardware.
package sim

import (
	"sync"
)

// Device is the slave side of a simulated transfer.
type Device interface {
	// Write receives the bytes following the address byte of a write phase.
	Write(w []byte) error
	// Read fills r, as clocked out by the device in a read phase.
	Read(r []byte) error
}

type RegisterOption func(*Registers)

// WithPointerWidth sets the register pointer size in bytes (1 or 2, high byte first).
func WithPointerWidth(width int) RegisterOption {
	return func(r *Registers) {
		r.pointerWidth = width
	}
}

// WithPointerMask keeps only the masked bits of a one byte pointer, stripping
// command bits such as the TCS3472 command/auto-increment flags.
func WithPointerMask(mask byte) RegisterOption {
	return func(r *Registers) {
		r.pointerMask = mask
	}
}

// WithPageSize makes sequential writes wrap inside a page, as EEPROMs do.
func WithPageSize(size int) RegisterOption {
	return func(r *Registers) {
		r.pageSize = size
	}
}

// Registers is a register-backed memory model with an auto-incrementing pointer.
type Registers struct {
	mx           sync.Mutex
	mem          []byte
	pointer      int
	pointerWidth int
	pointerMask  byte
	pageSize     int
	writes       int
}

var _ Device = &Registers{}

func NewRegisters(size int, opts ...RegisterOption) *Registers {
	r := &Registers{
		mem:          make([]byte, size),
		pointerWidth: 1,
		pointerMask:  0xFF,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registers) Write(w []byte) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if len(w) < r.pointerWidth {
		// address-only write, pointer unchanged
		return nil
	}
	if r.pointerWidth == 2 {
		r.pointer = (int(w[0])<<8 | int(w[1])) % len(r.mem)
	} else {
		r.pointer = int(w[0]&r.pointerMask) % len(r.mem)
	}
	payload := w[r.pointerWidth:]
	if len(payload) > 0 {
		r.writes++
	}
	for _, b := range payload {
		r.mem[r.pointer] = b
		r.advance(true)
	}
	return nil
}

func (r *Registers) Read(buf []byte) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	for i := range buf {
		buf[i] = r.mem[r.pointer]
		r.advance(false)
	}
	return nil
}

func (r *Registers) advance(write bool) {
	if write && r.pageSize > 0 {
		page := r.pointer - r.pointer%r.pageSize
		r.pointer = page + (r.pointer+1-page)%r.pageSize
		return
	}
	r.pointer = (r.pointer + 1) % len(r.mem)
}

// Set preloads memory starting at address.
func (r *Registers) Set(address int, data ...byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	copy(r.mem[address:], data)
}

// Set16 stores v low byte first, the way the color sensor lays out its channels.
func (r *Registers) Set16(address int, v uint16) {
	r.Set(address, byte(v), byte(v>>8))
}

func (r *Registers) Get(address int) byte {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.mem[address]
}

func (r *Registers) Bytes(address, n int) []byte {
	r.mx.Lock()
	defer r.mx.Unlock()
	out := make([]byte, n)
	copy(out, r.mem[address:])
	return out
}

// PayloadWrites counts write transfers that carried at least one data byte.
func (r *Registers) PayloadWrites() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.writes
}

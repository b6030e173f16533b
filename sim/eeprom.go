package sim

import (
	"sync"

	"github.com/mklimuk/i2cdev"
)

// EEPROM is a 24Cxx style memory with a two byte pointer and page wrapping.
// After every page write it ignores its address for WriteCycle transfers, the
// way a real part does while the internal write cycle runs.
type EEPROM struct {
	*Registers
	mx         sync.Mutex
	writeCycle int
	busy       int
}

var _ Device = &EEPROM{}

func NewEEPROM(size, pageSize, writeCycle int) *EEPROM {
	return &EEPROM{
		Registers:  NewRegisters(size, WithPointerWidth(2), WithPageSize(pageSize)),
		writeCycle: writeCycle,
	}
}

func (e *EEPROM) Write(w []byte) error {
	e.mx.Lock()
	defer e.mx.Unlock()
	if e.busy > 0 {
		e.busy--
		return i2cdev.ErrNAK
	}
	before := e.Registers.PayloadWrites()
	if err := e.Registers.Write(w); err != nil {
		return err
	}
	if e.Registers.PayloadWrites() > before {
		e.busy = e.writeCycle
	}
	return nil
}

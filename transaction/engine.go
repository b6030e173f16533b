// Package transaction implements the resumable register transaction engine.
//
// An Engine turns "write payload to register R" or "read N bytes starting at
// register R" into bus transfers on an i2cdev.Transport. It never waits: each
// Poll advances the state machine by one bus primitive and reports Pending
// until the transfer resolves.
//
//	h, err := e.BeginRead(0x14, buf)
//	for r := e.Poll(h); !r.Done(); r = e.Poll(h) {
//		// run other tasks
//	}
//
// One Engine holds exactly one transaction at a time.
package transaction

import (
	"fmt"
	"log/slog"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/resumable"
)

type Kind int

const (
	KindWrite Kind = iota
	KindRead
	KindProbe
)

func (k Kind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	case KindProbe:
		return "probe"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type State int

const (
	StateIdle State = iota
	// StateSelect: the command buffer is staged, the register-select transfer is not issued yet.
	StateSelect
	// StateData: the transfer is on the bus.
	StateData
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelect:
		return "select"
	case StateData:
		return "data"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle identifies one transaction started on an Engine. The zero Handle is never valid.
type Handle uint32

const (
	DefaultMaxBurst = 3
	DefaultMaxRead  = 32
)

type Config struct {
	// PointerWidth is the register pointer size in bytes, 1 or 2.
	// Two byte pointers go on the wire high byte first.
	PointerWidth int
	// MaxBurst bounds the payload of one write, pointer excluded.
	MaxBurst int
	// MaxRead bounds the length of one burst read.
	MaxRead int
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.PointerWidth != 2 {
		c.PointerWidth = 1
	}
	if c.MaxBurst <= 0 {
		c.MaxBurst = DefaultMaxBurst
	}
	if c.MaxRead <= 0 {
		c.MaxRead = DefaultMaxRead
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// op is the resumption point of the live transaction.
type op struct {
	kind     Kind
	register uint16
	count    int
	// dst receives the scratch bytes only once the read resolved successfully.
	dst []byte
	// wlen is the staged length of the command buffer.
	wlen int
}

type Engine struct {
	transport i2cdev.Transport
	address   byte
	config    Config

	// cmd is the command buffer: pointer bytes then payload.
	cmd []byte
	// scratch holds bytes read by the live transaction.
	scratch []byte

	state    State
	op       op
	handle   Handle
	transfer i2cdev.TransferHandle
	result   resumable.Result
}

func New(transport i2cdev.Transport, address byte, config Config) *Engine {
	config = config.withDefaults()
	return &Engine{
		transport: transport,
		address:   address,
		config:    config,
		cmd:       make([]byte, config.PointerWidth+config.MaxBurst),
		scratch:   make([]byte, config.MaxRead),
	}
}

func (e *Engine) Address() byte {
	return e.address
}

func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) State() State {
	return e.state
}

// InFlight reports whether a transaction has been started and not resolved yet.
func (e *Engine) InFlight() bool {
	return e.state == StateSelect || e.state == StateData
}

// BeginWrite stages register followed by payload as one addressed write.
func (e *Engine) BeginWrite(register uint16, payload ...byte) (Handle, error) {
	if e.InFlight() {
		return 0, ErrInFlight
	}
	if len(payload) > e.config.MaxBurst {
		return 0, &BurstError{Kind: KindWrite, Requested: len(payload), Max: e.config.MaxBurst}
	}
	n, err := e.stagePointer(register)
	if err != nil {
		return 0, err
	}
	n += copy(e.cmd[n:], payload)
	return e.begin(op{kind: KindWrite, register: register, count: len(payload), wlen: n}), nil
}

// BeginRead stages a register-select write followed, after a repeated start,
// by a burst read of len(buf) bytes. buf is only written when the read succeeds.
func (e *Engine) BeginRead(register uint16, buf []byte) (Handle, error) {
	if e.InFlight() {
		return 0, ErrInFlight
	}
	if len(buf) == 0 {
		return 0, ErrEmptyRead
	}
	if len(buf) > e.config.MaxRead {
		return 0, &BurstError{Kind: KindRead, Requested: len(buf), Max: e.config.MaxRead}
	}
	n, err := e.stagePointer(register)
	if err != nil {
		return 0, err
	}
	return e.begin(op{kind: KindRead, register: register, count: len(buf), dst: buf, wlen: n}), nil
}

// BeginProbe stages an address-only write with no payload. It resolves
// successfully when the device acknowledges its address.
func (e *Engine) BeginProbe() (Handle, error) {
	if e.InFlight() {
		return 0, ErrInFlight
	}
	return e.begin(op{kind: KindProbe}), nil
}

func (e *Engine) stagePointer(register uint16) (int, error) {
	if e.config.PointerWidth == 1 {
		if register > 0xFF {
			return 0, ErrPointerFormat
		}
		e.cmd[0] = byte(register)
		return 1, nil
	}
	e.cmd[0] = byte(register >> 8)
	e.cmd[1] = byte(register)
	return 2, nil
}

func (e *Engine) begin(o op) Handle {
	e.handle++
	if e.handle == 0 {
		e.handle++
	}
	e.op = o
	e.state = StateSelect
	e.result = resumable.PendingResult()
	return e.handle
}

// Poll advances the transaction identified by h by one step.
func (e *Engine) Poll(h Handle) resumable.Result {
	if h == 0 || h != e.handle || !e.InFlight() {
		return resumable.FailureResult(ErrStaleHandle)
	}
	switch e.state {
	case StateSelect:
		var r []byte
		if e.op.kind == KindRead {
			r = e.scratch[:e.op.count]
		}
		th, err := e.transport.StartTransfer(e.address, e.cmd[:e.op.wlen], r)
		if err != nil {
			return e.resolve(resumable.FailureResult(fmt.Errorf("%w: could not start %s of register %#x on %#x: %w",
				ErrTransportFailure, e.op.kind, e.op.register, e.address, err)))
		}
		e.transfer = th
		e.state = StateData
		e.config.Logger.Debug("transfer started", "address", e.address, "kind", e.op.kind, "register", e.op.register, "count", e.op.count)
		return resumable.PendingResult()
	case StateData:
		status := e.transport.PollTransfer(e.transfer)
		if !status.Done() {
			return resumable.PendingResult()
		}
		if status != i2cdev.TransferOK {
			return e.resolve(resumable.FailureResult(fmt.Errorf("%w: %s of register %#x on %#x: %w",
				ErrTransportFailure, e.op.kind, e.op.register, e.address, status.Err())))
		}
		if e.op.kind == KindRead {
			copy(e.op.dst, e.scratch[:e.op.count])
		}
		return e.resolve(resumable.SuccessResult())
	}
	return resumable.FailureResult(ErrStaleHandle)
}

func (e *Engine) resolve(r resumable.Result) resumable.Result {
	e.state = StateDone
	e.result = r
	e.op.dst = nil
	if r.Err != nil {
		e.config.Logger.Debug("transaction failed", "address", e.address, "error", r.Err)
	}
	return r
}

// Result returns the outcome of the last resolved transaction.
func (e *Engine) Result() resumable.Result {
	return e.result
}

// Reset abandons the live transaction and discards the command buffer. Handles
// issued before Reset become stale. A transfer already handed to the transport
// is forgotten, and the engine stages later transactions in fresh buffers since
// the transport may still hold the old ones.
func (e *Engine) Reset() {
	if e.state == StateData {
		if f, ok := e.transport.(i2cdev.Forgetter); ok {
			f.Forget(e.transfer)
		}
		e.cmd = make([]byte, len(e.cmd))
		e.scratch = make([]byte, len(e.scratch))
	} else {
		for i := range e.cmd {
			e.cmd[i] = 0
		}
	}
	e.op = op{}
	e.state = StateIdle
	e.result = resumable.Result{}
	e.transfer = 0
	e.handle++
}

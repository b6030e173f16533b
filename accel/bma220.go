package accel

import (
	"context"
	"fmt"

	"github.com/mklimuk/i2cdev"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
)

const (
	RegRange         = 0x22
	RegLatch         = 0x1C
	RegSlopeSettings = 0x12
	RegSlopeDet      = 0x1A
	RegWatchdog      = 0x2E
	RegInterrupts    = 0x18
)

const DefaultAddress = 0x0A

const (
	// lat_int[2:0] = 111, permanent latch
	latchPermanent = 0b01110000
	// reset_int together with the permanent latch
	latchReset = 0b11110000
	// en_slope_x, en_slope_y, en_slope_z
	slopeXYZ = 0b00111000
	// slope_int is bit 0 of the interrupt register
	interruptSlope = 0x01
)

// BMA220 represents Bosh BMA220 accelerometer
type BMA220 struct {
	dev *register.Device
	buf [1]byte
}

func NewBMA220(trans i2cdev.Transport, address byte) *BMA220 {
	return &BMA220{dev: register.New(trans, address)}
}

/*
en_slope_x (0x1A.5) enable slope detection on x-axis
en_slope_y (0x1A.4) enable slope detection on y-axis
en_slope_z (0x1A.3) enable slope detection on z-axis
slope_th (0x12[5:2]) define the threshold level of the slope 1 LSB threshold is 1 LSB of acc_data
slope_dur (0x12[1:0]) define the number of consecutive slope data points above slope_th which are required to set the interrupt (“00” = 1,”01” = 2,”10” = 3, “11” = 4)
slope_filt (0x12.6) defines whether filtered or unfiltered acceleration data should be used (evaluated) (‘0’=unfiltered, ‘1’=filtered)
slope_int (0x0C.0) whetherslopeinterrupthasbeentriggered
*/
func (b *BMA220) InitMotionDetection() resumable.Task {
	write := func(reg uint16, value byte) func() resumable.Task {
		return func() resumable.Task { return b.dev.WriteRegister(reg, value) }
	}
	return resumable.Steps(
		// sensitivity
		write(RegRange, 0x03),
		write(RegLatch, latchPermanent),
		write(RegSlopeDet, slopeXYZ),
		// slope detection parameters (default 0x45)
		write(RegSlopeSettings, 0x45),
		write(RegWatchdog, 0x06),
	)
}

// CheckMotionInterrupt reads the interrupt register; triggered is set from the slope bit.
func (b *BMA220) CheckMotionInterrupt(triggered *bool) resumable.Task {
	read := b.dev.ReadRegisters(RegInterrupts, b.buf[:])
	return resumable.Once(func() resumable.Result {
		r := read.Poll()
		if r.OK() {
			*triggered = b.buf[0]&interruptSlope != 0
		}
		return r
	})
}

func (b *BMA220) ResetMotionInterrupt() resumable.Task {
	return b.dev.WriteRegister(RegLatch, latchReset)
}

func (b *BMA220) InitMotionDetectionBlocking(ctx context.Context) error {
	if err := resumable.Run(ctx, b.InitMotionDetection()); err != nil {
		return fmt.Errorf("could not init motion detection: %w", err)
	}
	return nil
}

func (b *BMA220) CheckMotionInterruptBlocking(ctx context.Context) (bool, error) {
	var triggered bool
	if err := resumable.Run(ctx, b.CheckMotionInterrupt(&triggered)); err != nil {
		return false, fmt.Errorf("could not read registry content: %w", err)
	}
	return triggered, nil
}

func (b *BMA220) ResetMotionInterruptBlocking(ctx context.Context) error {
	if err := resumable.Run(ctx, b.ResetMotionInterrupt()); err != nil {
		return fmt.Errorf("could not set interrupt settings: %w", err)
	}
	return nil
}

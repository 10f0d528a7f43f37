// Package drv2605 provides a driver for the TI DRV2605/DRV2605L haptic driver
// in LRA mode.
//
//	d := drv2605.New(bus)
//	err := d.Configure(drv2605.Config{})
//	err = d.Play(drv2605.StrongClick100)
//
// Waveforms come from the on-chip LRA library (library 6). Up to eight
// sequencer slots may be queued; a slot with the high bit set is a wait of
// (value & 0x7F) * 10 ms.
package drv2605

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x5A

// Registers.
const (
	regStatus    = 0x00
	regMode      = 0x01
	regRTPInput  = 0x02
	regLibrary   = 0x03
	regWaveSeq1  = 0x04
	regGo        = 0x0C
	regFeedback  = 0x1A
	regControl3  = 0x1D
	regLRAPeriod = 0x22
)

const (
	modeStandby = 0x40

	feedbackLRA       = 0x80
	control3RTPUnsign = 0x08

	libraryLRA = 6

	// SequenceLen is the number of sequencer slots.
	SequenceLen = 8
	// WaitUnit is the resolution of a sequencer wait slot.
	WaitUnit = 10 * time.Millisecond
	// MaxWait is the longest single wait slot.
	MaxWait = 127 * WaitUnit

	lraPeriodUnit = 98460 * time.Nanosecond
)

// Mode is the operating mode written to the MODE register.
type Mode uint8

const (
	ModeInternalTrigger Mode = 0x00
	ModeExternalEdge    Mode = 0x01
	ModeExternalLevel   Mode = 0x02
	ModePWMAnalog       Mode = 0x03
	ModeAudioToVibe     Mode = 0x04
	ModeRealTime        Mode = 0x05
	ModeDiagnostics     Mode = 0x06
	ModeAutoCalibrate   Mode = 0x07
)

// Device IDs reported in STATUS[7:5].
const (
	IDDRV2605  = 3
	IDDRV2604  = 4
	IDDRV2604L = 6
	IDDRV2605L = 7
)

// Errors returned by the driver.
var (
	ErrUnknownDevice = errors.New("drv2605: unknown device id")
	ErrSequenceFull  = errors.New("drv2605: sequence longer than 8 slots")
	ErrWaitRange     = errors.New("drv2605: wait out of range")
)

// Config controls device setup. All fields are optional.
type Config struct {
	// Address defaults to 0x5A if zero.
	Address uint16
	// Library defaults to the LRA library.
	Library uint8
}

// Device wraps an I2C connection to a DRV2605.
type Device struct {
	bus     drivers.I2C
	Address uint16

	id  uint8
	buf [2]byte
}

// New creates a Device on an already configured bus. It does not touch the
// hardware.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure checks the device id, leaves standby and selects LRA closed-loop
// operation with unsigned real-time input.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	if cfg.Library == 0 {
		cfg.Library = libraryLRA
	}
	id, err := d.DeviceID()
	if err != nil {
		return err
	}
	switch id {
	case IDDRV2605, IDDRV2605L:
	default:
		return ErrUnknownDevice
	}
	d.id = id

	if err := d.write(regMode, byte(ModeInternalTrigger)); err != nil {
		return err
	}
	if err := d.update(regFeedback, feedbackLRA, feedbackLRA); err != nil {
		return err
	}
	if err := d.update(regControl3, control3RTPUnsign, control3RTPUnsign); err != nil {
		return err
	}
	return d.write(regLibrary, cfg.Library)
}

// DeviceID reads STATUS[7:5].
func (d *Device) DeviceID() (uint8, error) {
	st, err := d.read(regStatus)
	if err != nil {
		return 0, err
	}
	return st >> 5, nil
}

// SetMode selects the operating mode and leaves standby.
func (d *Device) SetMode(m Mode) error {
	return d.write(regMode, byte(m))
}

// Standby puts the device into low-power standby.
func (d *Device) Standby() error {
	return d.update(regMode, modeStandby, modeStandby)
}

// SetRealTimeValue sets the drive level used in ModeRealTime.
func (d *Device) SetRealTimeValue(v uint8) error {
	return d.write(regRTPInput, v)
}

// SetSequence loads the sequencer. Unused slots are terminated with zero.
func (d *Device) SetSequence(slots []uint8) error {
	if len(slots) > SequenceLen {
		return ErrSequenceFull
	}
	w := make([]byte, 0, SequenceLen+1)
	w = append(w, regWaveSeq1)
	w = append(w, slots...)
	if len(slots) < SequenceLen {
		w = append(w, 0)
	}
	return d.bus.Tx(d.Address, w, nil)
}

// Play loads a single waveform and fires it.
func (d *Device) Play(waveform uint8) error {
	if err := d.SetSequence([]uint8{waveform}); err != nil {
		return err
	}
	return d.Go()
}

// Go starts the loaded sequence.
func (d *Device) Go() error { return d.write(regGo, 1) }

// Stop cancels playback.
func (d *Device) Stop() error { return d.write(regGo, 0) }

// Busy reports whether a sequence is playing.
func (d *Device) Busy() (bool, error) {
	v, err := d.read(regGo)
	return v&1 != 0, err
}

// ResonancePeriod reads the measured LRA period. Zero means the device has
// not driven the actuator yet.
func (d *Device) ResonancePeriod() (time.Duration, error) {
	v, err := d.read(regLRAPeriod)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * lraPeriodUnit, nil
}

// Wait encodes a sequencer wait slot.
func Wait(dur time.Duration) (uint8, error) {
	n := dur / WaitUnit
	if dur < 0 || n > 127 {
		return 0, ErrWaitRange
	}
	return 0x80 | uint8(n), nil
}

func (d *Device) read(reg uint8) (uint8, error) {
	d.buf[0] = reg
	if err := d.bus.Tx(d.Address, d.buf[:1], d.buf[1:2]); err != nil {
		return 0, err
	}
	return d.buf[1], nil
}

func (d *Device) write(reg, v uint8) error {
	d.buf[0], d.buf[1] = reg, v
	return d.bus.Tx(d.Address, d.buf[:2], nil)
}

func (d *Device) update(reg, mask, v uint8) error {
	cur, err := d.read(reg)
	if err != nil {
		return err
	}
	return d.write(reg, cur&^mask|v&mask)
}

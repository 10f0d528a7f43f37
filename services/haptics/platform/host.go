// Package platform supplies host resources to backend builders.
package platform

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"

	"haptics-go/services/haptics/hal"
)

// HostI2C emulates register-file devices on a host without I²C hardware.
// A write stores bytes from the register named by its first byte; a read
// returns bytes from the register named by the preceding write.
type HostI2C struct {
	mu   sync.Mutex
	devs map[uint16]*[256]byte
}

var _ drivers.I2C = (*HostI2C)(nil)

func NewHostI2C() *HostI2C { return &HostI2C{devs: map[uint16]*[256]byte{}} }

// Attach makes a device answer at addr with the given initial registers.
func (h *HostI2C) Attach(addr uint16, init map[uint8]uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	regs := new([256]byte)
	for r, v := range init {
		regs[r] = v
	}
	h.devs[addr] = regs
}

// Reg reads a register of an attached device.
func (h *HostI2C) Reg(addr uint16, reg uint8) (uint8, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	regs, ok := h.devs[addr]
	if !ok {
		return 0, false
	}
	return regs[reg], true
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	regs, ok := h.devs[addr]
	if !ok {
		return fmt.Errorf("i2c: no device at %#02x", addr)
	}
	if len(w) == 0 {
		return fmt.Errorf("i2c: empty write to %#02x", addr)
	}
	reg := int(w[0])
	for i, b := range w[1:] {
		regs[(reg+i)&0xFF] = b
	}
	for i := range r {
		r[i] = regs[(reg+i)&0xFF]
	}
	return nil
}

// Buses is a named set of I²C buses.
type Buses map[string]drivers.I2C

// Resources exposes the buses to backend builders.
func (b Buses) Resources() hal.Resources {
	return hal.Resources{
		I2C: func(id string) (drivers.I2C, error) {
			bus, ok := b[id]
			if !ok {
				return nil, fmt.Errorf("unknown i2c bus %q", id)
			}
			return bus, nil
		},
	}
}

// EmulatedDRV2605L returns a host bus with a DRV2605L at its default address.
func EmulatedDRV2605L() *HostI2C {
	h := NewHostI2C()
	h.Attach(0x5A, map[uint8]uint8{
		0x00: 7 << 5, // STATUS: DRV2605L
		0x01: 0x40,   // MODE: standby
		0x22: 58,     // LRA_PERIOD: about 175 Hz
	})
	return h
}

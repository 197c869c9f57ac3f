package at24

import (
	"eepromcode-go/errcode"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// PeriphBus exposes an Owner as a periph.io I²C bus, so periph device code
// (i2c.Dev, register helpers) can issue random reads through it.
type PeriphBus struct {
	o    *Owner
	name string
}

var _ i2c.Bus = (*PeriphBus)(nil)

// NewPeriphBus wraps o. name is what String reports.
func NewPeriphBus(o *Owner, name string) *PeriphBus {
	if name == "" {
		name = "usci_b0"
	}
	return &PeriphBus{o: o, name: name}
}

func (b *PeriphBus) String() string { return b.name }

// Tx follows Owner.Tx: one word-address byte out, at least one byte in.
func (b *PeriphBus) Tx(addr uint16, w, r []byte) error {
	return b.o.Tx(addr, w, r)
}

// SetSpeed is unsupported; the bit clock is fixed by the divisor at bring-up.
func (b *PeriphBus) SetSpeed(f physic.Frequency) error {
	return errcode.New(errcode.Unsupported, "at24.SetSpeed", "clock fixed at bring-up: "+f.String())
}

package usci

import "eepromcode-go/errcode"

// Defaults for BringUp fields left at zero.
const (
	DefaultTarget  = 0x50 // AT24C16, block 0: 0b1010_000
	DefaultDivisor = 10   // SMCLK / 10
	DefaultPins    = BIT6 | BIT7
	DefaultClock   = UCSSEL_2
)

// BringUp holds the one-time controller configuration. All fields are
// optional.
type BringUp struct {
	// Pins selects the peripheral function on P1 (P1SEL and P1SEL2).
	Pins uint8
	// Clock is the UCSSELx value written to CTL1 while in reset.
	Clock uint8
	// Divisor is the bit clock prescaler (BR0/BR1).
	Divisor uint16
	// Target is the 7-bit device address programmed into I2CSA.
	Target uint16
}

func (b BringUp) withDefaults() BringUp {
	if b.Pins == 0 {
		b.Pins = DefaultPins
	}
	if b.Clock == 0 {
		b.Clock = DefaultClock
	}
	if b.Divisor == 0 {
		b.Divisor = DefaultDivisor
	}
	if b.Target == 0 {
		b.Target = DefaultTarget
	}
	return b
}

// Configure puts the controller into single-master I²C mode and releases it
// idle. It must run exactly once, before any transaction.
func Configure(c Configurator, b BringUp) error {
	b = b.withDefaults()
	if b.Target > 0x7F {
		return errcode.New(errcode.InvalidParams, "usci.Configure", "target is not a 7-bit address")
	}
	if b.Clock&^UCSSEL_3 != 0 {
		return errcode.New(errcode.InvalidParams, "usci.Configure", "clock select out of range")
	}

	c.SelectPins(b.Pins)

	c.WriteCtl1(UCSWRST)
	c.WriteCtl0(UCMST | UCMODE_3 | UCSYNC)
	c.WriteCtl1(UCSWRST | b.Clock)
	c.WriteBaud(b.Divisor)
	c.SetTarget(b.Target)
	c.ClearCtl1(UCSWRST)
	return nil
}

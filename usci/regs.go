// Package usci describes the USCI_B two-wire controller the EEPROM driver
// runs on: register bit assignments, the handle the transaction engine polls,
// and the bring-up sequence that has to run before the first transaction.
//
// Bit values follow the MSP430x2xx family guide (USCI_B0 in I²C mode).
package usci

// UCBxCTL0
const (
	UCA10    = 0x80 // own address is 10-bit
	UCSLA10  = 0x40 // target address is 10-bit
	UCMM     = 0x20 // multi-master
	UCMST    = 0x08 // master mode
	UCMODE_3 = 0x06 // I²C mode
	UCSYNC   = 0x01 // synchronous mode, always set for I²C
)

// UCBxCTL1
const (
	UCSSEL_1 = 0x40 // ACLK
	UCSSEL_2 = 0x80 // SMCLK
	UCSSEL_3 = 0xC0 // SMCLK
	UCTR     = 0x10 // transmitter
	UCTXNACK = 0x08 // send NACK (slave mode only)
	UCTXSTP  = 0x04 // generate STOP; self-clears once STOP is on the wire
	UCTXSTT  = 0x02 // generate (repeated) START; self-clears after the address phase
	UCSWRST  = 0x01 // software reset
)

// UCBxSTAT
const (
	UCSCLLOW  = 0x40
	UCGC      = 0x20
	UCBBUSY   = 0x10 // bus busy between START and STOP
	UCNACKIFG = 0x08 // address or data byte was not acknowledged
	UCSTPIFG  = 0x04
	UCSTTIFG  = 0x02
	UCALIFG   = 0x01
)

// IFG2 bits owned by USCI_B0.
const (
	UCB0TXIFG = 0x08 // TXBUF empty
	UCB0RXIFG = 0x04 // RXBUF holds a complete byte
)

// Port 1 pin bits used for SDA/SCL on the G2 parts.
const (
	BIT6 = 0x40
	BIT7 = 0x80
)

// Controller is the register surface the transaction engine drives.
// Reads of Ctl1, Stat and Flags are the polling points; implementations
// backed by real hardware are plain volatile accesses.
type Controller interface {
	Ctl1() uint8
	SetCtl1(mask uint8)   // CTL1 |= mask
	ClearCtl1(mask uint8) // CTL1 &^= mask
	Stat() uint8
	ClearStat(mask uint8)
	Flags() uint8 // IFG2
	WriteTX(b byte)
	ReadRX() byte
}

// Targeter reprograms the 7-bit target address (I2CSA). Only valid while
// the bus is idle.
type Targeter interface {
	SetTarget(addr uint16)
}

// Configurator is the wider surface used once at bring-up.
type Configurator interface {
	Controller
	Targeter
	WriteCtl0(v uint8)
	WriteCtl1(v uint8)
	WriteBaud(div uint16) // BR0 = low byte, BR1 = high byte
	SelectPins(mask uint8)
}

// Pending reports whether a START or STOP condition is still outstanding.
func Pending(c Controller) bool {
	return c.Ctl1()&(UCTXSTT|UCTXSTP) != 0
}

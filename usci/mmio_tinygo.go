//go:build tinygo

package usci

import (
	"runtime/volatile"
	"unsafe"
)

// MSP430G2xx3 peripheral addresses.
const (
	addrIFG2      = 0x0003
	addrP1SEL     = 0x0026
	addrP1SEL2    = 0x0041
	addrUCB0CTL0  = 0x0068
	addrUCB0CTL1  = 0x0069
	addrUCB0BR0   = 0x006A
	addrUCB0BR1   = 0x006B
	addrUCB0STAT  = 0x006D
	addrUCB0RXBUF = 0x006E
	addrUCB0TXBUF = 0x006F
	addrUCB0I2CSA = 0x011A
	addrWDTCTL    = 0x0120

	wdtPW   = 0x5A00
	wdtHOLD = 0x0080
)

func reg8(addr uintptr) *volatile.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(addr))
}

func reg16(addr uintptr) *volatile.Register16 {
	return (*volatile.Register16)(unsafe.Pointer(addr))
}

// MMIO is the memory-mapped USCI_B0 register block.
type MMIO struct {
	ctl0, ctl1   *volatile.Register8
	br0, br1     *volatile.Register8
	stat         *volatile.Register8
	rxbuf, txbuf *volatile.Register8
	i2csa        *volatile.Register16
	ifg2         *volatile.Register8
	p1sel        *volatile.Register8
	p1sel2       *volatile.Register8
}

// B0 is the process-wide USCI_B0 handle.
var B0 = &MMIO{
	ctl0:   reg8(addrUCB0CTL0),
	ctl1:   reg8(addrUCB0CTL1),
	br0:    reg8(addrUCB0BR0),
	br1:    reg8(addrUCB0BR1),
	stat:   reg8(addrUCB0STAT),
	rxbuf:  reg8(addrUCB0RXBUF),
	txbuf:  reg8(addrUCB0TXBUF),
	i2csa:  reg16(addrUCB0I2CSA),
	ifg2:   reg8(addrIFG2),
	p1sel:  reg8(addrP1SEL),
	p1sel2: reg8(addrP1SEL2),
}

var _ Configurator = (*MMIO)(nil)

func (m *MMIO) Ctl1() uint8           { return m.ctl1.Get() }
func (m *MMIO) SetCtl1(mask uint8)    { m.ctl1.SetBits(mask) }
func (m *MMIO) ClearCtl1(mask uint8)  { m.ctl1.ClearBits(mask) }
func (m *MMIO) Stat() uint8           { return m.stat.Get() }
func (m *MMIO) ClearStat(mask uint8)  { m.stat.ClearBits(mask) }
func (m *MMIO) Flags() uint8          { return m.ifg2.Get() }
func (m *MMIO) WriteTX(b byte)        { m.txbuf.Set(b) }
func (m *MMIO) ReadRX() byte          { return m.rxbuf.Get() }
func (m *MMIO) SetTarget(addr uint16) { m.i2csa.Set(addr) }
func (m *MMIO) WriteCtl0(v uint8)     { m.ctl0.Set(v) }
func (m *MMIO) WriteCtl1(v uint8)     { m.ctl1.Set(v) }

func (m *MMIO) SelectPins(mask uint8) {
	m.p1sel.SetBits(mask)
	m.p1sel2.SetBits(mask)
}

func (m *MMIO) WriteBaud(div uint16) {
	m.br0.Set(uint8(div))
	m.br1.Set(uint8(div >> 8))
}

// HoldWatchdog stops the watchdog timer. Firmware calls it first thing,
// before bring-up.
func HoldWatchdog() {
	reg16(addrWDTCTL).Set(wdtPW | wdtHOLD)
}
